// Package tagging writes ID3v2 tags onto downloaded MP3 files. Only the tag
// container is touched; the audio stream is never rewritten. Every field is
// set independently so one bad value cannot block the rest, and the caller
// treats any returned error as non-fatal: the audio file remains a valid
// cache entry without tags.
package tagging

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"

	"github.com/psptunes/psptunes/internal/constants"
	"github.com/psptunes/psptunes/internal/logger"
	"github.com/psptunes/psptunes/internal/metadata"
	"github.com/psptunes/psptunes/internal/songapi"
	"github.com/psptunes/psptunes/internal/ytdlp"
)

// CoverBuilder produces embed-ready thumbnail bytes from a source image URL.
type CoverBuilder interface {
	Build(ctx context.Context, imageURL string) ([]byte, error)
}

// Writer writes descriptive tags and an optional embedded cover.
type Writer struct {
	covers CoverBuilder
	log    *logger.Logger
}

func NewWriter(covers CoverBuilder, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Default()
	}
	return &Writer{
		covers: covers,
		log:    log.WithComponent("tagging"),
	}
}

// WriteTags replaces the descriptive tags on the MP3 at path. The song
// record supplies primary values; the raw collaborator info fills gaps. A
// returned error means the tags could not be saved, not that the file is
// unusable.
func (w *Writer) WriteTags(ctx context.Context, path string, song *songapi.Song, raw *ytdlp.Info) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	tag.SetVersion(4)

	tag.SetTitle(resolveTitle(path, song, raw))

	artists := resolveArtists(song, raw)
	tag.AddTextFrame("TPE1", tag.DefaultEncoding(), strings.Join(artists, "\x00"))

	if album := resolveAlbum(song, raw); album != "" {
		tag.SetAlbum(album)
	}

	if year := resolveYear(song, raw); year != "" {
		tag.SetYear(year)
	}

	w.embedCover(ctx, tag, song, raw)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags: %w", err)
	}
	w.log.Info("Tags written", "path", path)
	return nil
}

// resolveTitle: song record, then raw info, then the file's base name.
func resolveTitle(path string, song *songapi.Song, raw *ytdlp.Info) string {
	if song != nil && song.Title != "" {
		return song.Title
	}
	if raw != nil && raw.Title != "" {
		return raw.Title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// resolveArtists: structured song entries, then the raw info's
// artist/uploader chain, then the unknown-artist default.
func resolveArtists(song *songapi.Song, raw *ytdlp.Info) []string {
	var artists []string
	if song != nil {
		for _, a := range song.Artists {
			if n := a.DisplayName(); n != "" {
				artists = append(artists, n)
			}
		}
	}
	if len(artists) == 0 && raw != nil {
		artists = raw.FallbackArtists()
	}
	if len(artists) == 0 {
		artists = []string{metadata.UnknownArtist}
	}
	return artists
}

// resolveAlbum: song album (string or structured), then raw album/release.
// Empty means the frame is omitted entirely.
func resolveAlbum(song *songapi.Song, raw *ytdlp.Info) string {
	if song != nil && song.Album != nil && song.Album.Name != "" {
		return song.Album.Name
	}
	if raw != nil {
		if raw.Album != "" {
			return raw.Album
		}
		return raw.Release
	}
	return ""
}

// resolveYear: song year, then the first four characters of the raw upload
// date.
func resolveYear(song *songapi.Song, raw *ytdlp.Info) string {
	if song != nil && song.Year != "" {
		return song.Year.String()
	}
	if raw != nil && len(raw.UploadDate) >= 4 {
		return raw.UploadDate[:4]
	}
	return ""
}

// embedCover attaches a front-cover picture frame. Entirely best-effort: any
// failure is logged and skipped without touching the other tags.
func (w *Writer) embedCover(ctx context.Context, tag *id3v2.Tag, song *songapi.Song, raw *ytdlp.Info) {
	if w.covers == nil {
		return
	}

	coverURL := ""
	if raw != nil && raw.Thumbnail != "" {
		coverURL = raw.Thumbnail
	}
	if coverURL == "" && song != nil {
		coverURL = song.BestThumbnailURL()
	}
	if coverURL == "" {
		return
	}

	data, err := w.covers.Build(ctx, coverURL)
	if err != nil || len(data) == 0 {
		w.log.Warn("Cover embed skipped", "url", coverURL, "error", err)
		return
	}

	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    constants.MimeTypeJPEG,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     data,
	})
}
