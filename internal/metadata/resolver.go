// Package metadata resolves a track identifier into a displayable
// (title, artists) pair. Resolution layers several sources and always
// produces a usable result; it never fails.
package metadata

import (
	"context"
	"strings"

	"github.com/psptunes/psptunes/internal/logger"
	"github.com/psptunes/psptunes/internal/songapi"
	"github.com/psptunes/psptunes/internal/ytdlp"
)

// UnknownArtist is the ultimate artist fallback.
const UnknownArtist = "Unknown Artist"

// Resolved is a fully-populated title/artist pair. Both fields are always
// non-empty after Resolve.
type Resolved struct {
	Title   string
	Artists []string
}

// ArtistString joins the artist list for display and filenames.
func (r Resolved) ArtistString() string {
	return strings.Join(r.Artists, ", ")
}

// Prober is the metadata-only mode of the fetch-and-transcode collaborator.
type Prober interface {
	Probe(ctx context.Context, videoID string) (*ytdlp.Info, error)
}

// Resolver fills title and artists from the primary song record first, then
// from a best-effort collaborator probe, then from hard fallbacks.
type Resolver struct {
	prober Prober
	log    *logger.Logger
}

func NewResolver(prober Prober, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		prober: prober,
		log:    log.WithComponent("resolver"),
	}
}

// Resolve returns the canonical title and artist list for videoID. The song
// record, when the caller already has one, supplies the primary values; the
// collaborator probe fills whatever is still missing; the raw identifier and
// UnknownArtist cover the rest. Errors from either source are swallowed.
func (r *Resolver) Resolve(ctx context.Context, videoID string, song *songapi.Song) Resolved {
	var title string
	var artists []string

	if song != nil {
		title = song.Title
		if title == "" && song.VideoDetails != nil {
			title = song.VideoDetails.Title
		}

		for _, a := range song.Artists {
			if n := a.DisplayName(); n != "" {
				artists = append(artists, n)
			}
		}
		if len(artists) == 0 && song.VideoDetails != nil && song.VideoDetails.Author != "" {
			artists = []string{song.VideoDetails.Author}
		}
	}

	if title == "" || len(artists) == 0 {
		if info, err := r.prober.Probe(ctx, videoID); err != nil {
			r.log.Debug("Probe fallback failed", "video_id", videoID, "error", err)
		} else if info != nil {
			if title == "" {
				title = info.Title
			}
			if len(artists) == 0 {
				artists = info.FallbackArtists()
			}
		}
	}

	if len(artists) == 0 {
		artists = []string{UnknownArtist}
	}
	if title == "" {
		title = videoID
	}

	return Resolved{Title: title, Artists: artists}
}
