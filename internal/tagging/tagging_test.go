package tagging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"

	"github.com/psptunes/psptunes/internal/metadata"
	"github.com/psptunes/psptunes/internal/songapi"
	"github.com/psptunes/psptunes/internal/ytdlp"
)

type fakeCovers struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeCovers) Build(ctx context.Context, imageURL string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

// writeStubMP3 creates a file the tag writer can open. The tag library only
// touches the tag container, so arbitrary trailing bytes stand in for audio.
func writeStubMP3(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte("\xff\xfbstub audio bytes"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return path
}

func readTag(t *testing.T, path string) *id3v2.Tag {
	t.Helper()
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		t.Fatalf("reopen tag: %v", err)
	}
	t.Cleanup(func() { _ = tag.Close() })
	return tag
}

func TestWriteTagsFromSong(t *testing.T) {
	path := writeStubMP3(t)
	w := NewWriter(nil, nil)

	song := &songapi.Song{
		Title:   "So What",
		Artists: []songapi.Artist{{Name: "Miles Davis"}},
		Album:   &songapi.Album{Name: "Kind of Blue"},
		Year:    "1959",
	}

	if err := w.WriteTags(context.Background(), path, song, nil); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	tag := readTag(t, path)
	if got := tag.Title(); got != "So What" {
		t.Errorf("Title = %q", got)
	}
	if got := tag.Artist(); got != "Miles Davis" {
		t.Errorf("Artist = %q", got)
	}
	if got := tag.Album(); got != "Kind of Blue" {
		t.Errorf("Album = %q", got)
	}
	if got := tag.Year(); got != "1959" {
		t.Errorf("Year = %q", got)
	}
}

func TestWriteTagsRawFallback(t *testing.T) {
	path := writeStubMP3(t)
	w := NewWriter(nil, nil)

	raw := &ytdlp.Info{
		Title:      "Probed Title",
		Uploader:   "Some Channel",
		Album:      "Probed Album",
		UploadDate: "20200114",
	}

	if err := w.WriteTags(context.Background(), path, nil, raw); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	tag := readTag(t, path)
	if got := tag.Title(); got != "Probed Title" {
		t.Errorf("Title = %q", got)
	}
	if got := tag.Artist(); got != "Some Channel" {
		t.Errorf("Artist = %q", got)
	}
	if got := tag.Album(); got != "Probed Album" {
		t.Errorf("Album = %q", got)
	}
	if got := tag.Year(); got != "2020" {
		t.Errorf("Year = %q", got)
	}
}

func TestWriteTagsUltimateFallbacks(t *testing.T) {
	path := writeStubMP3(t)
	w := NewWriter(nil, nil)

	if err := w.WriteTags(context.Background(), path, nil, nil); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	tag := readTag(t, path)
	if got := tag.Title(); got != "track" {
		t.Errorf("Title = %q, want base filename", got)
	}
	if got := tag.Artist(); got != metadata.UnknownArtist {
		t.Errorf("Artist = %q, want %q", got, metadata.UnknownArtist)
	}
	if got := tag.Album(); got != "" {
		t.Errorf("Album = %q, want omitted", got)
	}
}

func TestWriteTagsEmbedsCover(t *testing.T) {
	path := writeStubMP3(t)
	covers := &fakeCovers{data: []byte("jpeg bytes")}
	w := NewWriter(covers, nil)

	song := &songapi.Song{
		Title:      "So What",
		Thumbnails: []songapi.Thumbnail{{URL: "http://img/cover.jpg"}},
	}

	if err := w.WriteTags(context.Background(), path, song, nil); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
	if covers.calls != 1 {
		t.Errorf("cover builder calls = %d, want 1", covers.calls)
	}

	tag := readTag(t, path)
	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	if len(frames) != 1 {
		t.Fatalf("picture frames = %d, want 1", len(frames))
	}
	pic, ok := frames[0].(id3v2.PictureFrame)
	if !ok {
		t.Fatalf("frame type = %T", frames[0])
	}
	if string(pic.Picture) != "jpeg bytes" {
		t.Errorf("picture bytes = %q", pic.Picture)
	}
	if pic.PictureType != id3v2.PTFrontCover {
		t.Errorf("picture type = %d, want front cover", pic.PictureType)
	}
}

func TestWriteTagsCoverFailureNonFatal(t *testing.T) {
	path := writeStubMP3(t)
	covers := &fakeCovers{err: errors.New("image host down")}
	w := NewWriter(covers, nil)

	song := &songapi.Song{
		Title:      "So What",
		Thumbnails: []songapi.Thumbnail{{URL: "http://img/cover.jpg"}},
	}

	if err := w.WriteTags(context.Background(), path, song, nil); err != nil {
		t.Fatalf("WriteTags should succeed without cover: %v", err)
	}

	tag := readTag(t, path)
	if got := tag.Title(); got != "So What" {
		t.Errorf("Title = %q", got)
	}
	if frames := tag.GetFrames(tag.CommonID("Attached picture")); len(frames) != 0 {
		t.Errorf("picture frames = %d, want 0", len(frames))
	}
}

func TestWriteTagsMissingFile(t *testing.T) {
	w := NewWriter(nil, nil)
	err := w.WriteTags(context.Background(), filepath.Join(t.TempDir(), "absent.mp3"), nil, nil)
	if err == nil {
		t.Error("expected error for missing file")
	}
}
