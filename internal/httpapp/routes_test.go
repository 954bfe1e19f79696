package httpapp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/psptunes/psptunes/internal/downloader"
	"github.com/psptunes/psptunes/internal/metadata"
	"github.com/psptunes/psptunes/internal/songapi"
	"github.com/psptunes/psptunes/internal/worker"
	"github.com/psptunes/psptunes/internal/ytdlp"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, videoID, outputTemplate string) (*ytdlp.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(filepath.Dir(outputTemplate), videoID+".mp3")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		return nil, err
	}
	return &ytdlp.Info{ID: videoID}, nil
}

type stubTagger struct{}

func (stubTagger) WriteTags(ctx context.Context, path string, song *songapi.Song, raw *ytdlp.Info) error {
	return nil
}

type stubExecutor struct {
	output []byte
	err    error
}

func (s stubExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	return s.output, s.err
}

func newTestApp(t *testing.T, songs songapi.Provider, exec ytdlp.Executor) (http.Handler, *downloader.Downloader, string) {
	t.Helper()
	dir := t.TempDir()

	if exec == nil {
		exec = stubExecutor{err: errors.New("executor disabled in tests")}
	}
	yt, err := ytdlp.New("yt-dlp", ytdlp.WithExecutor(exec))
	if err != nil {
		t.Fatalf("ytdlp.New: %v", err)
	}

	resolver := metadata.NewResolver(yt, nil)
	dl := downloader.New(dir, downloader.NewLocks(), resolver, songs, stubFetcher{}, stubTagger{}, nil)
	jan := downloader.NewJanitor(dir, 10*time.Minute, nil)
	pool := worker.NewPool(dl, jan, nil)

	h := NewHandler(songs, dl, pool, yt, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, dl, dir
}

func TestIndexPage(t *testing.T) {
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/search") {
		t.Error("index page is missing the search form")
	}
}

func TestSearchPage(t *testing.T) {
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=take+five", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Mock Song") {
		t.Error("results page missing the mock song title")
	}
	if !strings.Contains(body, "/download/mock1") {
		t.Error("results page missing the download link")
	}
}

func TestSearchPageEmptyQueryRedirects(t *testing.T) {
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search", nil))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want redirect", rec.Code)
	}
}

func TestSearchPageUpstreamError(t *testing.T) {
	songs := songapi.NewMockProvider()
	songs.Err = errors.New("upstream down")
	app, _, _ := newTestApp(t, songs, nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q=x", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestDownloadPage(t *testing.T) {
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/v1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/download/v1/ready") {
		t.Error("waiting page missing the ready link")
	}
	if !strings.Contains(body, "Mock Song") {
		t.Error("waiting page missing the song title")
	}
}

func TestDownloadReadyPage(t *testing.T) {
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/v1/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "/download/v1/file") {
		t.Error("final page missing the save link")
	}
	if !strings.Contains(body, "KiB") {
		t.Error("final page missing the file size")
	}
}

// A client that gives up on the waiting page must not abort the download:
// the handler detaches from the request context before falling back to a
// synchronous fetch, so the file lands in the cache regardless.
func TestDownloadReadyPageClientGoneDownloadCompletes(t *testing.T) {
	app, dl, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/download/mock1/ready", nil).WithContext(ctx)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	song, _ := songapi.NewMockProvider().GetSong(context.Background(), "mock1")
	path := dl.CanonicalPath(context.Background(), "mock1", song)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("downloaded file missing after client disconnect: %v", err)
	}
}

func TestDownloadFile(t *testing.T) {
	songs := songapi.NewMockProvider()
	app, dl, _ := newTestApp(t, songs, nil)

	song, _ := songs.GetSong(context.Background(), "v1")
	path := dl.CanonicalPath(context.Background(), "v1", song)
	if err := os.WriteFile(path, []byte("audio bytes"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/v1/file", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Body.String() != "audio bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDownloadFileRawNameFallback(t *testing.T) {
	app, _, dir := newTestApp(t, songapi.NewMockProvider(), nil)

	// Only a raw-identifier file exists; the canonical name misses.
	if err := os.WriteFile(filepath.Join(dir, "v9.mp3"), []byte("leftover"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/v9/file", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "leftover" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDownloadFileNotFound(t *testing.T) {
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/absent/file", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPlayerPage(t *testing.T) {
	exec := stubExecutor{output: []byte(`{"id": "v1", "title": "So What", "url": "https://cdn/audio.m4a"}`)}
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), exec)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/player/v1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "So What") {
		t.Error("player page missing the title")
	}
	if !strings.Contains(body, "https://cdn/audio.m4a") {
		t.Error("player page missing the stream URL")
	}
}

func TestPlayerPageProbeFailure(t *testing.T) {
	app, _, _ := newTestApp(t, songapi.NewMockProvider(), nil)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/player/v1", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
