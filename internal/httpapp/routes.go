package httpapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-chi/chi/v5"

	"github.com/psptunes/psptunes/internal/constants"
	"github.com/psptunes/psptunes/internal/downloader"
	"github.com/psptunes/psptunes/internal/storage"
)

func (h *Handler) IndexPage(w http.ResponseWriter, r *http.Request) {
	// Opportunistic cache sweep on every visit to the front page.
	h.Pool.TriggerSweep()
	h.RenderPage(w, "index.html", nil)
}

func (h *Handler) SearchPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	results, err := h.Songs.Search(r.Context(), query, constants.MaxSearchResults)
	if err != nil {
		h.Log.Error("Search failed", "query", query, "error", err)
		h.RenderError(w, http.StatusBadGateway, "Search is unavailable right now. Try again in a moment.")
		return
	}

	h.RenderPage(w, "search_results.html", map[string]interface{}{
		"Query":   query,
		"Results": results,
	})
}

// DownloadPage shows the waiting page and kicks off a background download.
// The page refreshes itself to the ready endpoint.
func (h *Handler) DownloadPage(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if videoID == "" {
		h.RenderError(w, http.StatusBadRequest, "Missing video identifier.")
		return
	}

	song, _ := h.Songs.GetSong(r.Context(), videoID)

	title := videoID
	thumbnail := ""
	if song != nil {
		if song.Title != "" {
			title = song.Title
		}
		thumbnail = song.BestThumbnailURL()
	}

	// No job needed when a previous download is still cached.
	if path := h.Downloader.CanonicalPath(r.Context(), videoID, song); !storage.FileExists(path) {
		h.Pool.Submit(videoID)
	}

	h.RenderPage(w, "download.html", map[string]interface{}{
		"VideoID":   videoID,
		"Title":     title,
		"Thumbnail": thumbnail,
	})
}

// DownloadReadyPage waits briefly for the background download, falls back to
// a synchronous download, and renders the final page with file details.
func (h *Handler) DownloadReadyPage(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if videoID == "" {
		h.RenderError(w, http.StatusBadRequest, "Missing video identifier.")
		return
	}

	song, _ := h.Songs.GetSong(r.Context(), videoID)

	path := h.Downloader.CanonicalPath(r.Context(), videoID, song)
	if !h.waitForFile(path, videoID) {
		// An impatient client navigating away must not abort the download;
		// it keeps running so the file is cached for the next attempt.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), constants.FetchTimeout)
		defer cancel()

		var err error
		path, err = h.Downloader.Download(ctx, videoID, song)
		if err != nil {
			h.Log.Error("Download failed", "video_id", videoID, "error", err)
			h.RenderError(w, downloadStatus(err), "The download could not be completed. Try again in a moment.")
			return
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		h.Log.Error("Downloaded file missing", "video_id", videoID, "file", path, "error", err)
		h.RenderError(w, http.StatusInternalServerError, "The downloaded file went missing.")
		return
	}

	data := map[string]interface{}{
		"VideoID":  videoID,
		"Filename": filepath.Base(path),
		"SizeKiB":  fmt.Sprintf("%.1f", float64(info.Size())/1024),
	}
	if md := readTags(path); md != nil {
		data["Title"] = md.Title()
		data["Artist"] = md.Artist()
		data["Album"] = md.Album()
		data["Format"] = string(md.Format())
	}

	h.RenderPage(w, "download_final.html", data)
}

// waitForFile polls for the canonical file while a background job may still
// be promoting it.
func (h *Handler) waitForFile(path, videoID string) bool {
	deadline := time.Now().Add(constants.ReadyWaitTimeout)
	for {
		if storage.FileExists(path) {
			return true
		}
		if !h.Downloader.Locks().InProgress(videoID) || time.Now().After(deadline) {
			return storage.FileExists(path)
		}
		time.Sleep(constants.ReadyWaitPause)
	}
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if videoID == "" {
		http.Error(w, "missing video identifier", http.StatusBadRequest)
		return
	}

	song, _ := h.Songs.GetSong(r.Context(), videoID)
	path := h.Downloader.CanonicalPath(r.Context(), videoID, song)
	if !storage.FileExists(path) {
		// The canonical name depends on metadata that may have expired from
		// the cache; fall back to anything left for this identifier.
		matches, _ := filepath.Glob(filepath.Join(h.Downloader.CacheDir(), videoID+"*"+constants.ExtMP3))
		if len(matches) == 0 {
			http.NotFound(w, r)
			return
		}
		path = matches[0]
	}

	w.Header().Set("Content-Type", constants.MimeTypeMP3)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (h *Handler) PlayerPage(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if videoID == "" {
		h.RenderError(w, http.StatusBadRequest, "Missing video identifier.")
		return
	}

	info, err := h.Player.Probe(r.Context(), videoID)
	if err != nil {
		h.Log.Error("Probe failed", "video_id", videoID, "error", err)
		h.RenderError(w, http.StatusBadGateway, "Could not resolve a stream for this track.")
		return
	}

	h.RenderPage(w, "player.html", map[string]interface{}{
		"VideoID":   videoID,
		"Title":     info.Title,
		"StreamURL": info.URL,
	})
}

func downloadStatus(err error) int {
	switch {
	case errors.Is(err, downloader.ErrLockTimeout):
		return http.StatusConflict
	case errors.Is(err, downloader.ErrOutputNotFound):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func readTags(path string) tag.Metadata {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	md, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	return md
}
