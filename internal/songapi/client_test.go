package songapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGetSong(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/songs/abc123" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title": "So What", "artists": [{"name": "Miles Davis"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	song, err := c.GetSong(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetSong: %v", err)
	}
	if song.Title != "So What" {
		t.Errorf("Title = %q, want %q", song.Title, "So What")
	}
	if len(song.Artists) != 1 || song.Artists[0].DisplayName() != "Miles Davis" {
		t.Errorf("Artists = %+v", song.Artists)
	}
}

func TestClientGetSongNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.GetSong(context.Background(), "missing"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestClientGetSongEmptyID(t *testing.T) {
	c := NewClient("http://unused")
	if _, err := c.GetSong(context.Background(), ""); err == nil {
		t.Error("expected error for empty video id")
	}
}

func TestClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "take five" {
			t.Errorf("q = %q", q.Get("q"))
		}
		if q.Get("filter") != "songs" {
			t.Errorf("filter = %q", q.Get("filter"))
		}
		if q.Get("limit") != "2" {
			t.Errorf("limit = %q", q.Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"videoId": "v1", "title": "Take Five", "artists": ["Dave Brubeck"]},
			{"videoId": "v2", "title": "Take Five (Live)", "artists": ["Dave Brubeck"]},
			{"videoId": "v3", "title": "Take Ten", "artists": ["Paul Desmond"]}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.Search(context.Background(), "take five", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (limit applied)", len(results))
	}
	if results[0].VideoID != "v1" || results[0].Title != "Take Five" {
		t.Errorf("results[0] = %+v", results[0])
	}
}

func TestClientSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Search(context.Background(), "x", 5); err == nil {
		t.Error("expected error for 500")
	}
}
