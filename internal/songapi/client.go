// Package songapi talks to the primary song metadata service. It exposes a
// Provider interface so callers can be handed either the live HTTP client,
// the caching wrapper, or a mock.
package songapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/psptunes/psptunes/internal/httpclient"
)

const (
	defaultUserAgent   = "psptunes/1.0 (+https://github.com/psptunes/psptunes)"
	minRequestInterval = 200 * time.Millisecond
)

// Provider is the lookup surface the rest of the application depends on.
type Provider interface {
	GetSong(ctx context.Context, videoID string) (*Song, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Client is the HTTP implementation of Provider.
type Client struct {
	baseURL    string
	httpClient *httpclient.Client
	userAgent  string
}

var _ Provider = (*Client)(nil)

// NewClient creates a Client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpclient.NewClient(nil, minRequestInterval),
		userAgent:  defaultUserAgent,
	}
}

// GetSong fetches the structured song record for a video ID.
func (c *Client) GetSong(ctx context.Context, videoID string) (*Song, error) {
	if videoID == "" {
		return nil, fmt.Errorf("empty video id")
	}

	var song Song
	endpoint := c.baseURL + "/songs/" + url.PathEscape(videoID)
	if err := c.getJSON(ctx, endpoint, &song); err != nil {
		return nil, fmt.Errorf("failed to fetch song %s: %w", videoID, err)
	}
	return &song, nil
}

// Search queries the song catalog. The limit caps the number of returned
// rows.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("filter", "songs")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var results []SearchResult
	endpoint := c.baseURL + "/search?" + params.Encode()
	if err := c.getJSON(ctx, endpoint, &results); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
