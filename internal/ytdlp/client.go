// Package ytdlp wraps the external yt-dlp binary, which performs the actual
// network fetch and ffmpeg transcode to MP3. The binary is the source of
// truth for completion; callers poll the output directory because ffmpeg
// post-processing may land on disk slightly after the process exits.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/psptunes/psptunes/internal/constants"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, firstLine(msg))
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithFFmpegLocation passes an explicit ffmpeg location through to yt-dlp.
func WithFFmpegLocation(path string) Option {
	return func(c *Client) {
		c.ffmpegLocation = path
	}
}

// WithTimeout bounds a single invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client invokes yt-dlp.
type Client struct {
	binary         string
	ffmpegLocation string
	timeout        time.Duration
	exec           Executor
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: constants.FetchTimeout,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Fetch downloads the track's best audio and transcodes it to MP3 under the
// given output template (yt-dlp template syntax, e.g. "dir/ID.%(ext)s"). It
// returns the structured info yt-dlp printed. No partial-file guarantee is
// made on failure.
func (c *Client) Fetch(ctx context.Context, videoID, outputTemplate string) (*Info, error) {
	if videoID == "" {
		return nil, errors.New("video id required")
	}
	if outputTemplate == "" {
		return nil, errors.New("output template required")
	}

	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--output", outputTemplate,
		"--no-playlist",
		"--force-overwrites",
		"--no-write-thumbnail",
		"--print-json",
		"--quiet",
	}
	if c.ffmpegLocation != "" {
		args = append(args, "--ffmpeg-location", c.ffmpegLocation)
	}
	args = append(args, watchURL(videoID))

	out, err := c.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp fetch failed for %s: %w", videoID, err)
	}
	return parseInfo(out)
}

// Probe runs yt-dlp in metadata-only mode: no download, just the structured
// info for the track.
func (c *Client) Probe(ctx context.Context, videoID string) (*Info, error) {
	if videoID == "" {
		return nil, errors.New("video id required")
	}

	args := []string{
		"--dump-json",
		"--no-playlist",
		"--quiet",
		watchURL(videoID),
	}

	out, err := c.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp probe failed for %s: %w", videoID, err)
	}
	return parseInfo(out)
}

func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.exec.Run(runCtx, c.binary, args)
}

func parseInfo(out []byte) (*Info, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, errors.New("yt-dlp produced no info")
	}
	// With --print-json multiple lines can appear; the info JSON is the last
	// non-empty one.
	lines := bytes.Split(out, []byte("\n"))
	raw := lines[len(lines)-1]

	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp info: %w", err)
	}
	return &info, nil
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
