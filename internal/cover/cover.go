// Package cover fetches a source image and converts it into the small square
// JPEG thumbnail the playback device can display. Everything here is
// best-effort: callers treat any error as "no cover".
package cover

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	"image/jpeg"
	_ "image/png" // decoder registration
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // upstream thumbnails are frequently webp

	"github.com/psptunes/psptunes/internal/constants"
	"github.com/psptunes/psptunes/internal/logger"
)

// Transformer downloads and normalizes cover images.
type Transformer struct {
	client *http.Client
	log    *logger.Logger
}

func NewTransformer(client *http.Client, log *logger.Logger) *Transformer {
	if client == nil {
		client = &http.Client{Timeout: constants.CoverHTTPTimeout}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Transformer{
		client: client,
		log:    log.WithComponent("cover"),
	}
}

// Build fetches imageURL and returns a 150x150 baseline JPEG no larger than
// 60 KiB when the quality-70 retry suffices. Any failure returns an error;
// the caller simply omits the cover.
func (t *Transformer) Build(ctx context.Context, imageURL string) ([]byte, error) {
	raw, err := t.fetch(ctx, imageURL)
	if err != nil {
		t.log.Warn("Cover download failed", "url", imageURL, "error", err)
		return nil, err
	}

	data, err := Thumbnail(raw)
	if err != nil {
		t.log.Warn("Cover conversion failed", "url", imageURL, "error", err)
		return nil, err
	}
	return data, nil
}

func (t *Transformer) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("empty image URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// Thumbnail converts raw image bytes into the constrained embed format:
// center-cropped square, scaled to 150x150 with Catmull-Rom, encoded as JPEG
// quality 85 with a single quality-70 retry when the result exceeds 60 KiB.
func Thumbnail(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	src := centerSquare(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, constants.CoverSize, constants.CoverSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

	data, err := encodeJPEG(dst, constants.CoverQuality)
	if err != nil {
		return nil, err
	}
	if len(data) > constants.CoverMaxBytes {
		// Single retry at lower quality; the result is used either way.
		data, err = encodeJPEG(dst, constants.CoverRetryQuality)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// centerSquare returns the largest centered square within bounds, cropping
// the longer axis. Already-square bounds come back unchanged.
func centerSquare(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	switch {
	case w > h:
		offset := (w - h) / 2
		return image.Rect(b.Min.X+offset, b.Min.Y, b.Min.X+offset+h, b.Max.Y)
	case h > w:
		offset := (h - w) / 2
		return image.Rect(b.Min.X, b.Min.Y+offset, b.Max.X, b.Min.Y+offset+w)
	default:
		return b
	}
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
