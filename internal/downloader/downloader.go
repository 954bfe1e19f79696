// Package downloader owns the download-cache pipeline: per-identifier
// locking, the external fetch-and-transcode call, polling for its output,
// atomic promotion to the canonical cache name, and tag writing.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/psptunes/psptunes/internal/constants"
	"github.com/psptunes/psptunes/internal/logger"
	"github.com/psptunes/psptunes/internal/metadata"
	"github.com/psptunes/psptunes/internal/songapi"
	"github.com/psptunes/psptunes/internal/storage"
	"github.com/psptunes/psptunes/internal/ytdlp"
)

var (
	ErrLockTimeout    = errors.New("could not acquire download lock")
	ErrDirUnavailable = errors.New("cache directory unavailable")
	ErrFetchFailed    = errors.New("fetch-and-transcode failed")
	ErrOutputNotFound = errors.New("no transcoded output found")
	ErrPromoteFailed  = errors.New("failed to promote output file")
)

// Fetcher is the external fetch-and-transcode collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, videoID, outputTemplate string) (*ytdlp.Info, error)
}

// Tagger writes descriptive tags onto a finished file.
type Tagger interface {
	WriteTags(ctx context.Context, path string, song *songapi.Song, raw *ytdlp.Info) error
}

// Downloader runs the per-track download state machine.
type Downloader struct {
	cacheDir string
	locks    *Locks
	resolver *metadata.Resolver
	songs    songapi.Provider
	fetcher  Fetcher
	tagger   Tagger
	log      *logger.Logger

	lockTimeout time.Duration
	pollLimit   int
	pollPause   time.Duration
}

func New(cacheDir string, locks *Locks, resolver *metadata.Resolver, songs songapi.Provider, fetcher Fetcher, tagger Tagger, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.Default()
	}
	return &Downloader{
		cacheDir:    cacheDir,
		locks:       locks,
		resolver:    resolver,
		songs:       songs,
		fetcher:     fetcher,
		tagger:      tagger,
		log:         log.WithComponent("downloader"),
		lockTimeout: constants.LockTimeout,
		pollLimit:   constants.OutputPollLimit,
		pollPause:   constants.OutputPollPause,
	}
}

// Locks exposes the lock service so the HTTP layer and worker pool share the
// same in-progress signal.
func (d *Downloader) Locks() *Locks {
	return d.locks
}

// CacheDir returns the canonical cache directory.
func (d *Downloader) CacheDir() string {
	return d.cacheDir
}

// CanonicalPath resolves videoID's metadata and returns the canonical cache
// path for it, without downloading anything.
func (d *Downloader) CanonicalPath(ctx context.Context, videoID string, song *songapi.Song) string {
	res := d.resolver.Resolve(ctx, videoID, song)
	return filepath.Join(d.cacheDir, storage.MakeFilename(res.Title, res.ArtistString()))
}

// Download fetches, transcodes, promotes and tags the track for videoID,
// returning the canonical cache path. The song record is an optional hint;
// when nil it is looked up through the (cached) provider. Exactly one caller
// per identifier performs the work at a time; others block on the lock for
// up to 30 seconds and usually land on the cache-hit short circuit.
func (d *Downloader) Download(ctx context.Context, videoID string, song *songapi.Song) (string, error) {
	log := d.log.WithVideo(videoID)
	log.Info("Starting download")

	if err := storage.EnsureDir(d.cacheDir); err != nil {
		log.Error("Cannot create cache dir", "dir", d.cacheDir, "error", err)
		return "", fmt.Errorf("%w: %v", ErrDirUnavailable, err)
	}

	if !d.locks.Acquire(videoID, d.lockTimeout) {
		log.Error("Lock acquisition timed out", "timeout", d.lockTimeout)
		return "", ErrLockTimeout
	}
	defer d.locks.Release(videoID)
	defer d.locks.ClearInProgress(videoID)

	if song == nil {
		song, _ = d.songs.GetSong(ctx, videoID)
	}

	res := d.resolver.Resolve(ctx, videoID, song)
	finalName := storage.MakeFilename(res.Title, res.ArtistString())
	finalPath := filepath.Join(d.cacheDir, finalName)

	if storage.FileExists(finalPath) {
		log.Info("Cache hit", "file", finalName)
		return finalPath, nil
	}

	d.locks.MarkInProgress(videoID)

	outputTemplate := filepath.Join(d.cacheDir, videoID+".%(ext)s")
	log.Info("Invoking fetch-and-transcode")
	info, err := d.fetcher.Fetch(ctx, videoID, outputTemplate)
	if err != nil {
		log.Error("Fetch failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	tempPath := d.locateOutput(videoID, info)
	if tempPath == "" {
		log.Error("No output produced", "cache_contents", d.listCacheDir())
		return "", ErrOutputNotFound
	}
	log.Info("Output located", "file", filepath.Base(tempPath))

	if err := storage.MoveFile(tempPath, finalPath); err != nil {
		log.Error("Promotion failed", "from", tempPath, "to", finalPath, "error", err)
		return "", fmt.Errorf("%w: %v", ErrPromoteFailed, err)
	}
	log.Info("Promoted to canonical name", "file", finalName)

	d.cleanupTemp(videoID, finalPath)

	if tagErr := d.tagger.WriteTags(ctx, finalPath, song, info); tagErr != nil {
		log.Warn("Tag writing failed", "error", tagErr)
	}

	log.Info("Download completed", "file", finalName)
	return finalPath, nil
}

// locateOutput polls the cache directory for the transcoded file. The
// external step's on-disk completion is not always observable from its call
// return, so the poll covers the gap; the collaborator's own output-path
// prediction is the last resort.
func (d *Downloader) locateOutput(videoID string, info *ytdlp.Info) string {
	pattern := filepath.Join(d.cacheDir, videoID+"*"+constants.ExtMP3)

	for attempt := 0; attempt < d.pollLimit; attempt++ {
		if p := newestMatch(pattern); p != "" {
			return p
		}
		time.Sleep(d.pollPause)
	}

	if predicted := info.OutputPath(); predicted != "" && storage.FileExists(predicted) {
		return predicted
	}
	return ""
}

// newestMatch returns the most recently modified file matching pattern.
func newestMatch(pattern string) string {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return ""
	}

	sort.Slice(matches, func(i, j int) bool {
		mi, errI := os.Stat(matches[i])
		mj, errJ := os.Stat(matches[j])
		if errI != nil || errJ != nil {
			return errJ != nil
		}
		return mi.ModTime().After(mj.ModTime())
	})

	for _, m := range matches {
		if storage.FileExists(m) {
			return m
		}
	}
	return ""
}

// cleanupTemp removes leftover temp artifacts sharing the raw identifier
// prefix. Deletion errors are ignored.
func (d *Downloader) cleanupTemp(videoID, finalPath string) {
	matches, err := filepath.Glob(filepath.Join(d.cacheDir, videoID+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if m == finalPath {
			continue
		}
		_ = storage.RemoveFile(m)
	}
}

func (d *Downloader) listCacheDir() []string {
	entries, err := os.ReadDir(d.cacheDir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
