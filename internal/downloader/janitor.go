package downloader

import (
	"os"
	"path/filepath"
	"time"

	"github.com/psptunes/psptunes/internal/constants"
	"github.com/psptunes/psptunes/internal/logger"
	"github.com/psptunes/psptunes/internal/storage"
)

// Janitor evicts cached audio files past their time-to-live. Safe to run
// concurrently with active downloads: only promoted files get old enough to
// qualify.
type Janitor struct {
	cacheDir string
	ttl      time.Duration
	log      *logger.Logger
}

func NewJanitor(cacheDir string, ttl time.Duration, log *logger.Logger) *Janitor {
	if ttl <= 0 {
		ttl = constants.AudioFileTTL
	}
	if log == nil {
		log = logger.Default()
	}
	return &Janitor{
		cacheDir: cacheDir,
		ttl:      ttl,
		log:      log.WithComponent("janitor"),
	}
}

// Sweep deletes cached MP3 files whose modification time is older than the
// TTL and returns the number deleted. Per-file errors are logged and do not
// stop the sweep.
func (j *Janitor) Sweep() int {
	matches, err := filepath.Glob(filepath.Join(j.cacheDir, "*"+constants.ExtMP3))
	if err != nil {
		j.log.Error("Sweep failed", "dir", j.cacheDir, "error", err)
		return 0
	}

	cutoff := time.Now().Add(-j.ttl)
	deleted := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := storage.RemoveFile(path); err != nil {
			j.log.Warn("Failed to delete old file", "file", filepath.Base(path), "error", err)
			continue
		}
		deleted++
		j.log.Info("Cleaned up old file", "file", filepath.Base(path))
	}

	if deleted > 0 {
		j.log.Info("Sweep finished", "deleted", deleted)
	}
	return deleted
}
