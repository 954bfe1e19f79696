// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort        = "2001"
	DefaultCacheDir    = "audio_cache"
	DefaultSongAPIURL  = "http://127.0.0.1:8000"
	DefaultYTDLPPath   = "yt-dlp"
	DefaultMetadataDSN = ":memory:"
	DefaultConcurrency = 2
	DefaultConfigPath  = "config.toml"
)

// Cache lifetimes
const (
	SongCacheTTL    = 300 * time.Second
	AudioFileTTL    = 10 * time.Minute
	JanitorInterval = 1 * time.Minute
)

// Download orchestration
const (
	LockTimeout      = 30 * time.Second
	OutputPollLimit  = 30
	OutputPollPause  = 150 * time.Millisecond
	ReadyWaitTimeout = 5 * time.Second
	ReadyWaitPause   = 200 * time.Millisecond
	FetchTimeout     = 5 * time.Minute
)

// Cover art
const (
	CoverHTTPTimeout  = 10 * time.Second
	CoverSize         = 150
	CoverMaxBytes     = 60 * 1024
	CoverQuality      = 85
	CoverRetryQuality = 70
)

// HTTP client
const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultRetryCount  = 3
	DefaultRetryBase   = 1 * time.Second
)

// Search
const (
	MaxSearchResults = 12
)

// MIME types
const (
	MimeTypeMP3  = "audio/mpeg"
	MimeTypeJPEG = "image/jpeg"
)

// File extensions
const (
	ExtMP3 = ".mp3"
)

// File permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)
