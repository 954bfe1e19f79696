// Package config loads application configuration from a TOML file and the
// environment. Environment variables always win over file keys of the same
// name.
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/psptunes/psptunes/internal/constants"
)

//go:embed sample_config.toml
var SampleConfig string

// Config holds all application configuration
type Config struct {
	Port           string `toml:"port"`
	CacheDir       string `toml:"cache_dir"`
	SongAPIURL     string `toml:"song_api_url"`
	YTDLPPath      string `toml:"ytdlp_path"`
	FFmpegLocation string `toml:"ffmpeg_location"`
	MetadataDSN    string `toml:"metadata_dsn"`
	LogLevel       string `toml:"log_level"`
	LogFormat      string `toml:"log_format"`
}

// Load loads configuration with the following precedence: environment
// variable, config file key, built-in default. The config file location
// itself comes from CONFIG_PATH (default "config.toml"); a missing file is
// not an error.
func Load() *Config {
	file := loadFile(getEnv("CONFIG_PATH", constants.DefaultConfigPath))

	return &Config{
		Port:           pick("PORT", file.Port, constants.DefaultPort),
		CacheDir:       pick("CACHE_DIR", file.CacheDir, constants.DefaultCacheDir),
		SongAPIURL:     pick("SONG_API_URL", file.SongAPIURL, constants.DefaultSongAPIURL),
		YTDLPPath:      pick("YTDLP_PATH", file.YTDLPPath, constants.DefaultYTDLPPath),
		FFmpegLocation: pick("FFMPEG_LOCATION", file.FFmpegLocation, ""),
		MetadataDSN:    pick("METADATA_DSN", file.MetadataDSN, constants.DefaultMetadataDSN),
		LogLevel:       pick("LOG_LEVEL", file.LogLevel, "info"),
		LogFormat:      pick("LOG_FORMAT", file.LogFormat, "text"),
	}
}

// loadFile parses the TOML config file at path. A missing or unreadable file
// yields a zero Config so the caller falls through to env/defaults.
func loadFile(path string) Config {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to parse config file %s: %v\n", path, err)
		return Config{}
	}
	return cfg
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.CacheDir == "" {
		errors = append(errors, "CACHE_DIR cannot be empty")
	}

	if c.SongAPIURL == "" {
		errors = append(errors, "SONG_API_URL cannot be empty")
	} else {
		if _, err := url.Parse(c.SongAPIURL); err != nil {
			errors = append(errors, fmt.Sprintf("SONG_API_URL is not a valid URL: %s", c.SongAPIURL))
		}
	}

	if c.YTDLPPath == "" {
		errors = append(errors, "YTDLP_PATH cannot be empty")
	}

	if c.MetadataDSN == "" {
		errors = append(errors, "METADATA_DSN cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// pick returns the environment value for key if set, else the config-file
// value, else the fallback.
func pick(key, fileValue, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return fallback
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
