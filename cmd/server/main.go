package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/psptunes/psptunes/internal/config"
	"github.com/psptunes/psptunes/internal/constants"
	"github.com/psptunes/psptunes/internal/cover"
	"github.com/psptunes/psptunes/internal/downloader"
	"github.com/psptunes/psptunes/internal/httpapp"
	"github.com/psptunes/psptunes/internal/logger"
	"github.com/psptunes/psptunes/internal/metadata"
	"github.com/psptunes/psptunes/internal/songapi"
	"github.com/psptunes/psptunes/internal/storage"
	"github.com/psptunes/psptunes/internal/store"
	"github.com/psptunes/psptunes/internal/tagging"
	"github.com/psptunes/psptunes/internal/worker"
	"github.com/psptunes/psptunes/internal/ytdlp"
	"github.com/psptunes/psptunes/web"
)

func main() {
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	if err := storage.EnsureDir(cfg.CacheDir); err != nil {
		appLogger.Error("Failed to create cache dir", "dir", cfg.CacheDir, "error", err)
		os.Exit(1)
	}

	// Initialize metadata cache store
	db, err := store.NewSQLiteDB(cfg.MetadataDSN)
	if err != nil {
		appLogger.Error("Failed to init metadata store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Song metadata provider with caching
	songClient := songapi.NewClient(cfg.SongAPIURL)
	songs := songapi.NewCachedProvider(songClient, db, constants.SongCacheTTL, appLogger)

	// yt-dlp client
	ytOpts := []ytdlp.Option{}
	if cfg.FFmpegLocation != "" {
		ytOpts = append(ytOpts, ytdlp.WithFFmpegLocation(cfg.FFmpegLocation))
	}
	yt, err := ytdlp.New(cfg.YTDLPPath, ytOpts...)
	if err != nil {
		appLogger.Error("Failed to init yt-dlp client", "error", err)
		os.Exit(1)
	}

	// Download pipeline
	resolver := metadata.NewResolver(yt, appLogger)
	covers := cover.NewTransformer(nil, appLogger)
	tagger := tagging.NewWriter(covers, appLogger)
	locks := downloader.NewLocks()
	dl := downloader.New(cfg.CacheDir, locks, resolver, songs, yt, tagger, appLogger)

	// Background workers and cache janitor
	janitor := downloader.NewJanitor(cfg.CacheDir, constants.AudioFileTTL, appLogger)
	pool := worker.NewPool(dl, janitor, appLogger)
	pool.Start()
	defer pool.Stop()

	// Clear out leftovers from a previous run
	janitor.Sweep()

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Serve Static Files from embedded filesystem
	r.Handle("/static/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := "static" + r.URL.Path[len("/static"):]
		data, err := web.Files.ReadFile(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		contentType := "application/octet-stream"
		switch {
		case strings.HasSuffix(path, ".css"):
			contentType = "text/css"
		case strings.HasSuffix(path, ".js"):
			contentType = "application/javascript"
		case strings.HasSuffix(path, ".png"):
			contentType = "image/png"
		case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
			contentType = "image/jpeg"
		case strings.HasSuffix(path, ".svg"):
			contentType = "image/svg+xml"
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}))

	// Routes
	h := httpapp.NewHandler(songs, dl, pool, yt, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
