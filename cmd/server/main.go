package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ytfetch/internal/downloader"
	"ytfetch/internal/platform/config"
	"ytfetch/internal/platform/logger"
	"ytfetch/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "3000")
	storageDir := config.GetEnv("STORAGE_DIR", "downloads")
	retention := config.GetEnvDuration("RETENTION_WINDOW", time.Hour)
	sweepInterval := config.GetEnvDuration("SWEEP_INTERVAL", time.Hour)
	serveGrace := config.GetEnvDuration("SERVE_GRACE", downloader.DefaultServeGrace)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	log := logger.New(logLevel, logFormat)

	storage := downloader.NewStorage(afero.NewOsFs(), storageDir)
	if err := storage.Init(); err != nil {
		// The service cannot function without its storage location.
		log.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	extractor := downloader.NewExtractor()
	converter := downloader.NewFFmpegConverter()
	svc := downloader.NewService(extractor, converter, storage, serveGrace, log)
	met := metrics.New()
	h := downloader.NewHandler(svc, log, met)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeper := downloader.NewSweeper(storage, sweepInterval, retention, log, met)
	go sweeper.Run(sweepCtx)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetStoredFiles(storage.Count()) }).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"storage_dir", storageDir,
		"retention_window", retention.String(),
		"sweep_interval", sweepInterval.String(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
