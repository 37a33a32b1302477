package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imgbridge/imgbridge/internal/api"
	"github.com/imgbridge/imgbridge/internal/bridge"
	"github.com/imgbridge/imgbridge/internal/config"
	"github.com/imgbridge/imgbridge/internal/history"
	"github.com/imgbridge/imgbridge/internal/imaging"
	"github.com/imgbridge/imgbridge/internal/logging"
	"github.com/imgbridge/imgbridge/internal/profile"
	"github.com/imgbridge/imgbridge/internal/watcher"
	"github.com/imgbridge/imgbridge/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Info("starting imgbridged",
		"port", cfg.HTTPPort,
		"db", cfg.DBPath,
		"watch", cfg.WatchDirs,
		"max_bytes", cfg.MaxBytes,
		"max_megapixels", cfg.MaxMegapixels)

	store, err := history.Open(cfg.DBPath)
	if err != nil {
		log.Error("opening history store failed", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	conv := bridge.New(cfg.Limits(), log)
	conv.Start()

	profiles, err := profile.Load(cfg.ProfilesPath)
	if err != nil {
		log.Error("loading profiles failed", "path", cfg.ProfilesPath, "error", err)
		os.Exit(1)
	}
	if msgs := profiles.Validate(); len(msgs) > 0 {
		for _, m := range msgs {
			log.Error("invalid profile", "problem", m)
		}
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The watch pipeline only runs when directories are configured; the
	// HTTP and WebSocket surfaces work either way.
	var (
		queue  *worker.Queue
		runner *worker.Runner
		watch  *watcher.Watcher
	)
	if len(cfg.WatchDirs) > 0 {
		queue = worker.NewQueue(64)
		runner = worker.NewRunner(store, queue, conv, profiles, cfg.Limits(), cfg.MD5ChunkSize, log)
		runner.Start()

		watch, err = watcher.New(cfg.WatchDirs,
			queue,
			time.Duration(cfg.StabilityDelaySec)*time.Second,
			time.Duration(cfg.RescanIntervalSec)*time.Second,
			log)
		if err != nil {
			log.Error("creating watcher failed", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := watch.Start(ctx); err != nil {
				log.Error("watcher stopped", "error", err)
			}
		}()
		// Catch up on files that appeared while the daemon was down.
		go func() {
			time.Sleep(500 * time.Millisecond)
			watch.ScanAll()
		}()
	}

	defaults := imaging.EncodeOptions{JPEGQuality: cfg.JPEGQuality, GIFColors: cfg.GIFColors}
	server := api.NewServer(store, conv, queue, watch, cfg.Limits(), defaults, log)
	httpSrv := &http.Server{Addr: cfg.HTTPAddr(), Handler: server.Router}
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	log.Info("shutting down", "signal", s.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()

	// Stop intake front to back: no new filesystem events, no new queue
	// entries, no new HTTP work, then drain the runner and the bridge.
	if watch != nil {
		watch.Pause()
		cancel()
		_ = watch.Close()
	}
	if queue != nil {
		queue.StopAccepting()
	}
	_ = httpSrv.Shutdown(shutdownCtx)
	if runner != nil {
		if err := runner.Stop(shutdownCtx); err != nil {
			log.Warn("runner drain timed out", "error", err)
		}
	}
	if err := conv.Shutdown(shutdownCtx); err != nil {
		log.Warn("bridge shutdown timed out", "error", err)
	}
	log.Info("shutdown complete")
}
