// Command calendard runs the shared availability calendar server:
// a SQLite-backed event store, a WebSocket synchronization hub and
// the static client bundle on one HTTP port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/minyu3108/scheduling/calendar"
	"github.com/minyu3108/scheduling/config"
	"github.com/minyu3108/scheduling/logging"
	"github.com/minyu3108/scheduling/server"
	"github.com/minyu3108/scheduling/storage/sqlite"
	"github.com/minyu3108/scheduling/transport/ws"
	"github.com/minyu3108/scheduling/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	logging.Init(logging.GetConfigFromEnv())
	logger := logging.Default()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("loading configuration", slog.String("error", err.Error()))
	}

	store, err := sqlite.NewWithDataSource(cfg.Database)
	if err != nil {
		logging.Fatal("opening event store", slog.String("error", err.Error()))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.New(store, logger)
	defer hub.Close()

	wsHandler := ws.NewHandler(ctx, hub, logger)
	webServer := web.NewServer(os.DirFS(cfg.StaticDir), wsHandler, logger)

	if cfg.Sweep != nil && cfg.Sweep.Cron != "" {
		sweeper := cron.New()
		keep := cfg.Sweep.KeepDays
		_, err := sweeper.AddFunc(cfg.Sweep.Cron, func() {
			cutoff := calendar.At(time.Now().AddDate(0, 0, -keep))
			hub.SweepBefore(ctx, cutoff)
		})
		if err != nil {
			logging.Fatal("invalid sweep schedule",
				slog.String("cron", cfg.Sweep.Cron),
				slog.String("error", err.Error()),
			)
		}
		sweeper.Start()
		defer sweeper.Stop()
		logger.Info("retention sweep scheduled",
			slog.String("cron", cfg.Sweep.Cron),
			slog.Int("keep_days", keep),
		)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: webServer.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.Int("port", cfg.Port),
			slog.String("database", cfg.Database),
			slog.String("static_dir", cfg.StaticDir),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.LogError(shutdownCtx, err, "graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("http server failed", slog.String("error", err.Error()))
		}
	}
}
