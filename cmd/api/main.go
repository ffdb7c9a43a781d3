package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PratikDhanave/audit-sync-monitor/internal/config"
	"github.com/PratikDhanave/audit-sync-monitor/internal/httpserver"
	"github.com/PratikDhanave/audit-sync-monitor/internal/ingest"
	"github.com/PratikDhanave/audit-sync-monitor/internal/ledger"
	"github.com/PratikDhanave/audit-sync-monitor/internal/live"
	"github.com/PratikDhanave/audit-sync-monitor/internal/remote"
	"github.com/PratikDhanave/audit-sync-monitor/internal/scheduler"
	"github.com/PratikDhanave/audit-sync-monitor/internal/store"
)

// main boots the service: config → store → ledger → pipeline → scheduler → HTTP server.
func main() {
	// Load runtime config from CONFIG_PATH and the environment.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		Path:   cfg.Store.Path,
		DBURL:  cfg.Store.DBURL,
	}, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	// Rebuild the dedup ledger from everything already persisted.
	entries, err := st.Entries(ctx)
	switch {
	case errors.Is(err, store.ErrCorrupt):
		logger.Error("sync log is corrupt, starting with an empty ledger", "error", err)
	case err != nil:
		log.Fatal(err)
	}
	l := ledger.FromEntries(entries)
	logger.Info("ledger rebuilt", "entries", len(entries), "ids", l.Len())

	client := remote.New(remote.Config{
		BaseURL:       cfg.Remote.BaseURL,
		Token:         cfg.Remote.Token,
		SessionCookie: cfg.Remote.SessionCookie,
		Timeout:       cfg.Remote.Timeout,
	})

	pipeline := ingest.New(client, st, l, logger)
	hub := live.NewHub(logger)
	defer hub.Close()
	pipeline.OnPersist(hub.Publish)

	sched := scheduler.New(pipeline, cfg.Schedule.Interval, logger)
	sched.Start(ctx)
	defer sched.Stop()

	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Store:     st,
		Ledger:    l,
		Collector: sched,
		Provider:  client,
		Live:      hub,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", srv.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
