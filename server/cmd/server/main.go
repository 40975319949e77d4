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

	"github.com/sensorlog/sensorlog/server/internal/alerts"
	"github.com/sensorlog/sensorlog/server/internal/api"
	"github.com/sensorlog/sensorlog/server/internal/auth"
	"github.com/sensorlog/sensorlog/server/internal/config"
	"github.com/sensorlog/sensorlog/server/internal/receiver"
	"github.com/sensorlog/sensorlog/server/internal/store"
	"github.com/sensorlog/sensorlog/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("sensorlog-collector starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sc := cfg.Server
	slog.Info("config loaded",
		"http_port", sc.HTTPPort,
		"auth_mode", sc.Auth.Mode,
		"series_ttl", sc.Store.TTL,
		"history", sc.Store.History,
		"alert_rules", len(sc.Alerts.Rules),
	)
	if sc.Auth.Mode == "apikey" && sc.Auth.Key() == "" {
		slog.Warn("auth mode is apikey but no key is set; ingest is open", "key_env", sc.Auth.KeyEnv)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(sc.Store.TTL, sc.Store.History)
	go st.Run(ctx)

	alertEngine := alerts.New(sc.Alerts)

	hub := ws.New(st, alertEngine, 5*time.Second)
	go hub.Run(ctx)

	requireKey := auth.APIKey(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key())

	mux := http.NewServeMux()
	mux.Handle(receiver.Path, requireKey(receiver.New(st, alertEngine)))
	mux.Handle("/api/", api.New(st, alertEngine))
	mux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("sensorlog-collector shutting down")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	httpSrv.Shutdown(shutCtx) //nolint:errcheck
}
