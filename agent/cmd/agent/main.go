package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sensorlog/sensorlog/agent/internal/admin"
	"github.com/sensorlog/sensorlog/agent/internal/config"
	"github.com/sensorlog/sensorlog/agent/internal/httpx"
	"github.com/sensorlog/sensorlog/agent/internal/link"
	"github.com/sensorlog/sensorlog/agent/internal/sampler"
	"github.com/sensorlog/sensorlog/agent/internal/sensor"
	"github.com/sensorlog/sensorlog/agent/internal/shipper"
	"github.com/sensorlog/sensorlog/agent/internal/timestamp"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("sensorlog-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	ac := cfg.Agent
	if lvl, err := config.ParseLevel(ac.LogLevel); err == nil {
		level.Set(lvl)
	}
	slog.Info("config loaded",
		"collector_endpoint", ac.CollectorEndpoint,
		"device", ac.DeviceName,
		"experiment", ac.ExperimentID,
		"sensors", len(ac.Sensors),
		"flush_interval", ac.FlushInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Only the log level is reloaded; everything else needs a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			lvl, err := config.ParseLevel(updated.Agent.LogLevel)
			if err != nil {
				slog.Warn("config reload: bad log_level", "err", err)
				return
			}
			level.Set(lvl)
			slog.Info("config hot-reloaded", "log_level", lvl)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	kind, _ := ac.Timestamp.Kind() // validated by Load
	loc, _ := ac.Timestamp.Location()
	clock := timestamp.NewClock(loc)

	ship, err := buildShipper(ac, kind)
	if err != nil {
		slog.Error("failed to build shipper", "err", err)
		os.Exit(1)
	}

	if ac.Link.ConnectTimeout > 0 {
		if link.WaitConnected(ctx, ac.CollectorEndpoint, ac.Link.ConnectTimeout) {
			slog.Info("collector reachable", "endpoint", ac.CollectorEndpoint)
		} else {
			slog.Warn("collector not reachable yet, buffering until it is",
				"endpoint", ac.CollectorEndpoint, "waited", ac.Link.ConnectTimeout)
		}
	}
	checkCert(ctx, ac)

	var sensors []sensor.Sensor
	for _, sc := range ac.Sensors {
		s, err := sensor.New(sc)
		if err != nil {
			slog.Error("skipping sensor, could not build it", "sensor", sc.Name, "err", err)
			continue
		}
		sensors = append(sensors, s)
		slog.Info("registered sensor", "name", sc.Name, "type", sc.Type)
	}
	if len(sensors) == 0 {
		slog.Warn("no sensors configured, agent will only ship what is already buffered")
	}

	smp := sampler.New(sensors, ship, clock, ac.ExperimentID, ac.DeviceName, ac.SampleInterval)
	go smp.Run(ctx)

	shipDone := make(chan struct{})
	go func() {
		ship.Run(ctx)
		close(shipDone)
	}()

	var adminSrv *http.Server
	if ac.AdminAddr != "" {
		adminSrv = &http.Server{
			Addr:              ac.AdminAddr,
			Handler:           admin.New(ship),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("admin listening", "addr", ac.AdminAddr)
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("admin server error", "err", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("sensorlog-agent shutting down")

	if adminSrv != nil {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = adminSrv.Shutdown(shutCtx)
	}
	<-shipDone
	if n := ship.Buffered(); n > 0 {
		slog.Warn("entries left unsent at exit", "count", n)
	}
}

func buildShipper(ac config.AgentConfig, kind timestamp.Kind) (*shipper.Shipper, error) {
	client, err := httpx.NewClient(ac.CollectorAuth, ac.CollectorTLS, ac.Transport.Timeout)
	if err != nil {
		return nil, err
	}
	tr, err := shipper.NewHTTPTransport(shipper.TransportOptions{
		Client:      client,
		Compression: ac.Payload.Compression,
		Require2xx:  ac.Transport.Require2xx,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("transport ready", "instance_id", tr.InstanceID(), "compression", ac.Payload.Compression)

	var connected shipper.LinkCheck
	if ac.Link.ProbeTimeout > 0 {
		connected = link.Checker(ac.CollectorEndpoint, ac.Link.ProbeTimeout)
	}
	return shipper.New(shipper.Config{
		Endpoint:      ac.CollectorEndpoint,
		Timestamp:     kind,
		Serializer:    shipper.NewJSONSerializer(ac.Payload.TimestampField),
		Transport:     tr,
		FlushInterval: ac.FlushInterval,
		Connected:     connected,
	})
}

// checkCert logs the state of the collector's TLS certificate once at startup.
func checkCert(ctx context.Context, ac config.AgentConfig) {
	cs, err := link.CheckCert(ctx, ac.CollectorEndpoint, ac.CollectorTLS.InsecureSkipVerify, 10*time.Second)
	switch {
	case err != nil:
		slog.Warn("collector certificate check failed", "err", err)
	case cs == nil:
	case cs.Status != "valid":
		slog.Warn("collector certificate needs attention",
			"status", cs.Status, "days_left", cs.DaysLeft, "issuer", cs.Issuer)
	default:
		slog.Debug("collector certificate ok", "days_left", cs.DaysLeft)
	}
}
