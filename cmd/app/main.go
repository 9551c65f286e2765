package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"locator/internal/api"
	"locator/internal/config"
	"locator/internal/ingest"
	"locator/internal/metrics"
	m "locator/internal/mosquitto"
	"locator/internal/position"
	"locator/internal/recorder"
	"locator/internal/storage"
)

func main() {
	log := setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	if err := run(log); err != nil {
		log.Error("service stopped", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load(os.Getenv, log)
	if err != nil {
		return err
	}

	estimator, err := position.NewEstimator(cfg.Stations, cfg.Policy)
	if err != nil {
		return err
	}
	log.Info("stations configured",
		"station_1", cfg.Stations[0].Label,
		"station_2", cfg.Stations[1].Label,
		"station_3", cfg.Stations[2].Label,
		"policy", cfg.Policy.Name(),
		"tolerance", cfg.Tolerance,
	)

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		return err
	}

	store := storage.NewStorage(cfg.HistorySize)
	ps := position.NewPositionService(store, estimator, cfg.Tolerance, collector, log)

	in := ingest.NewIngestor(cfg.Models, store, collector, log)
	in.OnReading = func(station string) {
		if _, err := ps.Refresh(); err != nil && !errors.Is(err, position.ErrNotEnoughStations) {
			log.Warn("position update failed", "station", station, "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Broker != "" {
		handler := m.NewHandler(in, log)
		client, err := m.NewClient(m.Config{
			Broker:   cfg.Broker,
			ClientId: cfg.ClientID,
			Username: cfg.Username,
			Password: cfg.Password,
			Topics:   cfg.Topics,
		}, handler, log)
		if err != nil {
			return err
		}
		log.Info("service connected to broker", "broker", cfg.Broker, "topics", strings.Join(cfg.Topics, ","))
		g.Go(func() error { return client.Run(ctx) })
	} else {
		log.Info("MOSQUITTO_BROKER not set, MQTT ingestion disabled")
	}

	rec, err := recorder.NewRecorder(ps, cfg.RecorderFile, log)
	if err != nil {
		return err
	}
	g.Go(func() error { return rec.Start(ctx, cfg.RecorderInterval) })

	srv := api.NewServer(cfg.HTTPAddr, log, ps, in, store, collector)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.HTTPServer().Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func setupLogger(level, format string) (log *slog.Logger) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		log = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		return
	}
	log = slog.New(slog.NewTextHandler(os.Stdout, opts))
	return
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
