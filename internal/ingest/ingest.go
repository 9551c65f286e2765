// Package ingest turns raw RSSI readings into stored distance estimates.
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"locator/internal/calibration"
	"locator/internal/metrics"
	"locator/internal/storage"
)

var (
	ErrUnknownStation = errors.New("unknown station")
	ErrInvalidRSSI    = errors.New("invalid rssi")
)

// Ingestor converts readings with the station's calibration model and stores
// them. OnReading, when set, runs after every stored reading.
type Ingestor struct {
	models    map[string]calibration.Model
	storage   *storage.Storage
	metrics   *metrics.Collector
	log       *slog.Logger
	OnReading func(station string)
}

func NewIngestor(models map[string]calibration.Model, s *storage.Storage, m *metrics.Collector, log *slog.Logger) *Ingestor {
	return &Ingestor{models: models, storage: s, metrics: m, log: log}
}

// Record stores one reading from source ("mqtt", "http") and returns the
// distance it maps to.
func (in *Ingestor) Record(station string, rssi float64, source string) (float64, error) {
	model, ok := in.models[station]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStation, station)
	}
	if math.IsNaN(rssi) || math.IsInf(rssi, 0) {
		return 0, fmt.Errorf("%w: %g", ErrInvalidRSSI, rssi)
	}

	distance := model.Distance(rssi)
	in.storage.Set(station, rssi, distance)
	in.metrics.ObserveReading(station, source)
	in.log.Info("stored station reading",
		"station", station,
		"rssi", rssi,
		"distance", distance,
		"source", source,
	)
	if distance < 0 {
		in.log.Warn("rssi outside calibrated range, negative distance", "station", station, "rssi", rssi)
	}

	if in.OnReading != nil {
		in.OnReading(station)
	}
	return distance, nil
}
