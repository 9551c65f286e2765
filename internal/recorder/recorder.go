package recorder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"locator/internal/position"
)

var header = []string{"timestamp", "x", "y", "d1", "d2", "d3", "iterations", "selection"}

// Source produces the estimate to record; *position.PositionService
// implements it.
type Source interface {
	GetCurrentPosition() (position.Estimate, error)
}

// Recorder appends one CSV row per tick.
type Recorder struct {
	source Source
	file   *os.File
	writer *csv.Writer
	log    *slog.Logger
	now    func() time.Time
}

func NewRecorder(source Source, filename string, log *slog.Logger) (*Recorder, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", filename, err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	writer.Flush()

	return &Recorder{
		source: source,
		file:   file,
		writer: writer,
		log:    log,
		now:    time.Now,
	}, nil
}

// Start records on every tick until ctx is done, then closes the file.
func (r *Recorder) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.Close()
		case <-ticker.C:
			if err := r.RecordOnce(); err != nil {
				if errors.Is(err, position.ErrNotEnoughStations) {
					r.log.Debug("skipping record", "err", err)
				} else {
					r.log.Error("failed to write record", "err", err)
				}
			}
		}
	}
}

// RecordOnce writes a single row for the current estimate.
func (r *Recorder) RecordOnce() error {
	est, err := r.source.GetCurrentPosition()
	if err != nil {
		return err
	}

	record := []string{
		r.now().UTC().Format(time.RFC3339),
		formatFloat(est.Position.X),
		formatFloat(est.Position.Y),
		formatFloat(est.Distances[0]),
		formatFloat(est.Distances[1]),
		formatFloat(est.Distances[2]),
		strconv.Itoa(est.Iterations),
		est.Selection.String(),
	}
	if err := r.writer.Write(record); err != nil {
		return err
	}
	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return err
	}

	r.log.Debug("recorded position", "x", est.Position.X, "y", est.Position.Y)
	return nil
}

func (r *Recorder) Close() error {
	r.writer.Flush()
	return r.file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
