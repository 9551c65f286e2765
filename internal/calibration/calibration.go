// Package calibration holds the per-station linear path-loss models that
// turn RSSI into distance, and fits them from reference measurements.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"locator/internal/position"
)

var (
	ErrTooFewSamples  = errors.New("calibration needs at least two samples")
	ErrConstantRSSI   = errors.New("calibration samples have a single rssi value")
	ErrPositiveSlope  = errors.New("calibration slope must be negative")
	ErrNonFiniteModel = errors.New("calibration model is not finite")
)

// Model maps RSSI to distance as Slope*rssi + Intercept.
type Model struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

func (m Model) Distance(rssi float64) float64 {
	return position.Distance(rssi, m.Slope, m.Intercept)
}

// Validate rejects models where a weaker signal would not mean a larger
// distance.
func (m Model) Validate() error {
	if math.IsNaN(m.Slope) || math.IsInf(m.Slope, 0) || math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return ErrNonFiniteModel
	}
	if m.Slope >= 0 {
		return fmt.Errorf("%w: got %g", ErrPositiveSlope, m.Slope)
	}
	return nil
}

// Sample is one reference measurement: a reading taken at a known distance.
type Sample struct {
	RSSI     float64
	Distance float64
}

// Fit is a fitted model and its coefficient of determination.
type Fit struct {
	Model    Model
	RSquared float64
}

// FitSamples fits a Model to samples with ordinary least squares.
func FitSamples(samples []Sample) (Fit, error) {
	if len(samples) < 2 {
		return Fit{}, fmt.Errorf("%w: got %d", ErrTooFewSamples, len(samples))
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.RSSI
		ys[i] = s.Distance
	}
	if stat.Variance(xs, nil) == 0 {
		return Fit{}, ErrConstantRSSI
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	m := Model{Slope: beta, Intercept: alpha}
	if err := m.Validate(); err != nil {
		return Fit{}, err
	}
	return Fit{Model: m, RSquared: stat.RSquared(xs, ys, nil, alpha, beta)}, nil
}
