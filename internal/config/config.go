// Package config loads the service configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"locator/internal/calibration"
	"locator/internal/position"
	"locator/internal/storage"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT; an empty broker disables the subscriber.
	Broker   string
	ClientID string
	Username string
	Password string
	Topics   []string

	HTTPAddr string

	Stations  [3]position.Station
	Models    map[string]calibration.Model
	Policy    position.Policy
	Tolerance float64

	RecorderFile     string
	RecorderInterval time.Duration
	HistorySize      int
}

// Getenv looks up one variable; os.Getenv satisfies it.
type Getenv func(key string) string

var defaultStations = [3]position.Station{
	{Label: "station_1", Point: position.Point{X: 2, Y: 1}},
	{Label: "station_2", Point: position.Point{X: 13, Y: 6}},
	{Label: "station_3", Point: position.Point{X: 12, Y: 1}},
}

var defaultModel = calibration.Model{Slope: -0.25, Intercept: -10}

// Load reads the configuration. Malformed optional values are logged and
// replaced by defaults; malformed stations, calibration or solver settings
// are errors.
func Load(getenv Getenv, log *slog.Logger) (Config, error) {
	cfg := Config{
		Broker:           getenv("MOSQUITTO_BROKER"),
		ClientID:         getenv("MOSQUITTO_CLIENT_ID"),
		Username:         getenv("MOSQUITTO_USER"),
		Password:         getenv("MOSQUITTO_PASSWORD"),
		HTTPAddr:         getenv("HTTP_ADDR"),
		Stations:         defaultStations,
		Tolerance:        0.01,
		RecorderFile:     getenv("RECORDER_FILE"),
		RecorderInterval: 2 * time.Second,
		HistorySize:      storage.DefaultHistorySize,
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "locator"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.RecorderFile == "" {
		cfg.RecorderFile = "data/positions.csv"
	}
	for _, t := range strings.Split(getenv("MOSQUITTO_TOPIC"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.Topics = append(cfg.Topics, t)
		}
	}
	if cfg.Broker != "" && len(cfg.Topics) == 0 {
		cfg.Topics = []string{"locator/readings"}
	}

	if v := getenv("TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || !(f > 0) {
			log.Warn("invalid TOLERANCE value, using default", "value", v, "default", cfg.Tolerance)
		} else {
			cfg.Tolerance = f
		}
	}
	if v := getenv("RECORDER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Warn("invalid RECORDER_INTERVAL value, using default", "value", v, "default", cfg.RecorderInterval)
		} else {
			cfg.RecorderInterval = d
		}
	}
	if v := getenv("HISTORY_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Warn("invalid HISTORY_SIZE value, using default", "value", v, "default", cfg.HistorySize)
		} else {
			cfg.HistorySize = n
		}
	}

	for i := range cfg.Stations {
		key := fmt.Sprintf("STATION_%d", i+1)
		if v := getenv(key); v != "" {
			st, err := ParseStation(v)
			if err != nil {
				return Config{}, fmt.Errorf("%s: %w", key, err)
			}
			cfg.Stations[i] = st
		}
	}

	models, err := loadModels(getenv, cfg.Stations, log)
	if err != nil {
		return Config{}, err
	}
	cfg.Models = models

	policy, err := loadPolicy(getenv)
	if err != nil {
		return Config{}, err
	}
	cfg.Policy = policy

	return cfg, nil
}

// ParseStation parses "label:x,y".
func ParseStation(s string) (position.Station, error) {
	label, coords, ok := strings.Cut(s, ":")
	label = strings.TrimSpace(label)
	if !ok || label == "" {
		return position.Station{}, fmt.Errorf("station %q: want label:x,y", s)
	}
	p, err := ParsePoint(coords)
	if err != nil {
		return position.Station{}, fmt.Errorf("station %q: %w", label, err)
	}
	return position.Station{Label: label, Point: p}, nil
}

// ParsePoint parses "x,y".
func ParsePoint(s string) (position.Point, error) {
	vals, err := parseFloats(s, ",", 2)
	if err != nil {
		return position.Point{}, err
	}
	return position.Point{X: vals[0], Y: vals[1]}, nil
}

// EnvKey is the variable suffix used for a station label.
func EnvKey(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, label)
}

func loadModels(getenv Getenv, stations [3]position.Station, log *slog.Logger) (map[string]calibration.Model, error) {
	models := make(map[string]calibration.Model, len(stations))
	for _, st := range stations {
		suffix := EnvKey(st.Label)
		model := defaultModel

		if v := getenv("CALIBRATION_SAMPLES_" + suffix); v != "" {
			samples, err := parseSamples(v)
			if err != nil {
				return nil, fmt.Errorf("CALIBRATION_SAMPLES_%s: %w", suffix, err)
			}
			fit, err := calibration.FitSamples(samples)
			if err != nil {
				return nil, fmt.Errorf("CALIBRATION_SAMPLES_%s: %w", suffix, err)
			}
			log.Info("fitted calibration",
				"station", st.Label,
				"slope", fit.Model.Slope,
				"intercept", fit.Model.Intercept,
				"r_squared", fit.RSquared,
			)
			model = fit.Model
		} else if v := getenv("CALIBRATION_" + suffix); v != "" {
			vals, err := parseFloats(v, ",", 2)
			if err != nil {
				return nil, fmt.Errorf("CALIBRATION_%s: %w", suffix, err)
			}
			model = calibration.Model{Slope: vals[0], Intercept: vals[1]}
		} else {
			log.Warn("no calibration for station, using default", "station", st.Label,
				"slope", model.Slope, "intercept", model.Intercept)
		}

		if err := model.Validate(); err != nil {
			return nil, fmt.Errorf("station %s: %w", st.Label, err)
		}
		models[st.Label] = model
	}
	return models, nil
}

func loadPolicy(getenv Getenv) (position.Policy, error) {
	name := strings.ToLower(strings.TrimSpace(getenv("SOLVER_POLICY")))
	switch name {
	case "", "convergence":
		p := position.DefaultConvergenceDriven()
		if err := setFloat(getenv, "SOLVER_EPSILON", &p.Epsilon); err != nil {
			return nil, err
		}
		if err := setInt(getenv, "SOLVER_MAX_ITER", &p.MaxIter); err != nil {
			return nil, err
		}
		if v := getenv("SOLVER_SEED"); v != "" {
			seed, err := ParsePoint(v)
			if err != nil {
				return nil, fmt.Errorf("SOLVER_SEED: %w", err)
			}
			p.Seed = &seed
		}
		return p, nil
	case "fixed":
		p := position.DefaultFixedStep()
		if err := setInt(getenv, "SOLVER_ITERATIONS", &p.Iterations); err != nil {
			return nil, err
		}
		if err := setFloat(getenv, "SOLVER_ETA", &p.Eta); err != nil {
			return nil, err
		}
		if v := getenv("SOLVER_SEED"); v != "" {
			seed, err := ParsePoint(v)
			if err != nil {
				return nil, fmt.Errorf("SOLVER_SEED: %w", err)
			}
			p.Seed = seed
		}
		return p, nil
	case "lsq":
		p := position.DefaultLeastSquares()
		if err := setInt(getenv, "SOLVER_MAX_ITER", &p.MaxIter); err != nil {
			return nil, err
		}
		if err := setFloat(getenv, "SOLVER_TOLERANCE", &p.Tolerance); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("SOLVER_POLICY: unknown policy %q (want convergence, fixed or lsq)", name)
	}
}

func setFloat(getenv Getenv, key string, dst *float64) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setInt(getenv Getenv, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// parseSamples parses "rssi:distance;rssi:distance;...".
func parseSamples(s string) ([]calibration.Sample, error) {
	var samples []calibration.Sample
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		vals, err := parseFloats(part, ":", 2)
		if err != nil {
			return nil, err
		}
		samples = append(samples, calibration.Sample{RSSI: vals[0], Distance: vals[1]})
	}
	return samples, nil
}

func parseFloats(s, sep string, n int) ([]float64, error) {
	parts := strings.Split(s, sep)
	if len(parts) != n {
		return nil, fmt.Errorf("%q: want %d values separated by %q", s, n, sep)
	}
	vals := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		vals[i] = f
	}
	return vals, nil
}
