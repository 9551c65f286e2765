package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"locator/internal/ingest"
	"locator/internal/metrics"
	"locator/internal/position"
	"locator/internal/storage"
)

// Positioner is the part of *position.PositionService the API uses.
type Positioner interface {
	GetCurrentPosition() (position.Estimate, error)
	Stations() [3]position.Station
	Subscribe(buffer int) (<-chan position.Estimate, func())
}

// Recorder stores one reading; *ingest.Ingestor implements it.
type Recorder interface {
	Record(station string, rssi float64, source string) (float64, error)
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	positions  Positioner
	recorder   Recorder
	storage    *storage.Storage
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, positions Positioner, recorder Recorder, s *storage.Storage, m *metrics.Collector) *Server {
	srv := &Server{
		positions: positions,
		recorder:  recorder,
		storage:   s,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", srv.handlePosition)
	mux.HandleFunc("POST /sigfox", srv.handleSigfox)
	mux.HandleFunc("GET /api/stations", srv.handleStations)
	mux.HandleFunc("GET /ws", srv.handleStream)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		srv.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", m.Handler())

	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return srv
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

type positionResponse struct {
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Distances  [3]float64 `json:"distances"`
	Iterations int        `json:"iterations"`
	Selection  string     `json:"selection"`
	Policy     string     `json:"policy"`
}

func newPositionResponse(est position.Estimate) positionResponse {
	return positionResponse{
		X:          est.Position.X,
		Y:          est.Position.Y,
		Distances:  est.Distances,
		Iterations: est.Iterations,
		Selection:  est.Selection.String(),
		Policy:     est.Policy,
	}
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	est, err := s.positions.GetCurrentPosition()
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, position.ErrNotEnoughStations):
			status = http.StatusServiceUnavailable
		case errors.Is(err, position.ErrSolverDegenerate), errors.Is(err, position.ErrNonConvergence):
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPositionResponse(est))
}

// handleSigfox ingests a form-encoded reading: station=<label>&rssi=<value>.
func (s *Server) handleSigfox(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	station := strings.TrimSpace(r.PostFormValue("station"))
	rssi, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("rssi")), 64)
	if station == "" || err != nil {
		s.writeError(w, http.StatusBadRequest, errors.New("form needs station and numeric rssi"))
		return
	}

	distance, err := s.recorder.Record(station, rssi, "http")
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrUnknownStation) || errors.Is(err, ingest.ErrInvalidRSSI) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"station": station, "rssi": rssi, "distance": distance})
}

type stationResponse struct {
	position.Station
	Reading *storage.StationData `json:"reading,omitempty"`
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	data := s.storage.GetAll()
	stations := s.positions.Stations()
	resp := make([]stationResponse, 0, len(stations))
	for _, st := range stations {
		sr := stationResponse{Station: st}
		if d, ok := data[st.Label]; ok {
			sr.Reading = &d
		}
		resp = append(resp, sr)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "component", "api", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws" {
				logger.Info("websocket request", "component", "api", "remote_ip", r.RemoteAddr)
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
