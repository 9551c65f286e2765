package position

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"locator/internal/storage"
)

// Observer receives the outcome of every refresh.
type Observer interface {
	ObserveEstimate(policy string, est Estimate, err error)
}

// PositionService estimates the transmitter position from the latest
// distances in storage and fans successful estimates out to subscribers.
type PositionService struct {
	storage   *storage.Storage
	estimator Estimator
	tolerance float64
	observer  Observer
	log       *slog.Logger

	mu   sync.Mutex
	subs map[chan Estimate]struct{}
}

func NewPositionService(s *storage.Storage, estimator Estimator, tolerance float64, observer Observer, log *slog.Logger) *PositionService {
	return &PositionService{
		storage:   s,
		estimator: estimator,
		tolerance: tolerance,
		observer:  observer,
		log:       log,
		subs:      make(map[chan Estimate]struct{}),
	}
}

func (ps *PositionService) Stations() [3]Station {
	return ps.estimator.Frame().Stations
}

// GetCurrentPosition runs the estimator on the latest stored distances. It
// neither observes nor publishes the result.
func (ps *PositionService) GetCurrentPosition() (Estimate, error) {
	data := ps.storage.GetAll()

	var (
		r       [3]float64
		missing []string
	)
	for i, st := range ps.Stations() {
		d, ok := data[st.Label]
		if !ok {
			missing = append(missing, st.Label)
			continue
		}
		r[i] = d.Distance
	}
	if len(missing) > 0 {
		return Estimate{}, fmt.Errorf("%w: no reading from %s", ErrNotEnoughStations, strings.Join(missing, ", "))
	}

	est, err := ps.estimator.EstimatePosition(r[0], r[1], r[2], ps.tolerance)
	if err != nil {
		return Estimate{}, err
	}
	return est, nil
}

// Refresh computes a new estimate after a reading arrives, reports it to the
// observer and publishes it to subscribers.
func (ps *PositionService) Refresh() (Estimate, error) {
	est, err := ps.GetCurrentPosition()
	ps.observe(est, err)
	if err != nil {
		return Estimate{}, err
	}
	ps.publish(est)
	return est, nil
}

// Subscribe returns a channel of published estimates and a function that
// cancels the subscription. Slow subscribers miss estimates.
func (ps *PositionService) Subscribe(buffer int) (<-chan Estimate, func()) {
	ch := make(chan Estimate, buffer)
	ps.mu.Lock()
	ps.subs[ch] = struct{}{}
	ps.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			ps.mu.Lock()
			delete(ps.subs, ch)
			ps.mu.Unlock()
			close(ch)
		})
	}
}

func (ps *PositionService) publish(est Estimate) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	for ch := range ps.subs {
		select {
		case ch <- est:
		default:
			ps.log.Debug("subscriber lagging, dropping estimate")
		}
	}
}

func (ps *PositionService) observe(est Estimate, err error) {
	if ps.observer == nil {
		return
	}
	ps.observer.ObserveEstimate(ps.estimator.Policy().Name(), est, err)
}
