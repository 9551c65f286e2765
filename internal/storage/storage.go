package storage

import (
	"sync"
	"time"
)

const DefaultHistorySize = 32

// StationData holds the latest reading of one station.
type StationData struct {
	RSSI      float64   `json:"rssi"`
	Distance  float64   `json:"distance"`
	UpdatedAt time.Time `json:"updated_at"`
	// History holds past distances, oldest first, including the latest.
	History []float64 `json:"history"`
}

// Storage keeps the latest reading and a bounded distance history per station.
type Storage struct {
	mu          sync.RWMutex
	data        map[string]StationData
	historySize int
	now         func() time.Time
}

func NewStorage(historySize int) *Storage {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Storage{
		data:        make(map[string]StationData),
		historySize: historySize,
		now:         time.Now,
	}
}

// Set records a reading for stationID.
func (s *Storage) Set(stationID string, rssi, distance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.data[stationID]
	history := append(d.History, distance)
	if len(history) > s.historySize {
		// drop from the front without keeping the old backing array alive
		history = append([]float64(nil), history[len(history)-s.historySize:]...)
	}

	s.data[stationID] = StationData{
		RSSI:      rssi,
		Distance:  distance,
		UpdatedAt: s.now(),
		History:   history,
	}
}

// Get returns a copy of the data for stationID.
func (s *Storage) Get(stationID string) (StationData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.data[stationID]
	if !ok {
		return StationData{}, false
	}
	return d.clone(), true
}

// GetAll returns a copy of every station's data.
func (s *Storage) GetAll() map[string]StationData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]StationData, len(s.data))
	for k, v := range s.data {
		result[k] = v.clone()
	}
	return result
}

func (d StationData) clone() StationData {
	d.History = append([]float64(nil), d.History...)
	return d
}
