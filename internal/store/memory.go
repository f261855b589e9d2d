package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-feed/internal/weather"
)

// ErrNotFound is returned when no reading exists for an id.
var ErrNotFound = weather.ErrNotFound

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Ids are assigned sequentially starting at 1 and never reused.
type MemoryStore struct {
	mu sync.RWMutex

	// key: reading id
	data   map[int64]weather.Reading
	nextID int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[int64]weather.Reading),
		nextID: 1,
	}
}

// Insert assigns the next id and stores the reading.
func (s *MemoryStore) Insert(_ context.Context, r weather.Reading) (weather.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID
	s.nextID++
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	s.data[r.ID] = r
	return r, nil
}

// Get returns the reading with the given id.
func (s *MemoryStore) Get(_ context.Context, id int64) (weather.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[id]
	if !ok {
		return weather.Reading{}, ErrNotFound
	}
	return r, nil
}

// List returns every reading ordered by id.
func (s *MemoryStore) List(_ context.Context) ([]weather.Reading, error) {
	return s.filter(func(weather.Reading) bool { return true }), nil
}

// ListByCity returns the readings of a city whose timestamp lies in rng (inclusive).
func (s *MemoryStore) ListByCity(_ context.Context, city string, rng weather.TimeRange) ([]weather.Reading, error) {
	return s.filter(func(r weather.Reading) bool {
		return r.CityName == city && rng.Contains(r.Timestamp)
	}), nil
}

// ListBetween returns all readings with from <= timestamp <= to.
func (s *MemoryStore) ListBetween(_ context.Context, from, to time.Time) ([]weather.Reading, error) {
	rng := weather.TimeRange{From: &from, To: &to}
	return s.filter(func(r weather.Reading) bool { return rng.Contains(r.Timestamp) }), nil
}

// Update replaces the mutable fields of an existing reading.
func (s *MemoryStore) Update(_ context.Context, r weather.Reading) (weather.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[r.ID]
	if !ok {
		return weather.Reading{}, ErrNotFound
	}
	r.Timestamp = existing.Timestamp
	s.data[r.ID] = r
	return r, nil
}

// Delete removes a reading and returns it.
func (s *MemoryStore) Delete(_ context.Context, id int64) (weather.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[id]
	if !ok {
		return weather.Reading{}, ErrNotFound
	}
	delete(s.data, id)
	return r, nil
}

func (s *MemoryStore) filter(keep func(weather.Reading) bool) []weather.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]weather.Reading, 0, len(s.data))
	for _, r := range s.data {
		if keep(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
