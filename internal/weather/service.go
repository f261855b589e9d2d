package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service owns the ingest write path and the CRUD operations over the store,
// and pushes every mutation to the notifier.
type Service struct {
	store    Store
	source   Source
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp new readings.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, any) {}

// NewService creates a new Service. A nil notifier disables broadcasts.
func NewService(store Store, source Source, notifier Notifier, opts ...Option) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := &Service{
		store:    store,
		source:   source,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the insert time at the precision every store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// FetchAndStore fetches the current observation for a city and inserts it
// as a new reading.
func (s *Service) FetchAndStore(ctx context.Context, city City) (Reading, error) {
	if s.source == nil {
		return Reading{}, fmt.Errorf("%w: no weather source configured", ErrSourceUnavailable)
	}

	obs, err := s.source.Fetch(ctx, city.Lat, city.Lon)
	if err != nil {
		return Reading{}, fmt.Errorf("fetch %s from %s: %w", city.Name, s.source.Name(), err)
	}

	stored, err := s.store.Insert(ctx, Reading{
		CityName:    city.Name,
		Latitude:    city.Lat,
		Longitude:   city.Lon,
		Temperature: obs.Temperature,
		FeelsLike:   obs.FeelsLike,
		Humidity:    obs.Humidity,
		Pressure:    obs.Pressure,
		Description: obs.Description,
		Timestamp:   s.timestamp(),
	})
	if err != nil {
		return Reading{}, fmt.Errorf("store reading for %s: %w", city.Name, err)
	}

	s.logger.Debug("stored reading", "city", city.Name, "id", stored.ID, "source", s.source.Name())
	return stored, nil
}

// List returns every stored reading.
func (s *Service) List(ctx context.Context) ([]Reading, error) {
	return s.store.List(ctx)
}

// Get returns one reading or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Reading, error) {
	return s.store.Get(ctx, id)
}

// ListByCity returns the readings of one city inside rng.
func (s *Service) ListByCity(ctx context.Context, city string, rng TimeRange) ([]Reading, error) {
	if city == "" {
		return nil, fmt.Errorf("%w: city is required", ErrValidation)
	}
	return s.store.ListByCity(ctx, city, rng)
}

// Recent returns the readings stamped within the last window.
func (s *Service) Recent(ctx context.Context, window time.Duration) ([]Reading, error) {
	now := s.now().UTC()
	return s.store.ListBetween(ctx, now.Add(-window), now)
}

// PublishRecent broadcasts the readings of the last window as latest_data.
// Nothing is sent when the query fails.
func (s *Service) PublishRecent(ctx context.Context, window time.Duration) error {
	readings, err := s.Recent(ctx, window)
	if err != nil {
		return fmt.Errorf("query recent readings: %w", err)
	}
	if readings == nil {
		readings = []Reading{}
	}
	s.notifier.Notify(ctx, EventLatestData, readings)
	return nil
}

// Create validates and inserts a manual reading, then broadcasts it.
func (s *Service) Create(ctx context.Context, in ReadingInput) (Reading, error) {
	if err := in.Validate(); err != nil {
		return Reading{}, err
	}

	r := in.toReading()
	r.ID = 0
	r.Timestamp = s.timestamp()

	created, err := s.store.Insert(ctx, r)
	if err != nil {
		return Reading{}, err
	}

	s.notifier.Notify(ctx, EventNewData, created)
	return created, nil
}

// Update replaces every mutable field of an existing reading, then broadcasts it.
// The id and timestamp are kept.
func (s *Service) Update(ctx context.Context, in ReadingInput) (Reading, error) {
	if in.ID <= 0 {
		return Reading{}, fmt.Errorf("%w: id is required", ErrValidation)
	}
	if err := in.Validate(); err != nil {
		return Reading{}, err
	}

	updated, err := s.store.Update(ctx, in.toReading())
	if err != nil {
		return Reading{}, err
	}

	s.notifier.Notify(ctx, EventEditData, updated)
	return updated, nil
}

// Delete removes a reading and broadcasts its id.
func (s *Service) Delete(ctx context.Context, id int64) (Reading, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("delete reading failed", "id", id, "error", err)
		}
		return Reading{}, err
	}

	s.notifier.Notify(ctx, EventDeleteData, id)
	return deleted, nil
}
