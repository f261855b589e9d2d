package weather

import (
	"context"
	"time"
)

// Source abstracts a weather data provider (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Source interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (Observation, error)
}

// Store is the contract the memory, postgres and sqlite stores satisfy.
// Lookups by id return ErrNotFound when the row does not exist.
type Store interface {
	Insert(ctx context.Context, r Reading) (Reading, error)
	Get(ctx context.Context, id int64) (Reading, error)
	List(ctx context.Context) ([]Reading, error)
	ListByCity(ctx context.Context, city string, rng TimeRange) ([]Reading, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Reading, error)
	Update(ctx context.Context, r Reading) (Reading, error)
	Delete(ctx context.Context, id int64) (Reading, error)
}

// Notifier pushes an event to subscribed clients. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event string, payload any)
}
