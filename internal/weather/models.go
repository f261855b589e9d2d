package weather

import (
	"time"
)

// City is a fixed place the ingest job polls on every cycle.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DefaultCities is the city list polled when none is configured.
var DefaultCities = []City{
	{Name: "Paris", Lat: 48.8566, Lon: 2.3522},
	{Name: "New York", Lat: 40.7128, Lon: -74.0060},
	{Name: "Tokyo", Lat: 35.6895, Lon: 139.6917},
	{Name: "Sydney", Lat: -33.8688, Lon: 151.2093},
	{Name: "Cape Town", Lat: -33.9249, Lon: 18.4241},
}

// Reading is one stored weather observation for a city at a point in time.
type Reading struct {
	ID          int64     `json:"id"`
	CityName    string    `json:"city_name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int       `json:"humidity"`
	Pressure    int       `json:"pressure"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"` // always UTC, set on insert
}

// Observation is a provider reading normalized to metric units.
type Observation struct {
	Temperature float64
	FeelsLike   float64
	Humidity    int
	Pressure    int
	Description string
}

// TimeRange bounds a query by reading timestamp. Nil bounds are open.
// Both bounds are inclusive.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether ts falls inside the range.
func (r TimeRange) Contains(ts time.Time) bool {
	if r.From != nil && ts.Before(*r.From) {
		return false
	}
	if r.To != nil && ts.After(*r.To) {
		return false
	}
	return true
}

// Change notifier events, all published on the /data namespace.
const (
	EventLatestData = "latest_data"
	EventNewData    = "send_newdata"
	EventEditData   = "edit_data"
	EventDeleteData = "delete_data"
)
