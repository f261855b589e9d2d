package providers

import (
	"fmt"
	"net/http"

	"github.com/i474232898/weather-feed/internal/weather"
)

// Keys holds the provider credentials.
type Keys struct {
	OpenWeather string
	WeatherAPI  string
}

// New returns the provider registered under name.
func New(name string, client *http.Client, keys Keys) (weather.Source, error) {
	switch name {
	case "", "openweather":
		return NewOpenWeatherProvider(client, keys.OpenWeather), nil
	case "weatherapi":
		return NewWeatherAPIProvider(client, keys.WeatherAPI), nil
	case "openmeteo":
		return NewOpenMeteoProvider(client), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", name)
	}
}
