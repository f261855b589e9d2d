package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-feed/internal/weather"
)

// OpenMeteoProvider implements the weather.Source interface for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	client   *http.Client
	circuits *circuits
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		client:   client,
		circuits: newCircuits("openmeteo"),
	}
}

// WithBaseURL points the provider at another endpoint (used by tests).
func (p *OpenMeteoProvider) WithBaseURL(u string) *OpenMeteoProvider {
	p.baseURL = u
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Observation, error) {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", lat))
	values.Set("longitude", fmt.Sprintf("%f", lon))
	values.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,surface_pressure,weather_code")

	var payload struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			Apparent    float64 `json:"apparent_temperature"`
			Humidity    float64 `json:"relative_humidity_2m"`
			Pressure    float64 `json:"surface_pressure"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := fetchJSON(ctx, p.client, p.circuits.forPoint(lat, lon), u, &payload); err != nil {
		return weather.Observation{}, err
	}

	return weather.Observation{
		Temperature: payload.Current.Temperature,
		FeelsLike:   payload.Current.Apparent,
		Humidity:    int(math.Round(payload.Current.Humidity)),
		Pressure:    int(math.Round(payload.Current.Pressure)),
		Description: describeWeatherCode(payload.Current.WeatherCode),
	}, nil
}

// describeWeatherCode maps WMO weather codes (simplified) to the short
// descriptions OpenWeatherMap uses.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code == 1 || code == 2:
		return "few clouds"
	case code == 3:
		return "overcast clouds"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return "rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
