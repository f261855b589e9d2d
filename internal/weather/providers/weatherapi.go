package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-feed/internal/weather"
)

// WeatherAPIProvider implements the weather.Source interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name     string
	apiKey   string
	baseURL  string
	client   *http.Client
	circuits *circuits
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:     "weatherapi",
		apiKey:   apiKey,
		baseURL:  "https://api.weatherapi.com/v1/current.json",
		client:   client,
		circuits: newCircuits("weatherapi"),
	}
}

// WithBaseURL points the provider at another endpoint (used by tests).
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = u
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, lat, lon float64) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrSourceUnavailable)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "lat,lon".
	values.Set("q", fmt.Sprintf("%f,%f", lat, lon))

	var payload struct {
		Current struct {
			TempC      float64 `json:"temp_c"`
			FeelsLikeC float64 `json:"feelslike_c"`
			Humidity   float64 `json:"humidity"`
			PressureMb float64 `json:"pressure_mb"`
			Condition  struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}

	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
	if err := fetchJSON(ctx, p.client, p.circuits.forPoint(lat, lon), u, &payload); err != nil {
		return weather.Observation{}, err
	}

	return weather.Observation{
		Temperature: payload.Current.TempC,
		FeelsLike:   payload.Current.FeelsLikeC,
		Humidity:    int(math.Round(payload.Current.Humidity)),
		Pressure:    int(math.Round(payload.Current.PressureMb)),
		Description: payload.Current.Condition.Text,
	}, nil
}
