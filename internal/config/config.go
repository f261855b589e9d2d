package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/i474232898/weather-feed/internal/weather"
)

type AppConfig struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Port        string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	WeatherProvider   string `envconfig:"WEATHER_PROVIDER" default:"openweather" validate:"oneof=openweather weatherapi openmeteo"`
	OpenWeatherAPIKey string `envconfig:"OPENWEATHER_API_KEY" validate:"required_if=WeatherProvider openweather"`
	WeatherAPIKey     string `envconfig:"WEATHERAPI_API_KEY" validate:"required_if=WeatherProvider weatherapi"`

	// Cities to poll; empty means weather.DefaultCities.
	Cities CityList `envconfig:"WEATHER_CITIES"`

	FetchInterval  time.Duration `envconfig:"FETCH_INTERVAL" default:"1m" validate:"gt=0"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s" validate:"gt=0"`
	LatestInterval time.Duration `envconfig:"LATEST_INTERVAL" default:"1m" validate:"gt=0"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s" validate:"gt=0"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"memory" validate:"oneof=memory postgres sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL" validate:"required_if=StoreDriver postgres"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/weather.db" validate:"required_if=StoreDriver sqlite"`

	JWTSecret   string        `envconfig:"JWT_SECRET" validate:"required"`
	TokenTTL    time.Duration `envconfig:"TOKEN_TTL" default:"24h" validate:"gt=0"`
	AuthUsers   string        `envconfig:"AUTH_USERS" default:"test:testtest"`
	AllowSignup bool          `envconfig:"AUTH_ALLOW_SIGNUP" default:"true"`

	// MQTT bridge; an empty broker disables it.
	MQTTBroker      string `envconfig:"MQTT_BROKER"`
	MQTTClientID    string `envconfig:"MQTT_CLIENT_ID" default:"weather-feed"`
	MQTTTopicPrefix string `envconfig:"MQTT_TOPIC_PREFIX" default:"weather"`
}

// CityList decodes WEATHER_CITIES, formatted "Name:lat:lon;Name:lat:lon".
type CityList []weather.City

// Decode implements envconfig.Decoder.
func (l *CityList) Decode(value string) error {
	var cities CityList
	for _, entry := range strings.Split(value, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		// Split from the right so names may contain ':'.
		lonIdx := strings.LastIndex(entry, ":")
		if lonIdx <= 0 {
			return fmt.Errorf("city %q: expected Name:lat:lon", entry)
		}
		latIdx := strings.LastIndex(entry[:lonIdx], ":")
		if latIdx <= 0 {
			return fmt.Errorf("city %q: expected Name:lat:lon", entry)
		}

		name := strings.TrimSpace(entry[:latIdx])
		if name == "" {
			return fmt.Errorf("city %q: empty name", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(entry[latIdx+1:lonIdx]), 64)
		if err != nil || lat < -90 || lat > 90 {
			return fmt.Errorf("city %q: invalid latitude", entry)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(entry[lonIdx+1:]), 64)
		if err != nil || lon < -180 || lon > 180 {
			return fmt.Errorf("city %q: invalid longitude", entry)
		}

		cities = append(cities, weather.City{Name: name, Lat: lat, Lon: lon})
	}
	*l = cities
	return nil
}

// IsDev reports whether console-friendly logging should be used.
func (c *AppConfig) IsDev() bool {
	return c.AppEnv == "dev" || c.AppEnv == "local"
}

// Load reads configuration from the environment (and .env, when present),
// applies defaults and validates the result.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if len(cfg.Cities) == 0 {
		cfg.Cities = append(CityList(nil), weather.DefaultCities...)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
