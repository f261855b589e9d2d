package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-feed/internal/api/http"
	"github.com/i474232898/weather-feed/internal/auth"
	"github.com/i474232898/weather-feed/internal/config"
	"github.com/i474232898/weather-feed/internal/logging"
	"github.com/i474232898/weather-feed/internal/notify"
	"github.com/i474232898/weather-feed/internal/scheduler"
	"github.com/i474232898/weather-feed/internal/store"
	"github.com/i474232898/weather-feed/internal/weather"
	"github.com/i474232898/weather-feed/internal/weather/providers"
)

const serviceName = "weather-feed"

func main() {
	once := flag.Bool("once", false, "run a single ingest cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(cfg.IsDev(), cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *once); err != nil {
		log.Error("weather-feed stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, log *slog.Logger, once bool) error {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	source, err := providers.New(cfg.WeatherProvider, httpClient, providers.Keys{
		OpenWeather: cfg.OpenWeatherAPIKey,
		WeatherAPI:  cfg.WeatherAPIKey,
	})
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := notify.NewHub(log.With("component", "hub"))
	defer hub.Close()

	sinks := notify.Fanout{hub}
	if cfg.MQTTBroker != "" {
		mqttPub := openMQTT(ctx, cfg, log)
		defer mqttPub.Close()
		sinks = append(sinks, mqttPub)
	}

	service := weather.NewService(st, source, sinks, weather.WithLogger(log.With("component", "service")))

	sched := scheduler.New(scheduler.Config{
		Cities:         cfg.Cities,
		FetchInterval:  cfg.FetchInterval,
		LatestInterval: cfg.LatestInterval,
		FetchTimeout:   cfg.FetchTimeout,
	}, service, log)

	if once {
		stored := sched.RunIngest(ctx)
		log.Info("single ingest cycle finished", "stored", stored, "cities", len(cfg.Cities))
		return nil
	}

	authSvc, err := newAuthService(cfg, log)
	if err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler(log),
	})

	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	httpapi.RegisterRoutes(app, service, authSvc, hub, httpapi.Options{AllowSignup: cfg.AllowSignup, Logger: log})

	listenErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "port", cfg.Port)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-listenErr:
		return fmt.Errorf("http server: %w", err)
	}

	// Stop pushing before the listener goes away so websocket handlers return.
	sched.Stop()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
	return nil
}

// openStore builds the configured store and returns its release func.
func openStore(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (weather.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info("using postgres store")
		return pg, pool.Close, nil

	case "sqlite":
		lite, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using sqlite store", "path", cfg.SQLitePath)
		return lite, func() {
			if err := lite.Close(); err != nil {
				log.Error("close sqlite store", "error", err)
			}
		}, nil

	case "memory", "":
		log.Info("using in-memory store")
		return store.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func openMQTT(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) *notify.MQTTPublisher {
	mqttLog := log.With("component", "mqtt")
	client := notify.NewMQTTClient(notify.MQTTConfig{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopicPrefix,
	}, mqttLog)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := notify.ConnectMQTT(connectCtx, client); err != nil {
		// paho keeps retrying in the background; events are dropped until it connects.
		mqttLog.Warn("mqtt not connected yet", "error", err)
	}

	return notify.NewMQTTPublisher(client, cfg.MQTTTopicPrefix, mqttLog)
}

func newAuthService(cfg *config.AppConfig, log *slog.Logger) (*auth.Service, error) {
	authSvc, err := auth.NewService(auth.Config{
		Secret:      cfg.JWTSecret,
		TokenTTL:    cfg.TokenTTL,
		AllowSignup: cfg.AllowSignup,
		Issuer:      serviceName,
	}, log.With("component", "auth"))
	if err != nil {
		return nil, err
	}

	users, err := auth.ParseUsers(cfg.AuthUsers)
	if err != nil {
		return nil, fmt.Errorf("parse AUTH_USERS: %w", err)
	}
	for name, password := range users {
		if err := authSvc.AddUser(name, password); err != nil {
			return nil, err
		}
	}
	log.Info("auth users seeded", "count", len(users))
	return authSvc, nil
}
