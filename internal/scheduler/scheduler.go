package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/atomic"

	"github.com/i474232898/weather-feed/internal/weather"
)

const (
	defaultInterval     = time.Minute
	defaultFetchTimeout = 30 * time.Second
)

// Ingester is the part of weather.Service the scheduler drives.
type Ingester interface {
	FetchAndStore(ctx context.Context, city weather.City) (weather.Reading, error)
	PublishRecent(ctx context.Context, window time.Duration) error
}

// Config controls the two periodic jobs.
type Config struct {
	Cities []weather.City
	// FetchInterval is the period of the ingest job.
	FetchInterval time.Duration
	// LatestInterval is the period of the latest_data broadcast and also
	// the window of readings it covers.
	LatestInterval time.Duration
	// FetchTimeout bounds each city's fetch.
	FetchTimeout time.Duration
}

// Scheduler periodically ingests readings for the configured cities and
// broadcasts the recent ones.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingester  Ingester
	cfg       Config
	logger    *slog.Logger

	// ctx is cancelled by Stop so an in-flight cycle ends early.
	ctx    context.Context
	cancel context.CancelFunc

	ingestRunning  atomic.Bool
	publishRunning atomic.Bool
}

// New creates a new Scheduler.
func New(cfg Config, ingester Ingester, logger *slog.Logger) *Scheduler {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = defaultInterval
	}
	if cfg.LatestInterval <= 0 {
		cfg.LatestInterval = defaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		ingester:  ingester,
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules both jobs and starts the underlying scheduler.
// Each job also runs once immediately.
func (s *Scheduler) Start() error {
	if len(s.cfg.Cities) == 0 {
		s.logger.Warn("no cities configured; ingest job not scheduled")
	} else {
		if _, err := s.scheduler.Every(s.cfg.FetchInterval).Do(s.ingestJob); err != nil {
			return err
		}
	}

	if _, err := s.scheduler.Every(s.cfg.LatestInterval).Do(s.publishJob); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		"cities", len(s.cfg.Cities),
		"fetch_interval", s.cfg.FetchInterval,
		"latest_interval", s.cfg.LatestInterval,
	)
	return nil
}

// Stop cancels any running cycle and stops the scheduler.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunIngest fetches and stores one reading per city, in order. A failing
// city is logged and skipped. It returns the number of stored readings.
func (s *Scheduler) RunIngest(ctx context.Context) int {
	stored := 0
	for _, city := range s.cfg.Cities {
		if ctx.Err() != nil {
			break
		}

		cityCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
		reading, err := s.ingester.FetchAndStore(cityCtx, city)
		cancel()

		if err != nil {
			s.logger.Error("ingest failed", "city", city.Name, "error", err)
			continue
		}
		stored++
		s.logger.Debug("reading stored", "city", city.Name, "id", reading.ID)
	}
	return stored
}

// RunPublish broadcasts the readings of the last LatestInterval.
func (s *Scheduler) RunPublish(ctx context.Context) error {
	return s.ingester.PublishRecent(ctx, s.cfg.LatestInterval)
}

// ingestJob skips a tick while the previous run is still in progress.
func (s *Scheduler) ingestJob() {
	if !s.ingestRunning.CAS(false, true) {
		s.logger.Warn("previous ingest still running; skipping tick")
		return
	}
	defer s.ingestRunning.Store(false)

	start := time.Now()
	stored := s.RunIngest(s.ctx)
	s.logger.Info("ingest completed",
		"stored", stored,
		"cities", len(s.cfg.Cities),
		"duration", time.Since(start),
	)
}

func (s *Scheduler) publishJob() {
	if !s.publishRunning.CAS(false, true) {
		s.logger.Warn("previous latest_data publish still running; skipping tick")
		return
	}
	defer s.publishRunning.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.FetchTimeout)
	defer cancel()

	if err := s.RunPublish(ctx); err != nil {
		s.logger.Error("publish latest_data failed", "error", err)
	}
}
