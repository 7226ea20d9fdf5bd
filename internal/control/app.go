// Package control assembles the application from configuration and manages
// its lifecycle.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/landplan/internal/core/config"
	"github.com/vietddude/landplan/internal/generation"
	"github.com/vietddude/landplan/internal/infra/genai"
	"github.com/vietddude/landplan/internal/infra/ratelimit"
	redisclient "github.com/vietddude/landplan/internal/infra/redis"
	"github.com/vietddude/landplan/internal/infra/retry"
	"github.com/vietddude/landplan/internal/infra/storage"
	"github.com/vietddude/landplan/internal/infra/storage/memory"
	"github.com/vietddude/landplan/internal/metrics"
	"github.com/vietddude/landplan/internal/status"
)

const (
	failedCallNamespace = "landplan"
	metricsInterval     = 10 * time.Second
)

// App owns the long-lived components.
type App struct {
	cfg          *config.AppConfig
	limits       *ratelimit.Registry
	service      *generation.Service
	failures     storage.FailedCallRepository
	statusServer *status.Server
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// New creates an App with all dependencies initialized. Failed calls go to
// Redis when it is configured and to an in-memory ring otherwise.
func New(cfg *config.AppConfig) (*App, error) {
	log := slog.Default().With("component", "control")

	limits, err := ratelimit.NewDefaultRegistry(ratelimit.SystemClock{}, slog.Default(), cfg.BucketOverrides())
	if err != nil {
		return nil, fmt.Errorf("failed to build rate limits: %w", err)
	}

	var failures storage.FailedCallRepository
	var rc *redisclient.Client
	if cfg.Redis.Enabled() {
		rc, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		failures = redisclient.NewFailedCallRepo(rc, failedCallNamespace)
		log.Info("Recording failed calls in Redis")
	} else {
		failures = memory.NewFailedCallRepo(memory.DefaultFailedCallCapacity)
		log.Info("Recording failed calls in memory")
	}

	gen := genai.NewClient(genai.Config{
		Endpoint:   cfg.Generation.Endpoint,
		APIKey:     cfg.Generation.APIKey,
		Timeout:    cfg.Generation.Timeout,
		PlanModel:  cfg.Generation.PlanModel,
		ImageModel: cfg.Generation.ImageModel,
	})

	executor := retry.NewExecutor(
		retry.WithDefaultPolicy(cfg.Retry),
		retry.WithLogger(slog.Default()),
	)

	return &App{
		cfg:          cfg,
		limits:       limits,
		service:      generation.NewService(gen, limits, executor, failures, cfg.Retry, slog.Default()),
		failures:     failures,
		statusServer: status.NewServer(limits, failures, cfg.Server.Port),
		redisClient:  rc,
		log:          log,
	}, nil
}

// Service returns the generation service.
func (a *App) Service() *generation.Service {
	return a.service
}

// Failures returns the failed call log.
func (a *App) Failures() storage.FailedCallRepository {
	return a.failures
}

// Start starts the status server and the metrics updater.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.statusServer.Start(); err != nil {
			a.log.Error("Status server failed", "error", err)
		}
	}()

	go a.runMetricsUpdater(ctx)

	a.log.Info("Status server listening", "port", a.cfg.Server.Port)
	return nil
}

// Stop releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping landplan...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	return a.statusServer.Stop(ctx)
}

// Close releases resources of an App that was never started.
func (a *App) Close() error {
	if a.redisClient != nil {
		return a.redisClient.Close()
	}
	return nil
}

// runMetricsUpdater publishes token balances so idle buckets show their
// refill in dashboards.
func (a *App) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.publishTokens()
		}
	}
}

func (a *App) publishTokens() {
	for _, name := range a.limits.Names() {
		b, err := a.limits.Bucket(name)
		if err != nil {
			continue
		}
		metrics.TokensAvailable.WithLabelValues(name.String()).Set(b.Balance())
	}
	slog.Debug("Updated rate limit metrics", "resources", len(a.limits.Names()))
}
