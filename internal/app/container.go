package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tmcfarland/usagedeck/internal/config"
	"github.com/tmcfarland/usagedeck/internal/ingest"
	"github.com/tmcfarland/usagedeck/internal/observability"
	"github.com/tmcfarland/usagedeck/internal/store"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config        *config.Config
	DBPool        *pgxpool.Pool
	Events        *store.EventStore
	Reports       *ReportService
	Observability *observability.Provider
}

// NewContainer builds a dependency container from the provided primitives.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("db pool is required")
	}

	obs, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	events, err := store.NewEventStore(pool, cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("build event store: %w", err)
	}

	filter := ingest.Exclusions{
		Users:          cfg.Filters.ExcludedUsers,
		TypeSubstrings: cfg.Filters.ExcludedTypeSubstrings,
	}.Filter()

	return &Container{
		Config:        cfg,
		DBPool:        pool,
		Events:        events,
		Reports:       NewReportService(events, filter, cfg.Analytics, obs),
		Observability: obs,
	}, nil
}
