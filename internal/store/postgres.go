// Package store loads usage events from Postgres for the analytics engine.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tmcfarland/usagedeck/internal/config"
	"github.com/tmcfarland/usagedeck/internal/ingest"
	"github.com/tmcfarland/usagedeck/internal/timeutil"
)

// Connect establishes a pgx connection pool using the provided configuration.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const fetchPageQuery = `
SELECT type, model, cost::float8, created_at, user_id::text
FROM usage_events
WHERE created_at >= $1
ORDER BY created_at, id
LIMIT $2 OFFSET $3`

// EventStore reads the usage_events table in chronological pages.
type EventStore struct {
	pool     *pgxpool.Pool
	pageSize int
	floor    time.Time
}

func NewEventStore(pool *pgxpool.Pool, cfg config.EventsConfig) (*EventStore, error) {
	floor, err := timeutil.ParseDayKey(cfg.FloorDate)
	if err != nil {
		return nil, fmt.Errorf("parse floor date: %w", err)
	}
	return &EventStore{pool: pool, pageSize: cfg.PageSize, floor: floor}, nil
}

// Ping reports whether the database is reachable.
func (s *EventStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FetchEvents returns every raw event at or after the floor date, oldest
// first. Paging keeps individual result sets bounded; the snapshot itself is
// whole. Rows come back untyped so the normalizer owns validation and the
// skipped-record count.
func (s *EventStore) FetchEvents(ctx context.Context) ([]ingest.RawEvent, error) {
	var events []ingest.RawEvent
	for offset := 0; ; offset += s.pageSize {
		page, err := s.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		events = append(events, page...)
		if len(page) < s.pageSize {
			return events, nil
		}
	}
}

func (s *EventStore) fetchPage(ctx context.Context, offset int) ([]ingest.RawEvent, error) {
	rows, err := s.pool.Query(ctx, fetchPageQuery, s.floor, s.pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	page := make([]ingest.RawEvent, 0, s.pageSize)
	for rows.Next() {
		var (
			eventType pgtype.Text
			model     pgtype.Text
			cost      pgtype.Float8
			createdAt pgtype.Timestamptz
			user      pgtype.Text
		)
		if err := rows.Scan(&eventType, &model, &cost, &createdAt, &user); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		raw := ingest.RawEvent{
			Type:  eventType.String,
			Model: model.String,
			Cost:  cost.Float64,
		}
		if createdAt.Valid {
			raw.CreatedAt = createdAt.Time.UTC().Format(time.RFC3339Nano)
		}
		if user.Valid {
			value := user.String
			raw.User = &value
		}
		page = append(page, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return page, nil
}
