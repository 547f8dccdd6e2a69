package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmcfarland/usagedeck/internal/analytics"
	"github.com/tmcfarland/usagedeck/internal/config"
	"github.com/tmcfarland/usagedeck/internal/domain"
	"github.com/tmcfarland/usagedeck/internal/ingest"
	"github.com/tmcfarland/usagedeck/internal/observability"
	"github.com/tmcfarland/usagedeck/internal/timeutil"
)

// EventSource supplies raw usage events for report computation.
type EventSource interface {
	FetchEvents(ctx context.Context) ([]ingest.RawEvent, error)
}

// ReportService turns a fresh event snapshot into a full analytics report.
// Every call refetches; reports are point-in-time, never cached.
type ReportService struct {
	source EventSource
	filter *ingest.Filter
	cfg    config.AnalyticsConfig
	obs    *observability.Provider
}

func NewReportService(source EventSource, filter *ingest.Filter, cfg config.AnalyticsConfig, obs *observability.Provider) *ReportService {
	return &ReportService{source: source, filter: filter, cfg: cfg, obs: obs}
}

// ParamsAt derives report parameters for the given reference instant. The
// instant is explicit so that two calls with the same instant and snapshot
// produce identical reports.
func (s *ReportService) ParamsAt(at time.Time) analytics.ReportParams {
	at = at.UTC()
	cutoff := timeutil.TruncateToDay(at).AddDate(0, 0, -s.cfg.ActivityWindowDays)
	return analytics.ReportParams{
		Cutoff:        cutoff,
		WindowStart:   cutoff,
		WindowEnd:     at,
		RelevantTypes: s.cfg.RelevantTypes,
		RetentionType: s.cfg.RetentionType,
		Session: analytics.SessionConfig{
			Gap:    s.cfg.SessionGap,
			Bounds: s.cfg.SessionBounds(),
		},
		Segments: analytics.SegmentBoundaries{
			A: s.cfg.CohortSegments.A,
			B: s.cfg.CohortSegments.B,
		},
		TopUserLimit: s.cfg.TopUserLimit,
	}
}

// Snapshot fetches, normalizes and filters the event log, returning the
// surviving events plus the count of malformed rows.
func (s *ReportService) Snapshot(ctx context.Context) ([]domain.Event, int, error) {
	start := time.Now()
	raw, err := s.source.FetchEvents(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch events: %w", err)
	}
	s.obs.RecordReportStage("fetch", time.Since(start))
	s.obs.RecordEventsFetched(len(raw))

	events, skipped := ingest.Normalize(raw)
	kept := s.filter.Apply(events)
	s.obs.RecordEventsFiltered(len(events) - len(kept))

	slog.Debug("event snapshot ready",
		"fetched", len(raw),
		"skipped", skipped,
		"kept", len(kept))
	return kept, skipped, nil
}

// Build fetches the current snapshot and computes the full report for the
// given reference instant.
func (s *ReportService) Build(ctx context.Context, at time.Time) (analytics.Report, error) {
	events, skipped, err := s.Snapshot(ctx)
	if err != nil {
		return analytics.Report{}, err
	}

	params := s.ParamsAt(at)
	params.Skipped = skipped

	start := time.Now()
	report := analytics.BuildReport(events, params)
	s.obs.RecordReportStage("compute", time.Since(start))
	return report, nil
}
