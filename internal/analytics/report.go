package analytics

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

// ReportParams carries every knob the report computation needs, including
// the reference instants. Nothing in the engine reads the wall clock, so a
// report is reproducible from its params and event snapshot alone.
type ReportParams struct {
	// Cutoff bounds the sliding-window series (daily type counts, active
	// users by day/week, top users). Zero means no cutoff.
	Cutoff time.Time
	// WindowStart/WindowEnd bound the user-activity histogram (inclusive).
	WindowStart time.Time
	WindowEnd   time.Time
	// RelevantTypes selects the types for the daily series and session
	// reconstruction.
	RelevantTypes []string
	// RetentionType filters cohort-qualifying events; empty means all.
	RetentionType string
	// Session configures the inactivity gap and histogram buckets.
	Session SessionConfig
	// Segments split retention summaries into three start-date ranges.
	Segments SegmentBoundaries
	// TopUserLimit caps the per-type top-user lists.
	TopUserLimit int
	// Skipped is the malformed-record count reported by the normalizer,
	// carried through so callers see data-quality alongside the metrics.
	Skipped int
}

// Report is the full derived-analytics bundle for one event snapshot.
type Report struct {
	TotalRows             []TotalsRow                `json:"totals"`
	TotalCost             string                     `json:"total_cost"`
	DailyTypeCounts       []DailyTypeRow             `json:"daily_type_counts"`
	ActiveUsersByDay      []BucketCount              `json:"active_users_by_day"`
	ActiveUsersByWeek     []BucketCount              `json:"active_users_by_week"`
	ActiveUsersByMonth    []BucketCount              `json:"active_users_by_month"`
	MeanWeeklyActiveUsers float64                    `json:"mean_weekly_active_users"`
	ActivityHistogram     []BucketCount              `json:"activity_histogram"`
	SessionHistogram      []BucketCount              `json:"session_histogram"`
	Retention             RetentionTable             `json:"retention"`
	RetentionSummary      RetentionSummary           `json:"-"`
	TopUsersByType        map[string][]UserCallCount `json:"top_users_by_type"`
	SkippedRecords        int                        `json:"skipped_records"`
}

// BuildReport runs the independent aggregators concurrently over the shared
// immutable snapshot and assembles the result. The aggregators never mutate
// the input, so they are safe to run in parallel; none of them can fail on
// any input, the group exists purely for the join.
func BuildReport(events []domain.Event, params ReportParams) Report {
	report := Report{SkippedRecords: params.Skipped}

	var g errgroup.Group
	g.Go(func() error {
		totals := ComputeTotals(events)
		report.TotalRows = totals.Rows()
		report.TotalCost = totals.TotalCost().Round(costDisplayPlaces).StringFixed(costDisplayPlaces)
		return nil
	})
	g.Go(func() error {
		report.DailyTypeCounts = DailyTypeCounts(events, params.RelevantTypes, params.Cutoff)
		report.ActiveUsersByDay = ActiveUsersByDay(events, params.Cutoff)
		report.ActiveUsersByWeek = ActiveUsersByWeek(events, params.Cutoff)
		report.ActiveUsersByMonth = ActiveUsersByMonth(events)
		report.MeanWeeklyActiveUsers = MeanWeeklyActiveUsers(events)
		report.ActivityHistogram = UserActivityHistogram(events, params.WindowStart, params.WindowEnd)
		return nil
	})
	g.Go(func() error {
		report.SessionHistogram = SessionHistogram(events, params.RelevantTypes, params.Session)
		return nil
	})
	g.Go(func() error {
		report.Retention = BuildCohorts(events, params.RetentionType)
		report.RetentionSummary = report.Retention.Summary(params.Segments)
		return nil
	})
	g.Go(func() error {
		top := make(map[string][]UserCallCount, len(params.RelevantTypes))
		for _, eventType := range params.RelevantTypes {
			top[eventType] = TopUsersByType(events, eventType, params.Cutoff, params.TopUserLimit)
		}
		report.TopUsersByType = top
		return nil
	})
	_ = g.Wait()

	return report
}
