package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/tmcfarland/usagedeck/internal/domain"
	"github.com/tmcfarland/usagedeck/internal/timeutil"
)

// CohortRow is one retention-grid row: the users who first appeared on
// StartDate and the fraction of them active at each later day offset.
// Offset 0 is always 1.0 since the defining event guarantees day-0 activity.
type CohortRow struct {
	StartDate     string          `json:"start_date"`
	Size          int             `json:"size"`
	ActivityByDay map[int]float64 `json:"activity_by_day"`

	// activeCounts keeps the raw per-offset user counts so summary math
	// stays exact instead of reconstructing counts from fractions.
	activeCounts map[int]int
}

// RetentionTable is the full cohort retention grid, rows ascending by
// cohort start date.
type RetentionTable struct {
	Rows []CohortRow `json:"rows"`
}

// SegmentBoundaries splits cohorts into three ranges by start date:
// before A, A up to (but excluding) B, and B onward. Both are canonical
// day keys.
type SegmentBoundaries struct {
	A string
	B string
}

// SegmentMetrics carries D1/D3 retention and the user total for one cohort
// start-date range. D1/D3 are NaN when the range holds no cohorts;
// presentation layers must render that as undefined, never as 0%.
type SegmentMetrics struct {
	Label string
	Users int
	D1    float64
	D3    float64
}

// RetentionSummary aggregates D1/D3 retention across all cohorts, weighted
// by cohort size, plus the same metrics per start-date segment.
type RetentionSummary struct {
	D1       float64
	D3       float64
	Users    int
	Segments []SegmentMetrics
}

// BuildCohorts assigns each user to a cohort keyed by the day of their
// earliest qualifying event and computes per-cohort per-day-offset activity
// fractions. An empty typeFilter means every event qualifies. The earliest
// day is taken as an explicit minimum, so input order never matters.
// Unattributed events form a single pseudo-user.
func BuildCohorts(events []domain.Event, typeFilter string) RetentionTable {
	type userActivity struct {
		start time.Time
		days  map[string]time.Time
	}
	byUser := make(map[string]*userActivity)
	for _, e := range events {
		if typeFilter != "" && e.Type != typeFilter {
			continue
		}
		day := timeutil.TruncateToDay(e.CreatedAt)
		ua, ok := byUser[e.User]
		if !ok {
			ua = &userActivity{start: day, days: make(map[string]time.Time)}
			byUser[e.User] = ua
		} else if day.Before(ua.start) {
			ua.start = day
		}
		ua.days[timeutil.DayKey(day)] = day
	}

	type cohortAgg struct {
		size   int
		counts map[int]int
	}
	groups := make(map[string]*cohortAgg)
	for _, ua := range byUser {
		key := timeutil.DayKey(ua.start)
		agg, ok := groups[key]
		if !ok {
			agg = &cohortAgg{counts: make(map[int]int)}
			groups[key] = agg
		}
		agg.size++
		for _, day := range ua.days {
			agg.counts[timeutil.DayOffset(ua.start, day)]++
		}
	}

	rows := make([]CohortRow, 0, len(groups))
	for key, agg := range groups {
		fractions := make(map[int]float64, len(agg.counts))
		for offset, count := range agg.counts {
			fractions[offset] = float64(count) / float64(agg.size)
		}
		rows = append(rows, CohortRow{
			StartDate:     key,
			Size:          agg.size,
			ActivityByDay: fractions,
			activeCounts:  agg.counts,
		})
	}
	// Day keys are zero-padded, so lexicographic order is chronological.
	sort.Slice(rows, func(i, j int) bool { return rows[i].StartDate < rows[j].StartDate })
	return RetentionTable{Rows: rows}
}

// MaxOffset returns the largest day offset present in any cohort, for grid
// column layout. Empty tables return -1.
func (t RetentionTable) MaxOffset() int {
	max := -1
	for _, row := range t.Rows {
		for offset := range row.ActivityByDay {
			if offset > max {
				max = offset
			}
		}
	}
	return max
}

// Summary computes overall and per-segment D1/D3 retention. Overall values
// are weighted by cohort size: cohorts lacking an offset contribute zero to
// the numerator, not a skip. An empty table yields NaN metrics.
func (t RetentionTable) Summary(seg SegmentBoundaries) RetentionSummary {
	summary := RetentionSummary{
		Segments: []SegmentMetrics{
			{Label: "before " + seg.A, D1: math.NaN(), D3: math.NaN()},
			{Label: seg.A + " to " + seg.B, D1: math.NaN(), D3: math.NaN()},
			{Label: "from " + seg.B, D1: math.NaN(), D3: math.NaN()},
		},
	}

	type tally struct {
		users    int
		d1Active int
		d3Active int
	}
	var overall tally
	segTallies := make([]tally, 3)

	for _, row := range t.Rows {
		overall.users += row.Size
		overall.d1Active += row.activeCounts[1]
		overall.d3Active += row.activeCounts[3]

		idx := 2
		switch {
		case row.StartDate < seg.A:
			idx = 0
		case row.StartDate < seg.B:
			idx = 1
		}
		segTallies[idx].users += row.Size
		segTallies[idx].d1Active += row.activeCounts[1]
		segTallies[idx].d3Active += row.activeCounts[3]
	}

	ratio := func(active, users int) float64 {
		if users == 0 {
			return math.NaN()
		}
		return float64(active) / float64(users)
	}

	summary.Users = overall.users
	summary.D1 = ratio(overall.d1Active, overall.users)
	summary.D3 = ratio(overall.d3Active, overall.users)
	for i, tl := range segTallies {
		summary.Segments[i].Users = tl.users
		summary.Segments[i].D1 = ratio(tl.d1Active, tl.users)
		summary.Segments[i].D3 = ratio(tl.d3Active, tl.users)
	}
	return summary
}
