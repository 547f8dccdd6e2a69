package analytics

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

func TestDailyTypeCountsSparseAndSorted(t *testing.T) {
	cutoff := time.Date(2023, 7, 5, 0, 0, 0, 0, time.UTC)
	events := []domain.Event{
		ev(t, "gptChat", "", "u1", "2023-07-08T10:00:00Z", 0),
		ev(t, "gptChat", "", "u2", "2023-07-06T10:00:00Z", 0),
		ev(t, "fixer", "", "u1", "2023-07-06T11:00:00Z", 0),
		ev(t, "gptChat", "", "u1", "2023-07-04T10:00:00Z", 0), // before cutoff
		ev(t, "explainer", "", "u1", "2023-07-06T12:00:00Z", 0), // not in filter
	}

	rows := DailyTypeCounts(events, []string{"gptChat", "fixer"}, cutoff)
	if len(rows) != 2 {
		t.Fatalf("want 2 rows (sparse), got %d", len(rows))
	}
	if rows[0].Date != "2023-07-06" || rows[1].Date != "2023-07-08" {
		t.Fatalf("rows not ascending by day: %+v", rows)
	}
	want := map[string]int{"gptChat": 1, "fixer": 1}
	if !reflect.DeepEqual(rows[0].Counts, want) {
		t.Fatalf("day 1 counts: want %v, got %v", want, rows[0].Counts)
	}
}

func TestDailyTypeCountsEmptyFilterProducesNoRows(t *testing.T) {
	events := []domain.Event{ev(t, "gptChat", "", "u1", "2023-07-06T10:00:00Z", 0)}
	if rows := DailyTypeCounts(events, nil, time.Time{}); len(rows) != 0 {
		t.Fatalf("empty type filter must produce no rows, got %d", len(rows))
	}
}

func TestActiveUsersByDayCountsDistinct(t *testing.T) {
	events := []domain.Event{
		ev(t, "gptChat", "", "u1", "2023-07-06T08:00:00Z", 0),
		ev(t, "fixer", "", "u1", "2023-07-06T09:00:00Z", 0),
		ev(t, "gptChat", "", "u2", "2023-07-06T10:00:00Z", 0),
		ev(t, "gptChat", "", "", "2023-07-06T11:00:00Z", 0), // pseudo-user
		ev(t, "gptChat", "", "", "2023-07-06T12:00:00Z", 0), // same pseudo-user
		ev(t, "gptChat", "", "u1", "2023-07-07T10:00:00Z", 0),
	}

	rows := ActiveUsersByDay(events, time.Time{})
	want := []BucketCount{
		{Key: "2023-07-06", Count: 3}, // u1, u2, unattributed
		{Key: "2023-07-07", Count: 1},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("want %v, got %v", want, rows)
	}
}

func TestActiveUsersByWeekUsesISOWeeks(t *testing.T) {
	events := []domain.Event{
		// Sunday 2023-01-01 belongs to ISO week 2022-W52.
		ev(t, "gptChat", "", "u1", "2023-01-01T10:00:00Z", 0),
		// Monday 2023-01-02 starts 2023-W01.
		ev(t, "gptChat", "", "u1", "2023-01-02T10:00:00Z", 0),
		ev(t, "gptChat", "", "u2", "2023-01-03T10:00:00Z", 0),
	}

	rows := ActiveUsersByWeek(events, time.Time{})
	want := []BucketCount{
		{Key: "2022-W52", Count: 1},
		{Key: "2023-W01", Count: 2},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("want %v, got %v", want, rows)
	}
}

func TestActiveUsersByMonthSpansFullRange(t *testing.T) {
	events := []domain.Event{
		ev(t, "gptChat", "", "u1", "2023-05-15T10:00:00Z", 0),
		ev(t, "gptChat", "", "u2", "2023-07-06T10:00:00Z", 0),
		ev(t, "gptChat", "", "u1", "2023-07-20T10:00:00Z", 0),
	}
	rows := ActiveUsersByMonth(events)
	want := []BucketCount{
		{Key: "2023-05", Count: 1},
		{Key: "2023-07", Count: 2},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("want %v, got %v", want, rows)
	}
}

func TestMeanWeeklyActiveUsers(t *testing.T) {
	events := []domain.Event{
		ev(t, "gptChat", "", "u1", "2023-07-03T10:00:00Z", 0), // W27: u1, u2
		ev(t, "gptChat", "", "u2", "2023-07-04T10:00:00Z", 0),
		ev(t, "gptChat", "", "u1", "2023-07-10T10:00:00Z", 0), // W28: u1
	}
	if got := MeanWeeklyActiveUsers(events); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("want mean 1.5, got %v", got)
	}
	if got := MeanWeeklyActiveUsers(nil); got != 0 {
		t.Fatalf("no observed weeks should yield 0, got %v", got)
	}
}

func TestUserActivityHistogramBuckets(t *testing.T) {
	start := time.Date(2023, 7, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 7, 31, 23, 59, 59, 0, time.UTC)
	events := []domain.Event{
		// u1 active on 4 days, u2 on 2 days, u3 on 1 day.
		day(t, "gptChat", "u1", "2023-07-06"),
		day(t, "gptChat", "u1", "2023-07-07"),
		day(t, "gptChat", "u1", "2023-07-08"),
		day(t, "gptChat", "u1", "2023-07-09"),
		day(t, "gptChat", "u2", "2023-07-06"),
		day(t, "gptChat", "u2", "2023-07-08"),
		day(t, "gptChat", "u3", "2023-07-10"),
		day(t, "gptChat", "u3", "2023-07-10"), // same day twice still 1 day
		day(t, "gptChat", "u4", "2023-08-02"), // outside window
	}

	rows := UserActivityHistogram(events, start, end)
	want := []BucketCount{
		{Key: "1 Day(s)", Count: 1},
		{Key: "2 Day(s)", Count: 1},
		{Key: "3 Day(s)", Count: 0},
		{Key: "4+ Day(s)", Count: 1},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("want %v, got %v", want, rows)
	}
}

func TestUserActivityHistogramEmptyInputKeepsAllBuckets(t *testing.T) {
	rows := UserActivityHistogram(nil, time.Time{}, time.Now())
	if len(rows) != 4 {
		t.Fatalf("want 4 zero-filled buckets, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Count != 0 {
			t.Fatalf("want zero counts, got %v", rows)
		}
	}
}

func TestTopUsersByType(t *testing.T) {
	events := []domain.Event{
		ev(t, "fixer", "", "u1", "2023-07-06T10:00:00Z", 0),
		ev(t, "fixer", "", "u1", "2023-07-06T11:00:00Z", 0),
		ev(t, "fixer", "", "u2", "2023-07-06T12:00:00Z", 0),
		ev(t, "fixer", "", "u3", "2023-07-06T13:00:00Z", 0),
		ev(t, "gptChat", "", "u3", "2023-07-06T14:00:00Z", 0), // wrong type
	}

	rows := TopUsersByType(events, "fixer", time.Time{}, 2)
	want := []UserCallCount{{User: "u1", Calls: 2}, {User: "u2", Calls: 1}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("want %v, got %v", want, rows)
	}
}

func TestUserHourlySeries(t *testing.T) {
	since := time.Date(2023, 7, 6, 0, 0, 0, 0, time.UTC)
	events := []domain.Event{
		ev(t, "fixer", "", "u1", "2023-07-06T10:05:00Z", 0),
		ev(t, "fixer", "", "u1", "2023-07-06T10:45:00Z", 0),
		ev(t, "fixer", "", "u1", "2023-07-06T12:00:00Z", 0),
		ev(t, "fixer", "", "u2", "2023-07-06T10:10:00Z", 0),  // other user
		ev(t, "fixer", "", "u1", "2023-07-05T10:00:00Z", 0),  // before since
	}

	rows := UserHourlySeries(events, "fixer", "u1", since)
	want := []BucketCount{
		{Key: "2023-07-06T10:00", Count: 2},
		{Key: "2023-07-06T12:00", Count: 1},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("want %v, got %v", want, rows)
	}
}
