package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/tmcfarland/usagedeck/internal/domain"
	"github.com/tmcfarland/usagedeck/internal/timeutil"
)

// BucketCount is one (calendar key, count) pair in an ascending series.
type BucketCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// DailyTypeRow carries the per-type call counts for one calendar day.
type DailyTypeRow struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

// UserCallCount is one user's call count within a window.
type UserCallCount struct {
	User  string `json:"user"`
	Calls int    `json:"calls"`
}

// DailyTypeCounts restricts events to the given types and to createdAt >=
// cutoff, then counts calls per day per type. Rows come back ascending by
// day key; days with no qualifying events produce no row. An empty type set
// produces no rows.
func DailyTypeCounts(events []domain.Event, types []string, cutoff time.Time) []DailyTypeRow {
	if len(types) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}

	byDay := make(map[string]map[string]int)
	for _, e := range events {
		if _, ok := wanted[e.Type]; !ok {
			continue
		}
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		day := timeutil.DayKey(e.CreatedAt)
		counts, ok := byDay[day]
		if !ok {
			counts = make(map[string]int)
			byDay[day] = counts
		}
		counts[e.Type]++
	}

	rows := make([]DailyTypeRow, 0, len(byDay))
	for day, counts := range byDay {
		rows = append(rows, DailyTypeRow{Date: day, Counts: counts})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

// ActiveUsersByDay counts distinct users per calendar day for events at or
// after the cutoff. A zero cutoff spans the full observed range.
// Unattributed events count once per bucket as a single pseudo-user.
func ActiveUsersByDay(events []domain.Event, cutoff time.Time) []BucketCount {
	return distinctUsersByKey(events, cutoff, timeutil.DayKey)
}

// ActiveUsersByWeek counts distinct users per ISO-8601 week for events at or
// after the cutoff.
func ActiveUsersByWeek(events []domain.Event, cutoff time.Time) []BucketCount {
	return distinctUsersByKey(events, cutoff, timeutil.WeekKey)
}

// ActiveUsersByMonth counts distinct users per calendar month across the
// full observed range.
func ActiveUsersByMonth(events []domain.Event) []BucketCount {
	return distinctUsersByKey(events, time.Time{}, timeutil.MonthKey)
}

// MeanWeeklyActiveUsers returns the arithmetic mean of the distinct-user
// counts across all observed ISO weeks. No observed weeks yields 0.
func MeanWeeklyActiveUsers(events []domain.Event) float64 {
	weeks := ActiveUsersByWeek(events, time.Time{})
	if len(weeks) == 0 {
		return 0
	}
	total := 0
	for _, w := range weeks {
		total += w.Count
	}
	return float64(total) / float64(len(weeks))
}

func distinctUsersByKey(events []domain.Event, cutoff time.Time, keyFn func(time.Time) string) []BucketCount {
	buckets := make(map[string]map[string]struct{})
	for _, e := range events {
		if !cutoff.IsZero() && e.CreatedAt.Before(cutoff) {
			continue
		}
		key := keyFn(e.CreatedAt)
		users, ok := buckets[key]
		if !ok {
			users = make(map[string]struct{})
			buckets[key] = users
		}
		users[e.User] = struct{}{}
	}

	rows := make([]BucketCount, 0, len(buckets))
	for key, users := range buckets {
		rows = append(rows, BucketCount{Key: key, Count: len(users)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

// activityLevels are the fixed histogram buckets for distinct active days.
var activityLevels = []string{"1", "2", "3", "4+"}

// UserActivityHistogram counts each user's distinct active days within
// [windowStart, windowEnd] and buckets users into 1/2/3/4+ day activity
// levels. All four rows are always present, zero counts included.
func UserActivityHistogram(events []domain.Event, windowStart, windowEnd time.Time) []BucketCount {
	daysByUser := make(map[string]map[string]struct{})
	for _, e := range events {
		if e.CreatedAt.Before(windowStart) || e.CreatedAt.After(windowEnd) {
			continue
		}
		days, ok := daysByUser[e.User]
		if !ok {
			days = make(map[string]struct{})
			daysByUser[e.User] = days
		}
		days[timeutil.DayKey(e.CreatedAt)] = struct{}{}
	}

	counts := map[string]int{"1": 0, "2": 0, "3": 0, "4+": 0}
	for _, days := range daysByUser {
		switch n := len(days); {
		case n >= 4:
			counts["4+"]++
		case n >= 1:
			counts[fmt.Sprintf("%d", n)]++
		}
	}

	rows := make([]BucketCount, 0, len(activityLevels))
	for _, level := range activityLevels {
		rows = append(rows, BucketCount{Key: level + " Day(s)", Count: counts[level]})
	}
	return rows
}

// TopUsersByType counts calls per user for one event type at or after the
// cutoff and returns the heaviest users first, at most limit rows. Ties
// break on user identifier so output stays deterministic.
func TopUsersByType(events []domain.Event, eventType string, cutoff time.Time, limit int) []UserCallCount {
	calls := make(map[string]int)
	for _, e := range events {
		if e.Type != eventType || e.CreatedAt.Before(cutoff) {
			continue
		}
		calls[e.User]++
	}

	rows := make([]UserCallCount, 0, len(calls))
	for user, n := range calls {
		rows = append(rows, UserCallCount{User: user, Calls: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Calls != rows[j].Calls {
			return rows[i].Calls > rows[j].Calls
		}
		return rows[i].User < rows[j].User
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// UserHourlySeries counts one user's calls of one type per hour from the
// given instant onward, ascending by hour key.
func UserHourlySeries(events []domain.Event, eventType, user string, since time.Time) []BucketCount {
	byHour := make(map[string]int)
	for _, e := range events {
		if e.Type != eventType || e.User != user || e.CreatedAt.Before(since) {
			continue
		}
		byHour[timeutil.HourKey(e.CreatedAt)]++
	}

	rows := make([]BucketCount, 0, len(byHour))
	for hour, n := range byHour {
		rows = append(rows, BucketCount{Key: hour, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}
