package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPeriod = errors.New("invalid period")

// DayKeyLayout is the canonical calendar-day key format (UTC).
const DayKeyLayout = "2006-01-02"

// DayKey returns the canonical YYYY-MM-DD key for the timestamp in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// WeekKey returns the canonical ISO-8601 week key (YYYY-Www) for the
// timestamp in UTC. The ISO year can differ from the calendar year around
// January 1st; time.ISOWeek handles the Thursday anchoring.
func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey returns the canonical YYYY-MM key for the timestamp in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// HourKey returns a YYYY-MM-DDTHH:00 key for the timestamp in UTC.
func HourKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15") + ":00"
}

// TruncateToDay normalizes the timestamp to UTC midnight.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDayKey parses a canonical day key back into a UTC midnight instant.
func ParseDayKey(key string) (time.Time, error) {
	return time.Parse(DayKeyLayout, key)
}

// DayOffset returns the whole number of days from the day containing a to
// the day containing b. Negative when b precedes a.
func DayOffset(a, b time.Time) int {
	return int(TruncateToDay(b).Sub(TruncateToDay(a)) / (24 * time.Hour))
}

// Window is a normalized rolling time window anchored to an explicit
// reference instant, so cutoff math stays reproducible in tests.
type Window struct {
	period string
	start  time.Time
	end    time.Time
}

// NewWindow constructs a rolling window for the requested period
// (e.g. "7d", "24h") ending at the provided reference instant.
func NewWindow(period string, now time.Time) (Window, error) {
	dur, err := durationFromPeriod(period)
	if err != nil {
		return Window{}, err
	}
	now = now.UTC()
	return Window{
		period: normalizePeriod(period),
		start:  now.Add(-dur),
		end:    now,
	}, nil
}

// NewWindowFromRange constructs a window covering [start, end).
func NewWindowFromRange(start, end time.Time, label string) (Window, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return Window{}, ErrInvalidPeriod
	}
	p := strings.TrimSpace(label)
	if p == "" {
		p = "custom"
	}
	return Window{period: normalizePeriod(p), start: start, end: end}, nil
}

// Period returns the normalized period string (e.g. "7d").
func (w Window) Period() string { return w.period }

// Start returns the inclusive start of the window.
func (w Window) Start() time.Time { return w.start }

// End returns the exclusive end of the window.
func (w Window) End() time.Time { return w.end }

// StartString returns the start timestamp formatted as RFC3339 UTC.
func (w Window) StartString() string { return w.start.Format(time.RFC3339) }

// EndString returns the end timestamp formatted as RFC3339 UTC.
func (w Window) EndString() string { return w.end.Format(time.RFC3339) }

// Contains reports whether the timestamp falls within [start, end).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.start) && ts.Before(w.end)
}

func durationFromPeriod(period string) (time.Duration, error) {
	p := normalizePeriod(period)
	if len(p) < 2 {
		return 0, ErrInvalidPeriod
	}
	unit := p[len(p)-1]
	value, err := strconv.Atoi(p[:len(p)-1])
	if err != nil || value <= 0 {
		return 0, ErrInvalidPeriod
	}
	switch unit {
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(value) * time.Hour, nil
	default:
		return 0, ErrInvalidPeriod
	}
}

func normalizePeriod(period string) string {
	return strings.ToLower(strings.TrimSpace(period))
}
