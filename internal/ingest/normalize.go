// Package ingest shapes raw usage rows into normalized events and applies
// the upstream exclusion filters before anything reaches the analytics
// engine.
package ingest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

// RawEvent is one usage row as fetched from the event store. Unknown columns
// never reach this struct, so additional upstream fields are ignored rather
// than rejected.
type RawEvent struct {
	Type      string  `json:"type"`
	Model     string  `json:"model"`
	Cost      float64 `json:"cost"`
	CreatedAt string  `json:"created_at"`
	User      *string `json:"user"`
}

// timestampLayouts lists the accepted created_at representations, most
// specific first. Postgres timestamptz round-trips as RFC3339.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize validates raw rows and returns the canonical events plus the
// number of rows skipped as malformed. A skipped row is never fatal; the
// caller decides whether to surface the count.
func Normalize(raw []RawEvent) ([]domain.Event, int) {
	events := make([]domain.Event, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		if strings.TrimSpace(r.Type) == "" {
			skipped++
			continue
		}
		ts, ok := parseTimestamp(r.CreatedAt)
		if !ok {
			skipped++
			continue
		}
		if r.Cost < 0 {
			skipped++
			continue
		}
		user := ""
		if r.User != nil {
			user = *r.User
		}
		events = append(events, domain.Event{
			Type:      r.Type,
			Model:     r.Model,
			Cost:      decimal.NewFromFloat(r.Cost),
			CreatedAt: ts,
			User:      user,
		})
	}
	return events, skipped
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
