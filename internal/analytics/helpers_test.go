package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

// ev builds a test event from an RFC3339 timestamp.
func ev(t *testing.T, eventType, model, user, ts string, cost float64) domain.Event {
	t.Helper()
	created, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatalf("parse timestamp %s: %v", ts, err)
	}
	return domain.Event{
		Type:      eventType,
		Model:     model,
		User:      user,
		Cost:      decimal.NewFromFloat(cost),
		CreatedAt: created.UTC(),
	}
}

// day builds a midnight event for cohort-style tests.
func day(t *testing.T, eventType, user, date string) domain.Event {
	t.Helper()
	return ev(t, eventType, "", user, date+"T12:00:00Z", 0)
}
