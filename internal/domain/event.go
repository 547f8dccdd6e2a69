// Package domain defines the normalized usage-event entity shared by the
// ingest and analytics layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is one normalized usage record. Events are immutable once built by
// the normalizer; aggregators treat slices of them as read-only snapshots.
type Event struct {
	// Type is the call category (a feature name such as "gptChat").
	Type string
	// Model is the sub-category; may be empty.
	Model string
	// Cost is the non-negative charge for the call. Decimal keeps the
	// accumulators exact; rounding happens only at presentation.
	Cost decimal.Decimal
	// CreatedAt is the UTC-normalized instant of the call.
	CreatedAt time.Time
	// User is the opaque user identifier. Empty means the event carries no
	// user attribution; such events still participate in distinct-user
	// counts as a single pseudo-user.
	User string
}

// Attributed reports whether the event carries a user identifier.
func (e Event) Attributed() bool { return e.User != "" }
