package ingest

import (
	"strings"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

// Exclusions describes the upstream business filters: internal/test user
// accounts and event-type families that should never reach the analytics.
type Exclusions struct {
	// Users lists user identifiers to drop entirely.
	Users []string
	// TypeSubstrings drops any event whose type contains one of these
	// substrings (e.g. "BACKEND").
	TypeSubstrings []string
}

// Filter returns a new predicate-backed filter for the exclusions.
func (x Exclusions) Filter() *Filter {
	users := make(map[string]struct{}, len(x.Users))
	for _, u := range x.Users {
		if u = strings.TrimSpace(u); u != "" {
			users[u] = struct{}{}
		}
	}
	subs := make([]string, 0, len(x.TypeSubstrings))
	for _, s := range x.TypeSubstrings {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}
	return &Filter{users: users, typeSubstrings: subs}
}

// Filter drops excluded events. The zero value excludes nothing.
type Filter struct {
	users          map[string]struct{}
	typeSubstrings []string
}

// Keep reports whether the event survives the exclusions.
func (f *Filter) Keep(e domain.Event) bool {
	if f == nil {
		return true
	}
	if _, excluded := f.users[e.User]; excluded {
		return false
	}
	for _, sub := range f.typeSubstrings {
		if strings.Contains(e.Type, sub) {
			return false
		}
	}
	return true
}

// Apply returns the events that survive the exclusions, preserving order.
func (f *Filter) Apply(events []domain.Event) []domain.Event {
	if f == nil || (len(f.users) == 0 && len(f.typeSubstrings) == 0) {
		return events
	}
	kept := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if f.Keep(e) {
			kept = append(kept, e)
		}
	}
	return kept
}
