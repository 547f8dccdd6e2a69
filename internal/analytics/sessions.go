package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmcfarland/usagedeck/internal/domain"
)

// SessionConfig controls the inactivity-gap session reconstruction.
type SessionConfig struct {
	// Gap is the inactivity threshold: a new session starts when the time
	// since the user's previous event exceeds it.
	Gap time.Duration
	// Bounds are the ascending histogram bucket boundaries. Durations are
	// classified into half-open [lo, hi) intervals, the last unbounded.
	Bounds []time.Duration
}

// DefaultSessionConfig returns the 5-minute gap and the 5/10/30/60 minute
// bucket boundaries.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Gap: 5 * time.Minute,
		Bounds: []time.Duration{
			5 * time.Minute,
			10 * time.Minute,
			30 * time.Minute,
			60 * time.Minute,
		},
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	defaults := DefaultSessionConfig()
	if c.Gap <= 0 {
		c.Gap = defaults.Gap
	}
	if len(c.Bounds) == 0 {
		c.Bounds = defaults.Bounds
	}
	return c
}

// labels renders the bucket labels, e.g. "<5m", "5-10m", ..., "60m+".
func (c SessionConfig) labels() []string {
	labels := make([]string, 0, len(c.Bounds)+1)
	labels = append(labels, "<"+formatBound(c.Bounds[0]))
	for i := 1; i < len(c.Bounds); i++ {
		labels = append(labels, trimUnit(formatBound(c.Bounds[i-1]))+"-"+formatBound(c.Bounds[i]))
	}
	labels = append(labels, formatBound(c.Bounds[len(c.Bounds)-1])+"+")
	return labels
}

func formatBound(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
	return d.String()
}

func trimUnit(s string) string {
	return strings.TrimSuffix(s, "m")
}

// SessionHistogram reconstructs per-user sessions from discrete events and
// buckets the durations between consecutive session starts.
//
// The events are filtered to the given types (nil or empty means all),
// stable-sorted by user then timestamp (unattributed events first), and
// walked per user: the first event starts a session, and any event arriving
// more than the configured gap after the previous one starts another. A user
// with exactly one session start overall contributes a single synthetic
// sample to the shortest bucket, since one observation has no measurable
// duration but should not vanish from the histogram. Users with two or more
// session starts contribute the duration between each consecutive pair.
//
// The output always contains every bucket in fixed order, zero-filled.
func SessionHistogram(events []domain.Event, types []string, cfg SessionConfig) []BucketCount {
	cfg = cfg.withDefaults()

	var qualifying []domain.Event
	if len(types) == 0 {
		qualifying = append(qualifying, events...)
	} else {
		wanted := make(map[string]struct{}, len(types))
		for _, t := range types {
			wanted[t] = struct{}{}
		}
		for _, e := range events {
			if _, ok := wanted[e.Type]; ok {
				qualifying = append(qualifying, e)
			}
		}
	}

	// Per-user chronological order is mandatory; never trust input order.
	// Empty user identifiers sort before every named user.
	sort.SliceStable(qualifying, func(i, j int) bool {
		if qualifying[i].User != qualifying[j].User {
			return qualifying[i].User < qualifying[j].User
		}
		return qualifying[i].CreatedAt.Before(qualifying[j].CreatedAt)
	})

	counts := make([]int, len(cfg.Bounds)+1)
	flush := func(starts []time.Time) {
		if len(starts) == 0 {
			return
		}
		if len(starts) == 1 {
			// Single observation: attribute to the shortest bucket rather
			// than discarding the user.
			counts[0]++
			return
		}
		for i := 1; i < len(starts); i++ {
			counts[classifyDuration(starts[i].Sub(starts[i-1]), cfg.Bounds)]++
		}
	}

	var (
		currentUser string
		haveUser    bool
		prev        time.Time
		starts      []time.Time
	)
	for _, e := range qualifying {
		if !haveUser || e.User != currentUser {
			flush(starts)
			currentUser = e.User
			haveUser = true
			starts = starts[:0]
			starts = append(starts, e.CreatedAt)
			prev = e.CreatedAt
			continue
		}
		if e.CreatedAt.Sub(prev) > cfg.Gap {
			starts = append(starts, e.CreatedAt)
		}
		prev = e.CreatedAt
	}
	flush(starts)

	labels := cfg.labels()
	rows := make([]BucketCount, len(counts))
	for i := range counts {
		rows[i] = BucketCount{Key: labels[i], Count: counts[i]}
	}
	return rows
}

func classifyDuration(d time.Duration, bounds []time.Duration) int {
	for i, hi := range bounds {
		if d < hi {
			return i
		}
	}
	return len(bounds)
}
