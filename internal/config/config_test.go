package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{URL: "postgres://localhost/usagedeck"},
		Events:   EventsConfig{FloorDate: "2023-07-05", PageSize: 1000},
		Filters: FiltersConfig{
			ExcludedUsers:          []string{"7b3f8f6e-1c4a-4e65-9a2f-0d8b1b6f2c11"},
			ExcludedTypeSubstrings: []string{"BACKEND"},
		},
		Analytics: AnalyticsConfig{
			RelevantTypes:        []string{"gptChat", "fixer"},
			RetentionType:        "gptChat",
			ActivityWindowDays:   19,
			SessionGap:           5 * time.Minute,
			SessionBucketMinutes: []int{5, 10, 30, 60},
			CohortSegments:       CohortSegments{A: "2023-09-01", B: "2023-11-01"},
			TopUserLimit:         10,
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantMsg: "USAGEDECK_DATABASE_URL",
		},
		{
			name:    "zero page size",
			mutate:  func(c *Config) { c.Events.PageSize = 0 },
			wantMsg: "events.page_size",
		},
		{
			name:    "bad floor date",
			mutate:  func(c *Config) { c.Events.FloorDate = "07/05/2023" },
			wantMsg: "events.floor_date",
		},
		{
			name:    "non-uuid excluded user",
			mutate:  func(c *Config) { c.Filters.ExcludedUsers = []string{"not-a-uuid"} },
			wantMsg: "excluded_users",
		},
		{
			name:    "zero session gap",
			mutate:  func(c *Config) { c.Analytics.SessionGap = 0 },
			wantMsg: "session_gap",
		},
		{
			name:    "unordered session buckets",
			mutate:  func(c *Config) { c.Analytics.SessionBucketMinutes = []int{5, 5, 30} },
			wantMsg: "strictly ascending",
		},
		{
			name:    "segment boundaries out of order",
			mutate:  func(c *Config) { c.Analytics.CohortSegments = CohortSegments{A: "2023-11-01", B: "2023-09-01"} },
			wantMsg: "must be after",
		},
		{
			name:    "missing segment boundary",
			mutate:  func(c *Config) { c.Analytics.CohortSegments.B = "" },
			wantMsg: "cohort_segment_boundaries.b",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestValidateTrimsListFields(t *testing.T) {
	cfg := validConfig()
	cfg.Filters.ExcludedTypeSubstrings = []string{" BACKEND ", "", "probe"}
	cfg.Analytics.RelevantTypes = []string{"gptChat", " "}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Filters.ExcludedTypeSubstrings) != 2 || cfg.Filters.ExcludedTypeSubstrings[0] != "BACKEND" {
		t.Fatalf("substrings not normalized: %v", cfg.Filters.ExcludedTypeSubstrings)
	}
	if len(cfg.Analytics.RelevantTypes) != 1 {
		t.Fatalf("types not normalized: %v", cfg.Analytics.RelevantTypes)
	}
}

func TestSessionBounds(t *testing.T) {
	a := AnalyticsConfig{SessionBucketMinutes: []int{5, 10}}
	bounds := a.SessionBounds()
	if len(bounds) != 2 || bounds[0] != 5*time.Minute || bounds[1] != 10*time.Minute {
		t.Fatalf("unexpected bounds %v", bounds)
	}
	if (AnalyticsConfig{}).SessionBounds() != nil {
		t.Fatal("empty bucket list should yield nil bounds")
	}
}
