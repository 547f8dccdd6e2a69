package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/tmcfarland/usagedeck/internal/timeutil"
)

// Config captures the runtime configuration for the analytics service.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Events        EventsConfig        `mapstructure:"events"`
	Filters       FiltersConfig       `mapstructure:"filters"`
	Analytics     AnalyticsConfig     `mapstructure:"analytics"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	ListenAddr            string        `mapstructure:"listen_addr"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	GracefulShutdownDelay time.Duration `mapstructure:"graceful_shutdown_delay"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// EventsConfig bounds the event scan. FloorDate is an inclusive day key;
// rows created before it never enter a report.
type EventsConfig struct {
	FloorDate string `mapstructure:"floor_date"`
	PageSize  int    `mapstructure:"page_size"`
}

// FiltersConfig lists events to drop before any aggregation runs.
type FiltersConfig struct {
	ExcludedUsers          []string `mapstructure:"excluded_users"`
	ExcludedTypeSubstrings []string `mapstructure:"excluded_type_substrings"`
}

type AnalyticsConfig struct {
	RelevantTypes      []string      `mapstructure:"relevant_types"`
	RetentionType      string        `mapstructure:"retention_type"`
	ActivityWindowDays int           `mapstructure:"activity_window_days"`
	SessionGap         time.Duration `mapstructure:"session_gap"`
	// SessionBucketMinutes are ascending upper bounds; a final unbounded
	// bucket is implied.
	SessionBucketMinutes []int          `mapstructure:"session_buckets"`
	CohortSegments       CohortSegments `mapstructure:"cohort_segment_boundaries"`
	TopUserLimit         int            `mapstructure:"top_user_limit"`
}

// CohortSegments holds two day keys splitting cohort start dates into
// three ranges: before A, A up to B, and from B onward.
type CohortSegments struct {
	A string `mapstructure:"a"`
	B string `mapstructure:"b"`
}

type ObservabilityConfig struct {
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration sourced from YAML and environment variables.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicitFile := false
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		explicitFile = true
	} else {
		if cfg := os.Getenv("USAGEDECK_CONFIG_FILE"); cfg != "" {
			v.SetConfigFile(cfg)
			explicitFile = true
		}
	}

	if !explicitFile {
		// Allow standard lookup locations when no explicit file is provided.
		v.SetConfigName("usagedeck")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("USAGEDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(timeStringToDurationHook())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set and normalizes list fields.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("missing required configuration: USAGEDECK_DATABASE_URL")
	}
	if c.Database.MaxConns < 0 {
		return fmt.Errorf("database.max_conns must be >= 0")
	}

	if c.Events.PageSize <= 0 {
		return fmt.Errorf("events.page_size must be > 0")
	}
	if c.Events.FloorDate != "" {
		if _, err := timeutil.ParseDayKey(c.Events.FloorDate); err != nil {
			return fmt.Errorf("invalid events.floor_date: %w", err)
		}
	}

	c.Filters.ExcludedUsers = normalizeStringSlice(c.Filters.ExcludedUsers)
	c.Filters.ExcludedTypeSubstrings = normalizeStringSlice(c.Filters.ExcludedTypeSubstrings)
	for i, user := range c.Filters.ExcludedUsers {
		if _, err := uuid.Parse(user); err != nil {
			return fmt.Errorf("filters.excluded_users[%d] is not a valid UUID: %q", i, user)
		}
	}

	c.Analytics.RelevantTypes = normalizeStringSlice(c.Analytics.RelevantTypes)
	if c.Analytics.ActivityWindowDays <= 0 {
		return fmt.Errorf("analytics.activity_window_days must be > 0")
	}
	if c.Analytics.SessionGap <= 0 {
		return fmt.Errorf("analytics.session_gap must be > 0")
	}
	for i := 1; i < len(c.Analytics.SessionBucketMinutes); i++ {
		if c.Analytics.SessionBucketMinutes[i] <= c.Analytics.SessionBucketMinutes[i-1] {
			return fmt.Errorf("analytics.session_buckets must be strictly ascending")
		}
	}
	if len(c.Analytics.SessionBucketMinutes) > 0 && c.Analytics.SessionBucketMinutes[0] <= 0 {
		return fmt.Errorf("analytics.session_buckets must be positive")
	}
	if c.Analytics.TopUserLimit <= 0 {
		return fmt.Errorf("analytics.top_user_limit must be > 0")
	}
	if err := c.Analytics.CohortSegments.validate(); err != nil {
		return err
	}

	return nil
}

func (s CohortSegments) validate() error {
	for _, boundary := range []struct {
		key   string
		value string
	}{
		{"analytics.cohort_segment_boundaries.a", s.A},
		{"analytics.cohort_segment_boundaries.b", s.B},
	} {
		if boundary.value == "" {
			return fmt.Errorf("%s must be provided", boundary.key)
		}
		if _, err := timeutil.ParseDayKey(boundary.value); err != nil {
			return fmt.Errorf("invalid %s: %w", boundary.key, err)
		}
	}
	if s.B <= s.A {
		return fmt.Errorf("analytics.cohort_segment_boundaries.b must be after a")
	}
	return nil
}

// SessionBounds converts the configured bucket minutes to durations.
func (a AnalyticsConfig) SessionBounds() []time.Duration {
	if len(a.SessionBucketMinutes) == 0 {
		return nil
	}
	bounds := make([]time.Duration, len(a.SessionBucketMinutes))
	for i, minutes := range a.SessionBucketMinutes {
		bounds[i] = time.Duration(minutes) * time.Minute
	}
	return bounds
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.graceful_shutdown_delay", "5s")

	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("events.floor_date", "2023-07-05")
	v.SetDefault("events.page_size", 1000)

	v.SetDefault("filters.excluded_users", []string{})
	v.SetDefault("filters.excluded_type_substrings", []string{"BACKEND"})

	v.SetDefault("analytics.relevant_types", []string{"gptChat", "fixer"})
	v.SetDefault("analytics.retention_type", "gptChat")
	v.SetDefault("analytics.activity_window_days", 19)
	v.SetDefault("analytics.session_gap", "5m")
	v.SetDefault("analytics.session_buckets", []int{5, 10, 30, 60})
	v.SetDefault("analytics.cohort_segment_boundaries.a", "2023-09-01")
	v.SetDefault("analytics.cohort_segment_boundaries.b", "2023-11-01")
	v.SetDefault("analytics.top_user_limit", 10)

	v.SetDefault("observability.enable_metrics", true)
}

func normalizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

func timeStringToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case time.Duration:
			return v, nil
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			return d, nil
		default:
			return nil, fmt.Errorf("cannot decode %T into time.Duration", data)
		}
	}
}
