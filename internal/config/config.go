// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Archive backends.
const (
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Inputs  InputsConfig  `mapstructure:"inputs"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig points at the upstream legislature API and document host.
type APIConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	DocumentBaseURL string `mapstructure:"document_base_url"`
}

// CrawlerConfig governs crawl politeness. MaxRequestsPerSecond caps the
// per-host request rate on top of Delay; zero leaves it uncapped.
type CrawlerConfig struct {
	UserAgent            string        `mapstructure:"user_agent"`
	Delay                time.Duration `mapstructure:"delay"`
	MaxRequestsPerSecond float64       `mapstructure:"max_requests_per_second"`
	Burst                int           `mapstructure:"burst"`
}

// HTTPConfig configures the HTTP client timeout and retry budget.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
}

// ArchiveConfig selects and configures the archive backend.
type ArchiveConfig struct {
	Backend       string `mapstructure:"backend"`
	BaseDir       string `mapstructure:"base_dir"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	GCSPrefix     string `mapstructure:"gcs_prefix"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
}

// InputsConfig locates the static lookup tables.
type InputsConfig struct {
	CrosswalkCSV     string `mapstructure:"crosswalk_csv"`
	SessionDatesJSON string `mapstructure:"session_dates_json"`
}

// PubSubConfig holds metadata for "entity archived" notifications. An empty
// topic disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig enables the Prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features. Level overrides the
// preset's minimum level when set.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEGISLATURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "https://sdlegislature.gov")
	v.SetDefault("api.document_base_url", "https://mylrc.sdlegislature.gov/api/Documents")
	v.SetDefault("crawler.user_agent", "legislature-crawler/0.1")
	v.SetDefault("crawler.delay", 500*time.Millisecond)
	v.SetDefault("crawler.max_requests_per_second", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial", 250*time.Millisecond)
	v.SetDefault("http.backoff_max", 5*time.Second)
	v.SetDefault("archive.backend", BackendLocal)
	v.SetDefault("archive.base_dir", "data")
	v.SetDefault("archive.gcs_prefix", "")
	v.SetDefault("archive.postgres_table", "legislature_archive")
	v.SetDefault("inputs.crosswalk_csv", "inputs/sd-legislator-xwalk.csv")
	v.SetDefault("inputs.session_dates_json", "inputs/session-dates.json")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL")
	}
	if c.API.DocumentBaseURL == "" {
		return fmt.Errorf("api.document_base_url is required")
	}
	if c.Crawler.Delay < 0 {
		return fmt.Errorf("crawler.delay must be >= 0")
	}
	if c.Crawler.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("crawler.max_requests_per_second must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffMax < c.HTTP.BackoffInitial {
		return fmt.Errorf("http.backoff_max must be >= http.backoff_initial")
	}
	switch c.Archive.Backend {
	case BackendLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir is required for the local backend")
		}
	case BackendMemory:
	case BackendGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket is required for the gcs backend")
		}
	case BackendPostgres:
		if c.Archive.PostgresDSN == "" {
			return fmt.Errorf("archive.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of local, memory, gcs, postgres", c.Archive.Backend)
	}
	if c.Inputs.CrosswalkCSV == "" {
		return fmt.Errorf("inputs.crosswalk_csv is required")
	}
	if c.Inputs.SessionDatesJSON == "" {
		return fmt.Errorf("inputs.session_dates_json is required")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
