package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.BaseURL != "https://sdlegislature.gov" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.Crawler.Delay != 500*time.Millisecond {
		t.Fatalf("expected 500ms delay, got %v", cfg.Crawler.Delay)
	}
	if cfg.HTTP.Timeout != 30*time.Second || cfg.HTTP.MaxRetries != 0 {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.Archive.Backend != BackendLocal || cfg.Archive.BaseDir != "data" {
		t.Fatalf("unexpected archive defaults: %+v", cfg.Archive)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
api:
  base_url: http://127.0.0.1:9999
  document_base_url: http://127.0.0.1:9999/docs
crawler:
  user_agent: test-agent
  delay: 1s
  max_requests_per_second: 2.5
  burst: 3
http:
  timeout: 45s
  max_retries: 3
  backoff_initial: 100ms
  backoff_max: 2s
archive:
  backend: postgres
  postgres_dsn: postgres://localhost/legislature
  postgres_table: archive_rows
inputs:
  crosswalk_csv: /srv/xwalk.csv
  session_dates_json: /srv/dates.json
pubsub:
  project_id: proj
  topic_name: legislature-archived
metrics:
  listen_addr: ":9102"
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawler.UserAgent != "test-agent" || cfg.Crawler.Delay != time.Second ||
		cfg.Crawler.MaxRequestsPerSecond != 2.5 || cfg.Crawler.Burst != 3 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.HTTP.Timeout != 45*time.Second || cfg.HTTP.MaxRetries != 3 ||
		cfg.HTTP.BackoffInitial != 100*time.Millisecond || cfg.HTTP.BackoffMax != 2*time.Second {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if cfg.Archive.Backend != BackendPostgres || cfg.Archive.PostgresTable != "archive_rows" {
		t.Fatalf("expected archive overrides to apply: %+v", cfg.Archive)
	}
	if cfg.Inputs.CrosswalkCSV != "/srv/xwalk.csv" {
		t.Fatalf("expected inputs overrides to apply: %+v", cfg.Inputs)
	}
	if cfg.PubSub.TopicName != "legislature-archived" || cfg.Metrics.ListenAddr != ":9102" {
		t.Fatalf("expected pubsub/metrics overrides to apply: %+v %+v", cfg.PubSub, cfg.Metrics)
	}
	if cfg.Logging.Development {
		t.Fatal("expected development logging disabled")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEGISLATURE_ARCHIVE_BASE_DIR", "/tmp/legislature")
	t.Setenv("LEGISLATURE_HTTP_MAX_RETRIES", "2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Archive.BaseDir != "/tmp/legislature" {
		t.Fatalf("expected env base dir, got %q", cfg.Archive.BaseDir)
	}
	if cfg.HTTP.MaxRetries != 2 {
		t.Fatalf("expected env retries, got %d", cfg.HTTP.MaxRetries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		API:     APIConfig{BaseURL: "https://sdlegislature.gov", DocumentBaseURL: "https://docs"},
		Crawler: CrawlerConfig{Delay: time.Second},
		HTTP:    HTTPConfig{Timeout: time.Second, BackoffInitial: time.Millisecond, BackoffMax: time.Second},
		Archive: ArchiveConfig{Backend: BackendLocal, BaseDir: "data"},
		Inputs:  InputsConfig{CrosswalkCSV: "x.csv", SessionDatesJSON: "d.json"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "sdlegislature.gov" }, "api.base_url"},
		{"negative delay", func(c *Config) { c.Crawler.Delay = -time.Second }, "crawler.delay"},
		{"negative rate", func(c *Config) { c.Crawler.MaxRequestsPerSecond = -1 }, "crawler.max_requests_per_second"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"inverted backoff", func(c *Config) { c.HTTP.BackoffMax = 0 }, "http.backoff_max"},
		{"unknown backend", func(c *Config) { c.Archive.Backend = "s3" }, "archive.backend"},
		{"local without dir", func(c *Config) { c.Archive.BaseDir = "" }, "archive.base_dir"},
		{"gcs without bucket", func(c *Config) { c.Archive.Backend = BackendGCS }, "archive.gcs_bucket"},
		{"postgres without dsn", func(c *Config) { c.Archive.Backend = BackendPostgres }, "archive.postgres_dsn"},
		{"missing crosswalk", func(c *Config) { c.Inputs.CrosswalkCSV = "" }, "inputs.crosswalk_csv"},
		{"missing session dates", func(c *Config) { c.Inputs.SessionDatesJSON = "" }, "inputs.session_dates_json"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "t" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
