package infra

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"movieposter/internal/domain"
)

// TMDBConfig configures the movie metadata provider.
type TMDBConfig struct {
	APIKey  string `env:"TMDB_API_KEY"`
	BaseURL string `env:"TMDB_API_URL" envDefault:"https://api.themoviedb.org/3"`
}

// ReplicateConfig configures the image generation provider.
type ReplicateConfig struct {
	APIToken      string `env:"REPLICATE_API_TOKEN"`
	BaseURL       string `env:"REPLICATE_API_URL" envDefault:"https://api.replicate.com/v1"`
	Model         string `env:"REPLICATE_MODEL" envDefault:"black-forest-labs/flux-schnell"`
	WebhookSecret string `env:"REPLICATE_WEBHOOK_SECRET"`
}

// PollConfig bounds the prediction lifecycle.
type PollConfig struct {
	Interval     time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	MaxAttempts  int           `env:"POLL_MAX_ATTEMPTS" envDefault:"300"`
	Timeout      time.Duration `env:"POLL_TIMEOUT" envDefault:"5m"`
	FetchRetries int           `env:"POLL_FETCH_RETRIES" envDefault:"0"`
}

// DownloadConfig restricts what the download relay will fetch.
type DownloadConfig struct {
	HostAllowlist []string `env:"DOWNLOAD_HOST_ALLOWLIST" envSeparator:"," envDefault:"replicate.delivery,replicate.com"`
	MaxBytes      int64    `env:"DOWNLOAD_MAX_BYTES" envDefault:"20971520"`
}

// WorkerConfig drives the background reconciler.
type WorkerConfig struct {
	Interval    time.Duration `env:"WORKER_INTERVAL" envDefault:"15s"`
	BatchSize   int           `env:"WORKER_BATCH_SIZE" envDefault:"20"`
	Concurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	// Grace is how long a prediction must sit untouched before the worker
	// polls it. It must outlast the client poll timeout.
	Grace time.Duration `env:"WORKER_GRACE" envDefault:"6m"`
	// MaxAge is when an unsettled prediction is recorded as timed out.
	MaxAge time.Duration `env:"WORKER_MAX_AGE" envDefault:"30m"`
}

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"5"`

	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	VercelURL     string `env:"VERCEL_URL"`
	NgrokHost     string `env:"NGROK_HOST"`

	HTTPReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	HTTPIdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	UpstreamTimeout    time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	RateLimitPerMin    int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	TMDB      TMDBConfig
	Replicate ReplicateConfig
	Poll      PollConfig
	Download  DownloadConfig
	Worker    WorkerConfig
}

// LoadConfig parses the environment, applies guardrails and validates that the
// provider credentials are present. A missing credential is reported as a
// domain Configuration error.
func LoadConfig() (*Config, error) {
	cfg, err := ParseConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig parses the environment without requiring credentials.
func ParseConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return &cfg, nil
}

// Sanitize trims values and clamps limits to usable ranges.
func (c *Config) Sanitize() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	c.Replicate.APIToken = strings.TrimSpace(c.Replicate.APIToken)
	c.Replicate.BaseURL = strings.TrimRight(strings.TrimSpace(c.Replicate.BaseURL), "/")
	c.Replicate.Model = strings.TrimSpace(c.Replicate.Model)
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = time.Second
	}
	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = 300
	}
	if c.Poll.Timeout <= 0 {
		c.Poll.Timeout = 5 * time.Minute
	}
	if c.Poll.FetchRetries < 0 {
		c.Poll.FetchRetries = 0
	}
	if c.Download.MaxBytes <= 0 {
		c.Download.MaxBytes = 20 << 20
	}
	c.Download.HostAllowlist = normalizeHosts(c.Download.HostAllowlist)
	c.CORSAllowedOrigins = trimAll(c.CORSAllowedOrigins)
	if c.RateLimitPerMin < 0 {
		c.RateLimitPerMin = 0
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.Interval <= 0 {
		c.Worker.Interval = 15 * time.Second
	}
	if c.Worker.Grace <= c.Poll.Timeout {
		c.Worker.Grace = c.Poll.Timeout + time.Minute
	}
	if c.Worker.MaxAge < c.Worker.Grace {
		c.Worker.MaxAge = c.Worker.Grace
	}
}

// Validate reports missing provider credentials.
func (c *Config) Validate() error {
	var errs []error
	if c.TMDB.APIKey == "" {
		errs = append(errs, domain.Configuration("TMDB_API_KEY environment variable is not set."))
	}
	if c.Replicate.APIToken == "" {
		errs = append(errs, domain.Configuration("REPLICATE_API_TOKEN environment variable is not set."))
	}
	if c.Replicate.Model == "" {
		errs = append(errs, domain.Configuration("REPLICATE_MODEL must not be empty."))
	}
	return errors.Join(errs...)
}

// WebhookBaseURL returns the publicly reachable base address used for
// generation callbacks, or "" when the deployment has none.
func (c *Config) WebhookBaseURL() string {
	switch {
	case strings.TrimSpace(c.PublicBaseURL) != "":
		return strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	case strings.TrimSpace(c.VercelURL) != "":
		return "https://" + strings.Trim(strings.TrimSpace(c.VercelURL), "/")
	case strings.TrimSpace(c.NgrokHost) != "":
		host := strings.TrimRight(strings.TrimSpace(c.NgrokHost), "/")
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		return host
	default:
		return ""
	}
}

// WebhookURL is the callback endpoint registered with each prediction.
func (c *Config) WebhookURL() string {
	base := c.WebhookBaseURL()
	if base == "" {
		return ""
	}
	return base + "/api/webhooks"
}

func normalizeHosts(hosts []string) []string {
	seen := make(map[string]struct{}, len(hosts))
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if strings.Contains(h, "://") {
			if u, err := url.Parse(h); err == nil && u.Hostname() != "" {
				h = u.Hostname()
			}
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
