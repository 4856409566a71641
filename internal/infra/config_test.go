package infra

import (
	"errors"
	"testing"
	"time"

	"movieposter/internal/domain"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("TMDB_API_KEY", "tmdb-key")
	t.Setenv("REPLICATE_API_TOKEN", "r8-token")
}

func TestLoadConfigDefaults(t *testing.T) {
	setCredentials(t)
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("VERCEL_URL", "")
	t.Setenv("NGROK_HOST", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Replicate.Model != "black-forest-labs/flux-schnell" {
		t.Fatalf("Replicate.Model = %q", cfg.Replicate.Model)
	}
	if cfg.TMDB.BaseURL != "https://api.themoviedb.org/3" {
		t.Fatalf("TMDB.BaseURL = %q", cfg.TMDB.BaseURL)
	}
	if cfg.Poll.Interval != time.Second || cfg.Poll.MaxAttempts != 300 || cfg.Poll.Timeout != 5*time.Minute {
		t.Fatalf("unexpected poll config: %+v", cfg.Poll)
	}
	want := []string{"replicate.delivery", "replicate.com"}
	if len(cfg.Download.HostAllowlist) != len(want) {
		t.Fatalf("HostAllowlist = %#v, want %#v", cfg.Download.HostAllowlist, want)
	}
	for i := range want {
		if cfg.Download.HostAllowlist[i] != want[i] {
			t.Fatalf("HostAllowlist[%d] = %q, want %q", i, cfg.Download.HostAllowlist[i], want[i])
		}
	}
	if cfg.WebhookURL() != "" {
		t.Fatalf("WebhookURL should be empty without a public host, got %q", cfg.WebhookURL())
	}
}

func TestLoadConfigMissingCredentials(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("REPLICATE_API_TOKEN", "")

	_, err := LoadConfig()
	if err == nil {
		t.Fatalf("expected configuration error")
	}
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}

func TestWebhookURLPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		public string
		vercel string
		ngrok  string
		want   string
	}{
		{name: "public base wins", public: "https://posters.example.com/", vercel: "x.vercel.app", want: "https://posters.example.com/api/webhooks"},
		{name: "vercel url", vercel: "poster-abc.vercel.app", ngrok: "https://n.ngrok.io", want: "https://poster-abc.vercel.app/api/webhooks"},
		{name: "ngrok host with scheme", ngrok: "https://abc.ngrok.io", want: "https://abc.ngrok.io/api/webhooks"},
		{name: "ngrok host without scheme", ngrok: "abc.ngrok.io", want: "https://abc.ngrok.io/api/webhooks"},
		{name: "none", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{PublicBaseURL: tc.public, VercelURL: tc.vercel, NgrokHost: tc.ngrok}
			if got := cfg.WebhookURL(); got != tc.want {
				t.Fatalf("WebhookURL() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLoadConfigNormalizesAllowlist(t *testing.T) {
	setCredentials(t)
	t.Setenv("DOWNLOAD_HOST_ALLOWLIST", " Replicate.Delivery, https://cdn.example.com/path ,replicate.delivery,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"replicate.delivery", "cdn.example.com"}
	if len(cfg.Download.HostAllowlist) != len(want) {
		t.Fatalf("HostAllowlist = %#v, want %#v", cfg.Download.HostAllowlist, want)
	}
	for i := range want {
		if cfg.Download.HostAllowlist[i] != want[i] {
			t.Fatalf("HostAllowlist[%d] = %q, want %q", i, cfg.Download.HostAllowlist[i], want[i])
		}
	}
}

func TestSanitizeClampsPollLimits(t *testing.T) {
	cfg := &Config{}
	cfg.Sanitize()
	if cfg.Poll.Interval != time.Second {
		t.Fatalf("Poll.Interval = %v", cfg.Poll.Interval)
	}
	if cfg.Poll.MaxAttempts != 300 {
		t.Fatalf("Poll.MaxAttempts = %d", cfg.Poll.MaxAttempts)
	}
	if cfg.Worker.Concurrency != 1 {
		t.Fatalf("Worker.Concurrency = %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.Grace != 6*time.Minute || cfg.Worker.MaxAge != 6*time.Minute {
		t.Fatalf("Worker.Grace = %v MaxAge = %v", cfg.Worker.Grace, cfg.Worker.MaxAge)
	}
}

func TestSanitizeKeepsWorkerGraceAbovePollTimeout(t *testing.T) {
	cfg := &Config{}
	cfg.Poll.Timeout = 10 * time.Minute
	cfg.Worker.Grace = 2 * time.Minute
	cfg.Worker.MaxAge = time.Hour
	cfg.Sanitize()
	if cfg.Worker.Grace != 11*time.Minute {
		t.Fatalf("Worker.Grace = %v, want 11m", cfg.Worker.Grace)
	}
	if cfg.Worker.MaxAge != time.Hour {
		t.Fatalf("Worker.MaxAge = %v, want 1h", cfg.Worker.MaxAge)
	}
}
