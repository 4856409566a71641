package reliability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func TestDoPassesThroughResult(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitConfig("test"))
	got, err := Do(cb, func() (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Fatalf("Do() = %d, %v; want 42, nil", got, err)
	}
}

func TestDoOpensAfterFailures(t *testing.T) {
	cfg := DefaultCircuitConfig("test")
	cfg.MinRequests = 2
	cfg.Timeout = time.Minute
	cb := NewCircuitBreaker(cfg)
	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if _, err := Do(cb, func() (string, error) { return "", boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d error = %v, want boom", i, err)
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	calls := 0
	_, err := Do(cb, func() (string, error) { calls++; return "ok", nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("error = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Fatalf("fn must not run while open")
	}
}

func TestIsSuccessfulExcludesClientErrors(t *testing.T) {
	clientErr := errors.New("not found")
	cfg := DefaultCircuitConfig("test")
	cfg.MinRequests = 1
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, clientErr) }
	cb := NewCircuitBreaker(cfg)
	for i := 0; i < 3; i++ {
		_, _ = Do(cb, func() (int, error) { return 0, clientErr })
	}
	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("state = %s, want closed", cb.State())
	}
}

func TestDoWithNilBreaker(t *testing.T) {
	got, err := Do[string](nil, func() (string, error) { return "direct", nil })
	if err != nil || got != "direct" {
		t.Fatalf("Do(nil) = %q, %v", got, err)
	}
}

func TestLogStateChanges(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultCircuitConfig("tmdb")
	cfg.MinRequests = 1
	cfg.OnStateChange = LogStateChanges(zerolog.New(&buf))
	cb := NewCircuitBreaker(cfg)
	_, _ = Do(cb, func() (int, error) { return 0, errors.New("boom") })

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	line := buf.String()
	if !strings.Contains(line, `"breaker":"tmdb"`) || !strings.Contains(line, `"to":"open"`) {
		t.Fatalf("log line = %q", line)
	}
}
