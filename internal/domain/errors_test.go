package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"invalid input", InvalidInput("missing"), http.StatusBadRequest},
		{"not found", NotFound("none"), http.StatusNotFound},
		{"upstream keeps status", Upstream(http.StatusUnauthorized, "bad key", nil), http.StatusUnauthorized},
		{"upstream without status", Upstream(0, "boom", nil), http.StatusBadGateway},
		{"configuration", Configuration("missing token"), http.StatusInternalServerError},
		{"timeout", Timeout("too slow"), http.StatusGatewayTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.HTTPStatus(); got != tc.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestErrorMatchesKindSentinel(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("tmdb: search: %w", Upstream(http.StatusBadGateway, "Error from TMDb: down", cause))
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected errors.Is(err, ErrUpstream)")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("upstream error must not match ErrNotFound")
	}
	if got := Detail(err); got != "Error from TMDb: down" {
		t.Fatalf("Detail() = %q", got)
	}
	if got := Detail(errors.New("plain")); got != "plain" {
		t.Fatalf("Detail() fallback = %q", got)
	}
}
