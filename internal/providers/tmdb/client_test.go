package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"movieposter/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %q, want test-key", got)
		}
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	client := NewClient(Options{APIKey: "test-key", BaseURL: ts.URL, HTTPClient: ts.Client()})
	return client, &calls
}

func TestLookupActorUsesFirstResult(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/person":
			if got := r.URL.Query().Get("query"); got != "Keanu" {
				t.Errorf("query = %q", got)
			}
			_, _ = w.Write([]byte(`{"page":1,"results":[
				{"id":6384,"name":"Keanu Reeves","profile_path":"/keanu.jpg","known_for_department":"Acting","popularity":55.1},
				{"id":999,"name":"Keanu Somebody","profile_path":null}
			]}`))
		case "/person/6384/movie_credits":
			_, _ = w.Write([]byte(`{"id":6384,"cast":[
				{"id":603,"title":"The Matrix","release_date":"1999-03-31","poster_path":"/m.jpg"},
				{"id":245891,"title":"John Wick","release_date":"2014-10-22","poster_path":null},
				{"id":603,"title":"The Matrix","release_date":"1999-03-31"}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	actor, err := client.LookupActor(context.Background(), "  Keanu ")
	if err != nil {
		t.Fatalf("LookupActor returned error: %v", err)
	}
	if actor.ID != 6384 || actor.Name != "Keanu Reeves" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if actor.ProfilePath != "/keanu.jpg" {
		t.Fatalf("ProfilePath = %q", actor.ProfilePath)
	}
	if len(actor.Movies) != 2 {
		t.Fatalf("movies = %#v, want 2 unique credits", actor.Movies)
	}
	if actor.Movies[0].ID != 603 || actor.Movies[1].Title != "John Wick" {
		t.Fatalf("unexpected movies: %#v", actor.Movies)
	}
}

func TestLookupActorNotFound(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"results":[]}`))
	})
	_, err := client.LookupActor(context.Background(), "nobody at all")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if domain.Detail(err) != "No results found." {
		t.Fatalf("detail = %q", domain.Detail(err))
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("credits must not be fetched without a match")
	}
}

func TestLookupActorPassesUpstreamErrorThrough(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key: You must be granted a valid key."}`))
	})
	_, err := client.LookupActor(context.Background(), "Keanu")
	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected domain error, got %v", err)
	}
	if de.Kind != domain.KindUpstream || de.HTTPStatus() != http.StatusUnauthorized {
		t.Fatalf("unexpected error: %+v", de)
	}
	if de.Detail != "Error from TMDb: Invalid API key: You must be granted a valid key." {
		t.Fatalf("detail = %q", de.Detail)
	}
}

func TestLookupActorCreditsFailure(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/person" {
			_, _ = w.Write([]byte(`{"results":[{"id":1,"name":"A"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status_code":34,"status_message":"The resource you requested could not be found."}`))
	})
	_, err := client.LookupActor(context.Background(), "A")
	de, ok := domain.AsError(err)
	if !ok || de.Kind != domain.KindUpstream || de.Status != http.StatusNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
	if de.Detail != "Error fetching movie credits: The resource you requested could not be found." {
		t.Fatalf("detail = %q", de.Detail)
	}
}

func TestLookupActorWithoutKey(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := client.LookupActor(context.Background(), "Keanu")
	if !errors.Is(err, domain.ErrConfiguration) || !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("error = %v, want configuration error", err)
	}
}

func TestLookupActorEmptyQuery(t *testing.T) {
	client := NewClient(Options{APIKey: "k"})
	if _, err := client.LookupActor(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}
