// Package tmdb looks up actors and their movie credits on The Movie Database.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"movieposter/internal/domain"
	"movieposter/internal/infra"
	"movieposter/internal/metrics"
	"movieposter/internal/reliability"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("tmdb: api key is required")

const maxResponseBytes = 4 << 20

// Options configures the TMDb client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	Breaker        *reliability.CircuitBreaker
	RequestTimeout time.Duration
}

// Client performs the person search and credits lookups.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *reliability.CircuitBreaker
	logger     infra.Logger
}

type searchPersonResponse struct {
	Page    int            `json:"page"`
	Results []personResult `json:"results"`
}

type personResult struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	ProfilePath        *string `json:"profile_path"`
	KnownForDepartment string  `json:"known_for_department"`
	Popularity         float64 `json:"popularity"`
}

type movieCreditsResponse struct {
	ID   int          `json:"id"`
	Cast []castCredit `json:"cast"`
}

type castCredit struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	PosterPath  *string `json:"poster_path"`
}

type errorResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// statusError is a non-2xx answer from TMDb.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("tmdb: status %d: %s", e.Status, e.Message)
}

// NewClient constructs a client with defaults for anything left unset.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	logger := infra.LoggerOrDiscard(opts.Logger)
	breaker := opts.Breaker
	if breaker == nil {
		cfg := reliability.DefaultCircuitConfig("tmdb")
		cfg.IsSuccessful = countsAsSuccess
		cfg.OnStateChange = reliability.LogStateChanges(logger)
		breaker = reliability.NewCircuitBreaker(cfg)
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// LookupActor searches for query and returns the first match with its movie
// credits. Only the first result is considered; callers cannot disambiguate
// between people sharing a name.
func (c *Client) LookupActor(ctx context.Context, query string) (*domain.Actor, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.InvalidInput(`Missing "query" in request body.`)
	}
	if !c.HasCredentials() {
		return nil, &domain.Error{Kind: domain.KindConfiguration, Detail: "TMDB_API_KEY environment variable is not set.", Err: ErrMissingAPIKey}
	}

	var search searchPersonResponse
	params := url.Values{}
	params.Set("query", query)
	if err := c.get(ctx, "search_person", "/search/person", params, &search); err != nil {
		return nil, upstreamError("Error from TMDb", err)
	}
	if len(search.Results) == 0 {
		return nil, domain.NotFound("No results found.")
	}
	person := search.Results[0]

	var credits movieCreditsResponse
	path := "/person/" + strconv.Itoa(person.ID) + "/movie_credits"
	if err := c.get(ctx, "movie_credits", path, url.Values{}, &credits); err != nil {
		return nil, upstreamError("Error fetching movie credits", err)
	}

	actor := &domain.Actor{
		ID:                 person.ID,
		Name:               person.Name,
		ProfilePath:        deref(person.ProfilePath),
		KnownForDepartment: person.KnownForDepartment,
		Popularity:         person.Popularity,
		Movies:             moviesFromCast(credits.Cast),
	}
	c.logger.Debug().
		Int("actor_id", actor.ID).
		Int("results", len(search.Results)).
		Int("movies", len(actor.Movies)).
		Msg("tmdb: resolved actor")
	return actor, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values, out any) error {
	_, err := reliability.Do(c.breaker, func() (struct{}, error) {
		err := c.doGet(ctx, path, params, out)
		metrics.ObserveUpstream("tmdb", op, err)
		return struct{}{}, err
	})
	return err
}

func (c *Client) doGet(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("tmdb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb: http request: %w", redactKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("tmdb: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.StatusMessage != "" {
			msg = detail.StatusMessage
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &statusError{Status: resp.StatusCode, Message: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("tmdb: decode response: %w", err)
	}
	return nil
}

func upstreamError(prefix string, err error) error {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return domain.Upstream(se.Status, prefix+": "+se.Message, err)
	case errors.Is(err, reliability.ErrCircuitOpen):
		return domain.Upstream(http.StatusServiceUnavailable, prefix+": service temporarily unavailable", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Upstream(http.StatusGatewayTimeout, prefix+": request timed out", err)
	default:
		return domain.Upstream(http.StatusBadGateway, prefix+": "+err.Error(), err)
	}
}

// countsAsSuccess keeps client-side errors from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Status < http.StatusInternalServerError && se.Status != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled)
}

func moviesFromCast(cast []castCredit) []domain.Movie {
	movies := make([]domain.Movie, 0, len(cast))
	seen := make(map[int]struct{}, len(cast))
	for _, credit := range cast {
		if _, dup := seen[credit.ID]; dup {
			continue
		}
		seen[credit.ID] = struct{}{}
		movies = append(movies, domain.Movie{
			ID:          credit.ID,
			Title:       credit.Title,
			ReleaseDate: strings.TrimSpace(credit.ReleaseDate),
			PosterPath:  deref(credit.PosterPath),
		})
	}
	return movies
}

// redactKey strips the api key from url errors, which embed the full request URL.
func redactKey(err error, key string) error {
	var uerr *url.Error
	if key == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: strings.ReplaceAll(uerr.URL, key, "REDACTED"), Err: uerr.Err}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
