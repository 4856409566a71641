// Package replicate submits image generation jobs to Replicate and reads
// their status back.
package replicate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"movieposter/internal/domain"
	"movieposter/internal/infra"
	"movieposter/internal/metrics"
	"movieposter/internal/reliability"
)

// ErrMissingAPIToken indicates that the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

const (
	defaultModel     = "black-forest-labs/flux-schnell"
	maxResponseBytes = 1 << 20
)

// WebhookEvents are the lifecycle events registered with every callback.
var WebhookEvents = []string{"start", "completed"}

// Options configures the Replicate client.
type Options struct {
	APIToken       string
	BaseURL        string
	Model          string
	WebhookURL     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	Breaker        *reliability.CircuitBreaker
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Replicate predictions API.
type Client struct {
	token      string
	baseURL    string
	model      string
	webhookURL string
	httpClient *http.Client
	breaker    *reliability.CircuitBreaker
	logger     infra.Logger
}

type createRequest struct {
	Version             string         `json:"version,omitempty"`
	Input               map[string]any `json:"input"`
	Webhook             string         `json:"webhook,omitempty"`
	WebhookEventsFilter []string       `json:"webhook_events_filter,omitempty"`
}

// predictionResponse mirrors the prediction object. Output is kept raw since
// models return either a single URL or a list of them.
type predictionResponse struct {
	ID          string          `json:"id"`
	Model       string          `json:"model"`
	Version     string          `json:"version"`
	Status      string          `json:"status"`
	Output      json.RawMessage `json:"output"`
	Error       any             `json:"error"`
	CreatedAt   *time.Time      `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
	Status int    `json:"status"`
}

type statusError struct {
	Status int
	Detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("replicate: status %d: %s", e.Status, e.Detail)
}

// NewClient constructs a client with defaults for anything left unset.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	logger := infra.LoggerOrDiscard(opts.Logger)
	breaker := opts.Breaker
	if breaker == nil {
		cfg := reliability.DefaultCircuitConfig("replicate")
		cfg.IsSuccessful = countsAsSuccess
		cfg.OnStateChange = reliability.LogStateChanges(logger)
		breaker = reliability.NewCircuitBreaker(cfg)
	}
	return &Client{
		token:      strings.TrimSpace(opts.APIToken),
		baseURL:    baseURL,
		model:      model,
		webhookURL: strings.TrimSpace(opts.WebhookURL),
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.token != ""
}

// CreatePrediction submits prompt to the configured model and returns the
// initial snapshot, usually in the starting state.
func (c *Client) CreatePrediction(ctx context.Context, prompt string) (*domain.Prediction, error) {
	if !c.HasCredentials() {
		return nil, &domain.Error{Kind: domain.KindConfiguration, Detail: "The REPLICATE_API_TOKEN environment variable is not set.", Err: ErrMissingAPIToken}
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.InvalidInput("A prompt is required.")
	}

	endpoint, version := c.createEndpoint()
	payload := createRequest{
		Version: version,
		Input:   map[string]any{"prompt": prompt},
	}
	if c.webhookURL != "" {
		payload.Webhook = c.webhookURL
		payload.WebhookEventsFilter = WebhookEvents
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}

	var resp predictionResponse
	if err := c.call(ctx, "create_prediction", http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, upstreamError(err)
	}
	if detail := errorDetail(resp.Error); detail != "" {
		return nil, domain.Upstream(http.StatusInternalServerError, detail, nil)
	}
	p, err := resp.toDomain()
	if err != nil {
		return nil, upstreamError(err)
	}
	c.logger.Debug().
		Str("prediction_id", p.ID).
		Str("model", c.model).
		Bool("webhook", c.webhookURL != "").
		Msg("replicate: prediction created")
	return p, nil
}

// GetPrediction fetches the current snapshot of prediction id. A failed job
// is a successful fetch; its error text lands in Detail.
func (c *Client) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	if !c.HasCredentials() {
		return nil, &domain.Error{Kind: domain.KindConfiguration, Detail: "The REPLICATE_API_TOKEN environment variable is not set.", Err: ErrMissingAPIToken}
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.InvalidInput("A prediction id is required.")
	}
	var resp predictionResponse
	endpoint := c.baseURL + "/predictions/" + url.PathEscape(id)
	if err := c.call(ctx, "get_prediction", http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, upstreamError(err)
	}
	p, err := resp.toDomain()
	if err != nil {
		return nil, upstreamError(err)
	}
	return p, nil
}

// createEndpoint picks the model-scoped route for "owner/name" identifiers and
// the version route for pinned versions.
func (c *Client) createEndpoint() (endpoint, version string) {
	model := c.model
	if i := strings.LastIndex(model, ":"); i >= 0 {
		return c.baseURL + "/predictions", model[i+1:]
	}
	if owner, name, ok := strings.Cut(model, "/"); ok {
		return c.baseURL + "/models/" + url.PathEscape(owner) + "/" + url.PathEscape(name) + "/predictions", ""
	}
	return c.baseURL + "/predictions", model
}

func (c *Client) call(ctx context.Context, op, method, endpoint string, body []byte, out any) error {
	_, err := reliability.Do(c.breaker, func() (struct{}, error) {
		err := c.do(ctx, method, endpoint, body, out)
		metrics.ObserveUpstream("replicate", op, err)
		return struct{}{}, err
	})
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("replicate: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil {
			switch {
			case detail.Detail != "":
				msg = detail.Detail
			case detail.Title != "":
				msg = detail.Title
			}
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &statusError{Status: resp.StatusCode, Detail: msg}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("replicate: decode response: %w", err)
	}
	return nil
}

func (r predictionResponse) toDomain() (*domain.Prediction, error) {
	if strings.TrimSpace(r.ID) == "" {
		return nil, errors.New("replicate: prediction without id")
	}
	output, err := decodeOutput(r.Output)
	if err != nil {
		return nil, err
	}
	return &domain.Prediction{
		ID:          r.ID,
		Status:      domain.PredictionStatus(strings.ToLower(strings.TrimSpace(r.Status))),
		Output:      output,
		Detail:      errorDetail(r.Error),
		Model:       r.Model,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

// decodeOutput accepts null, a single string, or a list of strings.
func decodeOutput(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("replicate: decode output: %w", err)
		}
		return []string{single}, nil
	}
	var list []any
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("replicate: decode output: %w", err)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func errorDetail(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(e)
	default:
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Sprint(e)
		}
		return string(raw)
	}
}

func upstreamError(err error) error {
	var se *statusError
	switch {
	case errors.As(err, &se):
		return domain.Upstream(se.Status, se.Detail, err)
	case errors.Is(err, reliability.ErrCircuitOpen):
		return domain.Upstream(http.StatusServiceUnavailable, "Image generation is temporarily unavailable.", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Upstream(http.StatusGatewayTimeout, "The image generation service did not respond in time.", err)
	default:
		return domain.Upstream(http.StatusBadGateway, err.Error(), err)
	}
}

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
