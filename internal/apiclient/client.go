// Package apiclient is a typed client for the poster service HTTP API.
package apiclient

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
	"movieposter/internal/poster"
)

const defaultMaxImageBytes = 32 << 20

// ErrImageTooLarge is returned instead of a truncated poster.
var ErrImageTooLarge = errors.New("apiclient: image exceeds size limit")

// Options configures the API client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	MaxImageBytes  int64
}

// Client calls the service routes. It satisfies the lifecycle Fetcher, so a
// poller can drive a job through the service.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	maxImageBytes int64
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	maxImage := opts.MaxImageBytes
	if maxImage <= 0 {
		maxImage = defaultMaxImageBytes
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, maxImageBytes: maxImage}
}

// SearchActor calls POST /api/tmdb.
func (c *Client) SearchActor(ctx context.Context, query string) (*domain.Actor, error) {
	var actor domain.Actor
	if err := c.doJSON(ctx, http.MethodPost, "/api/tmdb", map[string]string{"query": query}, http.StatusOK, &actor); err != nil {
		return nil, err
	}
	return &actor, nil
}

type createPredictionBody struct {
	Actor       domain.Actor `json:"actor"`
	PosterStyle string       `json:"posterStyle"`
}

// CreatePrediction calls POST /api/predictions. actor.Movies must hold the
// selected movies only.
func (c *Client) CreatePrediction(ctx context.Context, actor domain.Actor, style poster.Style) (*domain.Prediction, error) {
	var p domain.Prediction
	body := createPredictionBody{Actor: actor, PosterStyle: style.String()}
	if err := c.doJSON(ctx, http.MethodPost, "/api/predictions", body, http.StatusCreated, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPrediction calls GET /api/predictions/{id}.
func (c *Client) GetPrediction(ctx context.Context, id string) (*domain.Prediction, error) {
	var p domain.Prediction
	if err := c.doJSON(ctx, http.MethodGet, "/api/predictions/"+url.PathEscape(id), nil, http.StatusOK, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Download fetches the poster at imageURL through the download relay.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, error) {
	endpoint := c.baseURL + "/api/download?url=" + url.QueryEscape(imageURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("apiclient: read image: %w", err)
	}
	if int64(len(data)) > c.maxImageBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

// statusError rebuilds the domain error the server reported.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(raw))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		detail = payload.Detail
	}
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return domain.InvalidInput(detail)
	case http.StatusNotFound:
		return domain.NotFound(detail)
	case http.StatusGatewayTimeout:
		return domain.Timeout(detail)
	default:
		return domain.Upstream(resp.StatusCode, detail, nil)
	}
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.Upstream(http.StatusBadGateway, "Unable to reach the poster service.", err)
}
