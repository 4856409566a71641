package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"movieposter/internal/metrics"
)

const downloadFailed = "Failed to download image"

const maxDownloadRedirects = 5

var (
	errDownloadTooLarge = errors.New("download: payload exceeds limit")
	errTooManyRedirects = errors.New("download: too many redirects")
)

// DownloadImage handles GET /api/download?url=... by relaying the image as a
// poster.png attachment. The upstream body is read completely before anything
// is written, so a failure never produces a truncated file.
func (a *App) DownloadImage(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		plain(w, http.StatusBadRequest, "Image URL is required")
		return
	}
	target, reason := a.allowedDownloadURL(raw)
	if target == nil {
		plain(w, http.StatusBadRequest, reason)
		return
	}

	data, err := a.fetchImage(r, target)
	if err != nil {
		a.Logger.Error().Err(err).Str("url", target.Redacted()).Msg("download error")
		plain(w, http.StatusInternalServerError, downloadFailed)
		return
	}
	metrics.DownloadBytesTotal.Add(float64(len(data)))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="poster.png"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// allowedDownloadURL returns nil and the rejection message when raw may not
// be fetched.
func (a *App) allowedDownloadURL(raw string) (*url.URL, string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, "Image URL is invalid"
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range a.Download.HostAllowlist {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return u, ""
		}
	}
	return nil, "Image host is not allowed"
}

func (a *App) fetchImage(r *http.Request, target *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("download: build request: %w", err)
	}
	client := *a.httpClient()
	client.CheckRedirect = a.checkDownloadRedirect
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download: failed to fetch image: %s", resp.Status)
	}
	limit := a.Download.MaxBytes
	if limit <= 0 {
		limit = 20 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("download: read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errDownloadTooLarge
	}
	return data, nil
}

// checkDownloadRedirect applies the host allowlist to every redirect hop.
func (a *App) checkDownloadRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxDownloadRedirects {
		return errTooManyRedirects
	}
	if u, reason := a.allowedDownloadURL(req.URL.String()); u == nil {
		return fmt.Errorf("download: redirect to %q rejected: %s", req.URL.Host, reason)
	}
	return nil
}

func plain(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}
