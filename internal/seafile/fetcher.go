package seafile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seafile-thumbnail/internal/logging"
	"seafile-thumbnail/internal/metrics"
)

// HTTPFetcher reads file content from the token URLs handed out by the
// store's file server.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient when
// client is nil. Deadlines come from the request context.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

// Fetch issues a GET for url. The caller must close the returned body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	start := time.Now()
	status := "success"
	defer func() {
		metrics.StoreOperationsTotal.WithLabelValues("fetch", status).Inc()
		metrics.StoreOperationDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		status = "not_found"
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w", redact(url), ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		status = "error"
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", redact(url), resp.StatusCode)
	}

	logging.Debug("Fetching %s (content-length %d)", redact(url), resp.ContentLength)
	return resp.Body, nil
}

// redact drops the query string, which carries signatures for presigned URLs.
func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i] + "?..."
	}
	return url
}

// ReadAllLimited reads r fully, failing with ErrTooLarge once more than
// limit bytes have been seen.
func ReadAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	metrics.ThumbnailFetchBytes.Observe(float64(len(data)))
	return data, nil
}
