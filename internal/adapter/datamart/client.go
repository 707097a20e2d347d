package datamart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/wfwx-datamart-etl/internal/domain"
)

// maxFeedBytes caps a single feed download. Yearly OBS files run to a few hundred MB.
const maxFeedBytes = 1 << 30

// ErrFeedTooLarge is wrapped by a TransportError when a body exceeds the size cap.
var ErrFeedTooLarge = errors.New("feed too large")

// TransportError means the request never produced an HTTP status: DNS,
// connection, TLS, timeout, or a truncated body.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client fetches feeds from the BCWS datamart over HTTP.
// It implements pipeline.Fetcher.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxBytes   int64
	logger     *slog.Logger
}

// NewClient creates a datamart client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxFeedBytes,
		logger:   logger,
	}
}

// URL returns the absolute location of a feed.
func (c *Client) URL(target domain.FeedTarget) string {
	return c.baseURL + "/" + target.Path()
}

// Fetch downloads one feed. Any HTTP response, including 404, is returned as
// a FetchResult; only transport failures return an error.
func (c *Client) Fetch(ctx context.Context, target domain.FeedTarget) (domain.FetchResult, error) {
	return c.doRequest(ctx, c.URL(target))
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (domain.FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FetchResult{}, &TransportError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	result := domain.FetchResult{Status: resp.StatusCode}
	if !result.Found() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		c.logger.Debug("datamart feed unavailable", "url", fullURL, "status", resp.StatusCode)
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return domain.FetchResult{}, &TransportError{URL: fullURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.maxBytes {
		return domain.FetchResult{}, &TransportError{URL: fullURL, Err: fmt.Errorf("%w: over %d bytes", ErrFeedTooLarge, c.maxBytes)}
	}
	result.Body = body

	c.logger.Debug("datamart feed fetched",
		"url", fullURL,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return result, nil
}
