package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Errors returned by adapters. Transport failures and malformed
// responses both abort the current pagination; items fetched before the
// failure are returned alongside the error.
var (
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrParse             = errors.New("malformed source response")
	ErrExhausted         = errors.New("adapter already consumed")
)

// Item is the common shape every adapter emits. It is transient: an
// item becomes a review only after the coordinator's dedup filter.
type Item struct {
	Text       string
	Date       time.Time
	ExternalID string
}

// Adapter fetches review items from one external source. Fetch is
// finite and single-use: a fresh adapter is required to re-fetch.
// Items newer than since are returned; a nil since means full history.
type Adapter interface {
	Fetch(ctx context.Context, since *time.Time) ([]Item, error)
}

// caller wraps an http.Client with the mandatory inter-call delay all
// sources demand. Paginated calls are sequential by construction: every
// request waits for the limiter before going out. The logger is shared
// by the adapters for per-item skip diagnostics.
type caller struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    zerolog.Logger
}

func newCaller(timeout, delay time.Duration, userAgent string, logger zerolog.Logger) *caller {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &caller{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: userAgent,
		logger:    logger,
	}
}

// get performs one paced GET and returns the response body. Callers own
// status-code interpretation; non-2xx is not an error here.
func (c *caller) get(ctx context.Context, rawURL string, header http.Header) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", ErrSourceUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

// ExternalID resolves the source-side identifier from a stored
// institution link: the last non-empty path segment.
func ExternalID(link string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse source link %q: %w", link, err)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return "", fmt.Errorf("source link %q has no path segments", link)
	}
	return last, nil
}

// flattenText collapses newlines and trims, matching how raw source
// payloads are normalized before persistence.
func flattenText(text string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// reachedCursor reports whether an item timestamp is at or before the
// since-cursor, i.e. already ingested on a previous run.
func reachedCursor(ts time.Time, since *time.Time) bool {
	return since != nil && !ts.After(*since)
}
