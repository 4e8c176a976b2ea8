// Package s2 is a rate-limited client for the Semantic Scholar Graph API.
package s2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/medkb/kbgen/internal/paper"
	"github.com/medkb/kbgen/internal/retry"
)

const (
	// BaseURL is the Semantic Scholar Graph API base URL.
	BaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// RateLimit is 1 request per second, the documented ceiling for
	// authenticated keys on the Graph API.
	RateLimit = 1.0

	// DefaultMaxInFlight caps concurrent requests to the service
	// independently of the pipeline's condition pool.
	DefaultMaxInFlight = 2

	// paperFields are the fields requested for every paper lookup.
	paperFields = "title,abstract,authors,citationCount,url,venue,year,externalIds,openAccessPdf"

	// batchSize is the maximum IDs per /paper/batch request.
	batchSize = 100
)

// Client is a rate-limited HTTP client for Semantic Scholar.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the API key for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithMaxInFlight caps concurrent requests.
func WithMaxInFlight(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewClient creates a Semantic Scholar client. The API key is read from
// S2_API_KEY when not set explicitly.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		sem:        semaphore.NewWeighted(DefaultMaxInFlight),
		baseURL:    BaseURL,
	}

	if key := os.Getenv("S2_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a relevance search and returns papers with full metadata.
// The search endpoint returns IDs plus partial fields, so results are
// hydrated through the batch endpoint.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]S2Paper, error) {
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.do(ctx, http.MethodGet, "/paper/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}
	if len(sr.Data) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(sr.Data))
	for _, p := range sr.Data {
		if p.PaperID != "" {
			ids = append(ids, p.PaperID)
		}
	}
	return c.Batch(ctx, ids)
}

// SearchRecords runs Search and maps the results into canonical records.
func (c *Client) SearchRecords(ctx context.Context, query string, limit int) ([]paper.Record, error) {
	papers, err := c.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	records := make([]paper.Record, 0, len(papers))
	for _, p := range papers {
		records = append(records, MapToRecord(p))
	}
	return records, nil
}

// Batch fetches full metadata for the given paper IDs, preserving order.
func (c *Client) Batch(ctx context.Context, ids []string) ([]S2Paper, error) {
	var papers []S2Paper
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}

		payload, err := json.Marshal(map[string][]string{"ids": ids[start:end]})
		if err != nil {
			return nil, fmt.Errorf("marshaling batch request: %w", err)
		}

		body, err := c.do(ctx, http.MethodPost, "/paper/batch?fields="+url.QueryEscape(paperFields), payload)
		if err != nil {
			return nil, err
		}

		// The batch endpoint returns null entries for unknown IDs.
		var page []*S2Paper
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing batch results: %w", err)
		}
		for _, p := range page {
			if p != nil {
				papers = append(papers, *p)
			}
		}
	}
	return papers, nil
}

// do executes one HTTP request under the service's rate limiter and
// in-flight cap, classifying failures into the shared retry taxonomy.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", retry.ErrBadRequest, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", retry.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := retry.HTTPError(resp.StatusCode); err != nil {
		return nil, fmt.Errorf("semantic scholar: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", retry.ErrNetwork, err)
	}
	return body, nil
}
