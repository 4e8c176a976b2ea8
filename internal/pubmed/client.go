// Package pubmed is a rate-limited client for the NCBI E-utilities
// (esearch + efetch) used to retrieve PubMed paper metadata.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/medkb/kbgen/internal/paper"
	"github.com/medkb/kbgen/internal/retry"
)

const (
	// BaseURL is the NCBI E-utilities base URL.
	BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is 3 requests per second, the E-utilities ceiling
	// without an API key. With a key NCBI allows 10/s, but the pipeline
	// stays at the conservative rate.
	RateLimit = 3.0

	// DefaultMaxInFlight caps concurrent requests to the service.
	DefaultMaxInFlight = 2
)

// Client is a rate-limited HTTP client for PubMed E-utilities.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	apiKey     string
	baseURL    string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the NCBI API key.
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

// NewClient creates a PubMed client. The API key is read from
// PUBMED_API_KEY when not set explicitly.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		sem:        semaphore.NewWeighted(DefaultMaxInFlight),
		baseURL:    BaseURL,
	}

	if key := os.Getenv("PUBMED_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search finds PMIDs matching the query and fetches their metadata.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]paper.Record, error) {
	if limit <= 0 {
		limit = 3
	}

	pmids, err := c.esearch(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}
	return c.efetch(ctx, pmids)
}

// esearch returns the PMIDs matching a query.
func (c *Client) esearch(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(limit))
	params.Set("retmode", "json")

	body, err := c.get(ctx, "/esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var sr struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("parsing esearch response: %w", err)
	}
	return sr.ESearchResult.IDList, nil
}

// efetch retrieves article XML for the given PMIDs and parses it into
// normalized records.
func (c *Client) efetch(ctx context.Context, pmids []string) ([]paper.Record, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")

	body, err := c.get(ctx, "/efetch.fcgi", params)
	if err != nil {
		return nil, err
	}
	return parseArticleSet(body)
}

// get executes one GET under the service's limiter and in-flight cap.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", retry.ErrBadRequest, err)
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
		return nil, fmt.Errorf("pubmed: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", retry.ErrNetwork, err)
	}
	return body, nil
}
