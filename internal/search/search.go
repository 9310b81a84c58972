// Package search proxies search requests to the Brave Search API, serving
// deterministic mock results whenever the provider is unconfigured or the
// upstream call fails.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jerry-run/apirouter/internal/providers"
)

// DefaultBaseURL is the Brave Search API endpoint used when the provider
// config does not override it.
const DefaultBaseURL = "https://api.search.brave.com/res/v1"

const (
	defaultCount      = 10
	defaultSafeSearch = "moderate"
)

// QueryError reports an invalid search query.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string { return e.Message }

// Query is a validated search request. Zero values mean "not supplied".
type Query struct {
	Q          string
	Count      int
	Offset     int
	SafeSearch string
}

func (q Query) validate() error {
	if q.Q == "" {
		return &QueryError{Message: "search query (q) is required"}
	}
	if q.Count != 0 && (q.Count < 1 || q.Count > 100) {
		return &QueryError{Message: "count must be between 1 and 100"}
	}
	if q.Offset < 0 {
		return &QueryError{Message: "offset must be non-negative"}
	}
	switch q.SafeSearch {
	case "", "off", "moderate", "strict":
	default:
		return &QueryError{Message: "safesearch must be one of: off, moderate, strict"}
	}
	return nil
}

type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Response struct {
	Query           string   `json:"query"`
	Results         []Result `json:"results"`
	ResultCount     int      `json:"resultCount"`
	ExecutionTimeMs int64    `json:"executionTime"`
}

// Outcome is what the gateway reports back for usage accounting. Success
// is false only when a real upstream call was attempted and failed.
type Outcome struct {
	Success   bool
	LatencyMs int64
}

// Gateway performs the outbound provider call, applying the provider's
// configured timeout.
type Gateway struct {
	registry providers.Registry
	baseURL  string
}

// NewGateway builds a gateway on top of the provider registry. baseURL
// overrides the default Brave endpoint; pass "" to keep the default.
func NewGateway(registry providers.Registry, baseURL string) *Gateway {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Gateway{registry: registry, baseURL: baseURL}
}

// Search executes the query. It fails only on invalid input; upstream
// trouble degrades to mock results, reflected in the returned Outcome.
func (g *Gateway) Search(ctx context.Context, q Query) (*Response, Outcome, error) {
	if err := q.validate(); err != nil {
		return nil, Outcome{}, err
	}

	start := time.Now()

	cfg, err := g.registry.Get("brave")
	if err != nil || !cfg.Configured {
		resp := g.mockResults(q, start)
		return resp, Outcome{Success: true, LatencyMs: resp.ExecutionTimeMs}, nil
	}

	resp, upstreamErr := g.searchUpstream(ctx, cfg, q, start)
	if upstreamErr != nil {
		log.Printf("brave upstream failed, falling back to mock: %v", upstreamErr)
		mock := g.mockResults(q, start)
		return mock, Outcome{Success: false, LatencyMs: mock.ExecutionTimeMs}, nil
	}
	return resp, Outcome{Success: true, LatencyMs: resp.ExecutionTimeMs}, nil
}

func (g *Gateway) searchUpstream(ctx context.Context, cfg *providers.Config, q Query, start time.Time) (*Response, error) {
	base := cfg.BaseURL
	if base == "" {
		base = g.baseURL
	}
	timeout := cfg.TimeoutMs
	if timeout <= 0 {
		timeout = providers.DefaultTimeoutMs
	}

	count := q.Count
	if count == 0 {
		count = defaultCount
	}
	safeSearch := q.SafeSearch
	if safeSearch == "" {
		safeSearch = defaultSafeSearch
	}

	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("safesearch", safeSearch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", cfg.Credential)
	req.Header.Set("Accept", "application/json")

	client := &http.Client{Timeout: time.Duration(timeout) * time.Millisecond}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var body struct {
		Web struct {
			Results []Result `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}

	results := body.Web.Results
	if results == nil {
		results = []Result{}
	}
	return &Response{
		Query:           q.Q,
		Results:         results,
		ResultCount:     len(results),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (g *Gateway) mockResults(q Query, start time.Time) *Response {
	results := []Result{
		{
			Title:       fmt.Sprintf("Result 1 for %q", q.Q),
			URL:         "https://example.com/1",
			Description: "This is a mock search result for testing purposes.",
		},
		{
			Title:       fmt.Sprintf("Result 2 for %q", q.Q),
			URL:         "https://example.com/2",
			Description: "Another mock result to demonstrate the API structure.",
		},
		{
			Title:       fmt.Sprintf("Result 3 for %q", q.Q),
			URL:         "https://example.com/3",
			Description: "Mock results are used when no API key is configured.",
		},
	}

	count := q.Count
	if count == 0 {
		count = defaultCount
	}
	if count < len(results) {
		results = results[:count]
	}

	return &Response{
		Query:           q.Q,
		Results:         results,
		ResultCount:     len(results),
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	}
}
