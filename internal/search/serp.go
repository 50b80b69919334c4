package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// ErrNotConfigured is returned when no SerpAPI key is set.
var ErrNotConfigured = errors.New("SERPAPI_API_KEY not set in environment")

// Result is one organic web search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source,omitempty"`
}

type serpResponse struct {
	OrganicResults []Result `json:"organic_results"`
	Error          string   `json:"error"`
}

// SerpClient queries Google through SerpAPI.
type SerpClient struct {
	client  *resty.Client
	apiKey  string
	results int
	gl, hl  string
}

func NewSerpClient(cfg model.SearchConfig) *SerpClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	results := cfg.Results
	if results <= 0 {
		results = 7
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &SerpClient{client: client, apiKey: cfg.SerpAPIKey, results: results, gl: "in", hl: "en"}
}

// Enabled reports whether an API key is configured.
func (c *SerpClient) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Search returns up to num organic results; num <= 0 uses the configured default.
func (c *SerpClient) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	if num <= 0 {
		num = c.results
	}

	var out serpResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google",
			"q":       query,
			"api_key": c.apiKey,
			"num":     strconv.Itoa(num),
			"gl":      c.gl,
			"hl":      c.hl,
		}).
		SetResult(&out).
		Get("/search.json")
	if err != nil {
		logx.Error().Err(err).Str("query", query).Msg("serpapi request failed")
		return nil, fmt.Errorf("serpapi request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		logx.Warn().Int("status", resp.StatusCode()).Str("query", query).Msg("serpapi returned non-200")
		return nil, fmt.Errorf("serpapi status %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", out.Error)
	}

	results := out.OrganicResults
	if len(results) > num {
		results = results[:num]
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}
