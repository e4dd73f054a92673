// Package dome9 is a client for the Dome9 (CloudGuard) assessment API.
package dome9

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the Dome9 v2 API root.
const DefaultBaseURL = "https://api.dome9.com/v2/"

const (
	historyPath      = "AssessmentHistoryV2/view/timeRange"
	assessmentPath   = "AssessmentHistoryV2/"
	cloudAccountPath = "CloudAccounts/"
)

// Config configures the API client.
type Config struct {
	BaseURL   string        // API root (default: DefaultBaseURL)
	APIKey    string        // Basic auth user
	APISecret string        // Basic auth password
	Proxy     string        // Outbound proxy URL (optional)
	Timeout   time.Duration // Per-request timeout (default: 60s)
}

// Client calls the Dome9 API. Every non-2xx response is returned as *APIError.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	transport, err := newTransport(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
	}, nil
}

// SearchHistory returns one page of assessment runs matching the query.
func (c *Client) SearchHistory(ctx context.Context, q HistoryQuery) (*HistoryPage, error) {
	var page HistoryPage
	if err := c.do(ctx, http.MethodPost, historyPath, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAssessment returns the full detail of an assessment run.
func (c *Client) GetAssessment(ctx context.Context, id RunID) (*AssessmentResult, error) {
	var result AssessmentResult
	if err := c.do(ctx, http.MethodGet, assessmentPath+url.PathEscape(string(id)), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCloudAccount returns a cloud account by its Dome9 id.
func (c *Client) GetCloudAccount(ctx context.Context, id string) (*CloudAccount, error) {
	var account CloudAccount
	if err := c.do(ctx, http.MethodGet, cloudAccountPath+url.PathEscape(id), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	log.Debug().
		Ctx(ctx).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("dome9 request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, path, resp)
	}

	if err := json.UnmarshalRead(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
