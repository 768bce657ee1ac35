package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	tips "github.com/attentionrush/tips"
)

// ============================================================================
// Neynar Feed Client
// ============================================================================

const (
	// DefaultNeynarURL is the public Neynar API
	DefaultNeynarURL = "https://api.neynar.com"

	// DefaultFeedFID is the account whose casts make up the feed
	DefaultFeedFID = 3

	// DefaultFeedLimit is the number of casts fetched per request
	DefaultFeedLimit = 50

	feedPath = "/v2/farcaster/feed/user/casts"
)

// ErrMissingAPIKey is returned before any request when no API key is set
var ErrMissingAPIKey = errors.New("missing Neynar API key")

// FeedError is a non-2xx response from Neynar
type FeedError struct {
	StatusCode int
	Message    string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("Neynar API: %s (Status: %d)", e.Message, e.StatusCode)
}

// FeedConfig configures the feed client
type FeedConfig struct {
	// BaseURL is the Neynar API root (optional, defaults to DefaultNeynarURL)
	BaseURL string

	// APIKey is sent in the api_key header
	APIKey string

	// FID selects whose casts are fetched (optional)
	FID int64

	// Limit caps the number of casts (optional)
	Limit int

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// FeedClient fetches content items from Neynar.
// Implements tips.FeedSource.
type FeedClient struct {
	baseURL    string
	apiKey     string
	fid        int64
	limit      int
	httpClient *http.Client
}

// NewFeedClient creates a new feed client
func NewFeedClient(config *FeedConfig) *FeedClient {
	if config == nil {
		config = &FeedConfig{}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultNeynarURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	fid := config.FID
	if fid == 0 {
		fid = DefaultFeedFID
	}
	limit := config.Limit
	if limit == 0 {
		limit = DefaultFeedLimit
	}

	return &FeedClient{
		baseURL:    baseURL,
		apiKey:     config.APIKey,
		fid:        fid,
		limit:      limit,
		httpClient: httpClient,
	}
}

type feedResponse struct {
	Casts []tips.ContentItem `json:"casts"`
}

// FetchFeed fetches the configured user's recent casts in a single request.
// A response without a casts array is an empty feed; any non-2xx status,
// 429 included, is returned as a *FeedError.
func (c *FeedClient) FetchFeed(ctx context.Context) ([]tips.ContentItem, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	query := url.Values{}
	query.Set("fid", strconv.FormatInt(c.fid, 10))
	query.Set("limit", strconv.Itoa(c.limit))
	endpoint := c.baseURL + feedPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api_key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FeedError{StatusCode: resp.StatusCode, Message: errorMessage(body, resp.StatusCode)}
	}
	return decodeFeed(body)
}

func decodeFeed(body []byte) ([]tips.ContentItem, error) {
	if err := ValidateFeedResponse(body); err != nil {
		return nil, err
	}

	var feed feedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}
	if feed.Casts == nil {
		return []tips.ContentItem{}, nil
	}
	return feed.Casts, nil
}

// errorMessage picks message, then error, from a JSON error body
func errorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}
