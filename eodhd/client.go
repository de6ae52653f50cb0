// Package eodhd provides live US equity prices and currency rates from the EODHD API.
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/date"
)

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client is a rate limited EODHD client, usable as a mfm.PriceOracle and a mfm.RateOracle.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// flexDecimal handles JSON values that may be either a number or a string.
// EODHD answers "NA" for unknown values.
type flexDecimal struct {
	decimal.Decimal
	valid bool
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "NA" || s == "N/A" || s == "null" {
		*f = flexDecimal{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into a decimal", string(data))
	}
	*f = flexDecimal{Decimal: d, valid: true}
	return nil
}

// realTimeResponse is the real-time endpoint payload.
type realTimeResponse struct {
	Code          string      `json:"code"`
	Close         flexDecimal `json:"close"`
	PreviousClose flexDecimal `json:"previousClose"`
}

// lastPrice returns the latest close of ticker, or the previous close when the
// market has not traded yet.
func (c *Client) lastPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	var r realTimeResponse
	if err := c.get(ctx, "/real-time/"+url.PathEscape(ticker), nil, &r); err != nil {
		return decimal.Zero, err
	}
	switch {
	case r.Close.valid && r.Close.IsPositive():
		return r.Close.Decimal, nil
	case r.PreviousClose.valid && r.PreviousClose.IsPositive():
		c.logger.Debug().Str("ticker", ticker).Msg("no close yet, using previous close")
		return r.PreviousClose.Decimal, nil
	}
	return decimal.Zero, fmt.Errorf("no price in response for %s", ticker)
}

// LivePrice implements mfm.PriceOracle for US listed symbols.
func (c *Client) LivePrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker := strings.ToUpper(symbol)
	if !strings.Contains(ticker, ".") {
		ticker += ".US"
	}
	p, err := c.lastPrice(ctx, ticker)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", mfm.ErrPriceUnavailable, symbol, err)
	}
	return p, nil
}

// Rate implements mfm.RateOracle.
func (c *Client) Rate(ctx context.Context, from, to mfm.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	r, err := c.lastPrice(ctx, fmt.Sprintf("%s%s.FOREX", from, to))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s/%s: %w", mfm.ErrConversionRateUnavailable, from, to, err)
	}
	return r, nil
}

// Convert implements mfm.RateOracle.
func (c *Client) Convert(ctx context.Context, from, to mfm.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	r, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(r), nil
}

// SearchResult matches the structure of a single item in the EODHD search API response.
type SearchResult struct {
	Code              string    `json:"Code"`
	Exchange          string    `json:"Exchange"`
	Name              string    `json:"Name"`
	Type              string    `json:"Type"`
	Country           string    `json:"Country"`
	Currency          string    `json:"Currency"`
	ISIN              string    `json:"ISIN"`
	PreviousClose     float64   `json:"previousClose"`
	PreviousCloseDate date.Date `json:"previousCloseDate"`
}

// Search looks up the US listed securities matching term.
func (c *Client) Search(ctx context.Context, term string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("exchange", "US")
	var results []SearchResult
	if err := c.get(ctx, "/search/"+url.PathEscape(term), params, &results); err != nil {
		return nil, err
	}
	return results, nil
}
