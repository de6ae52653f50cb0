// Package bizportal reads fund redemption prices from the BizPortal quote API.
package bizportal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/etnz/mfm"
)

const (
	DefaultBaseURL   = "http://externalapi.bizportal.co.il"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// redPricePath locates the redemption price in a quote.
const redPricePath = "$.Quote.RedPrice"

// Client implements mfm.FundPriceOracle.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit sets the number of requests per second.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a BizPortal client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zerolog.Nop(),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the source in logs.
func (c *Client) Name() string { return "bizportal" }

// RedemptionPrice returns the fund's redemption price in agorot.
func (c *Client) RedemptionPrice(ctx context.Context, ref mfm.FundRef) (decimal.Decimal, error) {
	p, err := c.redemptionPrice(ctx, string(ref))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bizportal %s: %w", mfm.ErrPriceUnavailable, ref, err)
	}
	return p, nil
}

func (c *Client) redemptionPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("id", id)
	addr := fmt.Sprintf("%s/mobile/m/GetQuote?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}
	c.logger.Debug().Str("fund", id).Msg("BizPortal quote request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}

	var jobj any
	if err := json.NewDecoder(resp.Body).Decode(&jobj); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode response: %w", err)
	}
	jval, err := jsonpath.Get(redPricePath, jobj)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error parsing %q: %w", redPricePath, err)
	}
	return parsePrice(jval)
}

// parsePrice reads a price that the API sometimes sends as a string.
func parsePrice(jval any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := jval.(type) {
	case float64:
		d = decimal.NewFromFloat(v)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		d, err = decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid price string %q: %w", v, err)
		}
	default:
		return decimal.Zero, fmt.Errorf("price is neither a number nor a string: %v", jval)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("empty price %s", d)
	}
	return d, nil
}
