// Package maya scrapes fund redemption prices from the Tel Aviv stock exchange
// fund pages. It is the fallback source when the quote API does not answer.
package maya

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"github.com/etnz/mfm"
)

const (
	DefaultBaseURL = "https://maya.tase.co.il"
	DefaultTimeout = 20 * time.Second
)

// priceClass is the class of the element holding the redemption price.
const priceClass = "redemptionPriceValue"

var errNoPrice = errors.New("no redemption price on page")

// Client implements mfm.FundPriceOracle.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
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

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient creates a maya client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the source in logs.
func (c *Client) Name() string { return "maya" }

// RedemptionPrice returns the redemption price shown on the fund page.
func (c *Client) RedemptionPrice(ctx context.Context, ref mfm.FundRef) (decimal.Decimal, error) {
	addr := fmt.Sprintf("%s/fund/%s", c.baseURL, ref)
	p, err := c.scrape(ctx, addr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: maya %s: %w", mfm.ErrPriceUnavailable, ref, err)
	}
	return p, nil
}

func (c *Client) scrape(ctx context.Context, addr string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return decimal.Zero, err
	}
	c.logger.Debug().Str("url", addr).Msg("maya fund page request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot parse page: %w", err)
	}
	n := findByClass(doc, priceClass)
	if n == nil {
		return decimal.Zero, errNoPrice
	}
	return parsePrice(textOf(n))
}

// findByClass returns the first element, in document order, carrying class.
func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if found := findByClass(ch, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return sb.String()
}

// parsePrice reads the first token of the price text, e.g. "19,500.50 אג'".
func parsePrice(text string) (decimal.Decimal, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return decimal.Zero, errNoPrice
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(fields[0], ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price %q: %w", fields[0], err)
	}
	if !d.IsPositive() {
		return decimal.Zero, errNoPrice
	}
	return d, nil
}
