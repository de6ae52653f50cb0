package mfm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RateOracle converts between currencies.
//
// Implementations return errors wrapping ErrConversionRateUnavailable and
// must treat from == to as the identity.
type RateOracle interface {
	// Rate returns how many units of to one unit of from is worth.
	Rate(ctx context.Context, from, to Currency) (decimal.Decimal, error)
	// Convert returns amount of from expressed in to.
	Convert(ctx context.Context, from, to Currency, amount decimal.Decimal) (decimal.Decimal, error)
}

// PriceOracle returns the live price of a US listed symbol, in USD.
//
// Implementations return errors wrapping ErrPriceUnavailable.
type PriceOracle interface {
	LivePrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// FundPriceOracle returns the redemption price of a fund, in agorot.
//
// Implementations return errors wrapping ErrPriceUnavailable.
type FundPriceOracle interface {
	RedemptionPrice(ctx context.Context, ref FundRef) (decimal.Decimal, error)
}

// FundPriceChain tries fund price sources in order and returns the first answer.
type FundPriceChain struct {
	sources []FundPriceOracle
	timeout time.Duration
	log     zerolog.Logger
}

// NewFundPriceChain returns a chain over sources, in priority order.
// Each source call is bounded by the call timeout option.
func NewFundPriceChain(sources []FundPriceOracle, opts ...Option) *FundPriceChain {
	s := newSettings(opts)
	return &FundPriceChain{sources: sources, timeout: s.callTimeout, log: s.logger}
}

// RedemptionPrice implements FundPriceOracle.
func (c *FundPriceChain) RedemptionPrice(ctx context.Context, ref FundRef) (decimal.Decimal, error) {
	var errs []error
	for i, src := range c.sources {
		price, err := c.call(ctx, src, ref)
		if err == nil {
			return price, nil
		}
		c.log.Warn().Err(err).Str("fund", string(ref)).Int("source", i).Msg("fund price source failed")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return decimal.Zero, fmt.Errorf("%w: fund %s: %w", ErrPriceUnavailable, ref, errors.Join(errs...))
}

func (c *FundPriceChain) call(ctx context.Context, src FundPriceOracle, ref FundRef) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return src.RedemptionPrice(ctx, ref)
}

// CachedRates caches the rates of another RateOracle for a fixed time.
type CachedRates struct {
	next  RateOracle
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedRates returns a RateOracle answering from a cache, and asking next on misses.
func NewCachedRates(next RateOracle, ttl time.Duration) (*CachedRates, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create rate cache: %w", err)
	}
	return &CachedRates{next: next, cache: cache, ttl: ttl}, nil
}

// Rate implements RateOracle.
func (c *CachedRates) Rate(ctx context.Context, from, to Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	key := string(from) + "/" + string(to)
	if v, ok := c.cache.Get(key); ok {
		return v.(decimal.Decimal), nil
	}
	rate, err := c.next.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.SetWithTTL(key, rate, 1, c.ttl)
	return rate, nil
}

// Convert implements RateOracle.
func (c *CachedRates) Convert(ctx context.Context, from, to Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// Wait blocks until pending cache writes are applied.
func (c *CachedRates) Wait() { c.cache.Wait() }

// Close releases the cache.
func (c *CachedRates) Close() { c.cache.Close() }
