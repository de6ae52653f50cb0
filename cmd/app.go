// Package cmd implements the CLI application to manage a portfolio.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/bizportal"
	"github.com/etnz/mfm/eodhd"
	"github.com/etnz/mfm/maya"
	"github.com/etnz/mfm/postgres"
	"github.com/etnz/mfm/surreal"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "stocks")
	c.Register(&removeCmd{}, "stocks")
	c.Register(&updateCmd{}, "stocks")
	c.Register(&searchCmd{}, "stocks")

	c.Register(&cashFlowCmd{}, "cash")
	c.Register(&forexCmd{}, "cash")

	c.Register(&holdingsCmd{}, "reports")
	c.Register(&profitCmd{}, "reports")
	c.Register(&assetsCmd{}, "reports")
	c.Register(&snapshotCmd{}, "reports")
	c.Register(&historyCmd{}, "reports")
	c.Register(&statusCmd{}, "reports")

	c.Register(&serveCmd{}, "server")

	c.Register(&topicCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	configFile = flag.String("config", "mfm.toml", "Path to the configuration file (TOML)")
	dataDir    = flag.String("data", "", "Folder of the file storage. Overrides the configuration.")
	verbose    = flag.Bool("v", false, "Log debug messages")
)

// loadConfig loads the configuration and applies the global flags to it.
func loadConfig() (*Config, error) {
	cfg, err := LoadConfig(*configFile)
	if err != nil {
		return nil, err
	}
	if *dataDir != "" {
		cfg.Storage.Backend = BackendFile
		cfg.Storage.Path = *dataDir
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// app is what a command needs to run against the portfolio.
type app struct {
	cfg     *Config
	logger  zerolog.Logger
	manager *mfm.Manager
	closers []func()
}

// openApp loads the configuration, connects the storage and the market data
// clients, and opens the Manager.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: newLogger(cfg.Logging.Level, os.Stderr)}

	repo, err := a.openRepository(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	prices := a.eodhdClient()
	rates, err := mfm.NewCachedRates(prices, duration(cfg.Valuation.RateCacheTTL, DefaultRateCacheTTL))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, rates.Close)

	opts := []mfm.Option{
		mfm.WithLogger(a.logger),
		mfm.WithWorkers(cfg.Valuation.Workers),
		mfm.WithCallTimeout(duration(cfg.Valuation.CallTimeout, mfm.DefaultCallTimeout)),
	}
	funds := mfm.NewFundPriceChain(a.fundSources(), opts...)

	a.manager, err = mfm.Open(ctx, repo, rates, prices, funds, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// DefaultRateCacheTTL is how long a currency rate is reused.
const DefaultRateCacheTTL = 5 * time.Minute

func (a *app) eodhdClient() *eodhd.Client {
	c := a.cfg.Clients.EODHD
	if c.APIKey == "" {
		a.logger.Warn().Msg("no EODHD API key configured, prices and rates will fail. Set " + eodhdAPIKeyEnv)
	}
	return eodhd.NewClient(c.APIKey,
		eodhd.WithBaseURL(c.BaseURL),
		eodhd.WithRateLimit(c.RateLimit),
		eodhd.WithTimeout(duration(c.Timeout, eodhd.DefaultTimeout)),
		eodhd.WithLogger(a.logger.With().Str("client", "eodhd").Logger()),
	)
}

func (a *app) fundSources() []mfm.FundPriceOracle {
	b := a.cfg.Clients.BizPortal
	sources := []mfm.FundPriceOracle{
		bizportal.NewClient(
			bizportal.WithBaseURL(b.BaseURL),
			bizportal.WithRateLimit(b.RateLimit),
			bizportal.WithTimeout(duration(b.Timeout, bizportal.DefaultTimeout)),
			bizportal.WithLogger(a.logger.With().Str("client", "bizportal").Logger()),
		),
	}
	if m := a.cfg.Clients.Maya; !m.Disabled {
		sources = append(sources, maya.NewClient(
			maya.WithBaseURL(m.BaseURL),
			maya.WithTimeout(duration(m.Timeout, maya.DefaultTimeout)),
			maya.WithLogger(a.logger.With().Str("client", "maya").Logger()),
		))
	}
	return sources
}

func (a *app) openRepository(ctx context.Context) (mfm.Repository, error) {
	s := a.cfg.Storage
	switch s.Backend {
	case BackendSurreal:
		store, err := surreal.Open(ctx, surreal.Config{
			Address:   s.Surreal.Address,
			Namespace: s.Surreal.Namespace,
			Database:  s.Surreal.Database,
			Username:  s.Surreal.Username,
			Password:  s.Surreal.Password,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { store.Close(context.Background()) })
		return store, nil
	case BackendPostgres:
		store, err := postgres.Open(ctx, s.Postgres.URL, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	a.logger.Debug().Str("path", s.Path).Msg("file storage")
	return mfm.NewFileRepository(s.Path), nil
}

// Close releases the storage and the caches.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// run opens the app, calls f and closes the app.
func run(ctx context.Context, f func(a *app) subcommands.ExitStatus) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening the portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	return f(a)
}

// fail reports err on stderr. Invalid requests are usage errors.
func fail(what string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	switch {
	case errors.Is(err, mfm.ErrInvalidStockDefinition),
		errors.Is(err, mfm.ErrInvalidDivestment),
		errors.Is(err, mfm.ErrUnsupportedCurrency):
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

// parseOptionalDecimal parses s, nil if s is empty.
func parseOptionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &d, nil
}

// printMarkdown renders md for the terminal, or prints it raw if it cannot.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(160))
	if err != nil {
		fmt.Println(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}
