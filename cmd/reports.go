package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/renderer"
)

// holdingsCmd implements the 'holdings' subcommand.
type holdingsCmd struct{}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display the lots and their last valuation" }
func (*holdingsCmd) Usage() string {
	return `mfm holdings

  Displays every lot with its cost and last valuation. Lots whose price
  could not be refreshed are marked as stale.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) subcommands.ExitStatus {
		printMarkdown(renderer.HoldingsMarkdown(a.manager.Holdings()))
		return subcommands.ExitSuccess
	})
}

// profitCmd holds the flags for the 'profit' subcommand.
type profitCmd struct {
	strict bool
}

func (*profitCmd) Name() string     { return "profit" }
func (*profitCmd) Synopsis() string { return "display the total profit of the lots" }
func (*profitCmd) Usage() string {
	return `mfm profit [-strict]

  Displays the total profit, in ILS and as a percentage of the cost.
`
}

func (c *profitCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.strict, "strict", false, "fail when the percentage is undefined")
}

func (c *profitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) subcommands.ExitStatus {
		p, err := a.manager.TotalProfit()
		if err != nil {
			if c.strict || !undefinedProfit(err) {
				return fail("computing profit", err)
			}
		}
		if p.Defined {
			fmt.Printf("%s (%s%%)\n", mfm.M(p.ILS, mfm.ILS).SignedString(), p.Percent.StringFixed(2))
		} else {
			fmt.Printf("%s (-)\n", mfm.M(p.ILS, mfm.ILS).SignedString())
		}
		return subcommands.ExitSuccess
	})
}

// undefinedProfit reports whether err only means the profit percentage cannot be computed now.
func undefinedProfit(err error) bool {
	return errors.Is(err, mfm.ErrUndefinedProfit) || errors.Is(err, mfm.ErrNoHoldings) || errors.Is(err, mfm.ErrPriceUnavailable)
}

// assetsCmd implements the 'assets' subcommand.
type assetsCmd struct{}

func (*assetsCmd) Name() string     { return "assets" }
func (*assetsCmd) Synopsis() string { return "display the total assets" }
func (*assetsCmd) Usage() string {
	return `mfm assets

  Displays the total assets in ILS and USD, the profit, the latest cash
  flows and the foreign currency balances.
`
}

func (c *assetsCmd) SetFlags(f *flag.FlagSet) {}

func (c *assetsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) subcommands.ExitStatus {
		ils, err := a.manager.TotalAssets(ctx, mfm.ILS)
		if err != nil {
			return fail("computing assets", err)
		}
		usd, err := a.manager.TotalAssets(ctx, mfm.USD)
		if err != nil {
			return fail("computing assets", err)
		}
		profit, err := a.manager.TotalProfit()
		if err != nil && !undefinedProfit(err) {
			return fail("computing profit", err)
		}
		bank, trader := a.manager.LatestCashFlow()
		printMarkdown(renderer.AssetsMarkdown(renderer.Assets{
			ILS:     ils,
			USD:     usd,
			Profit:  profit,
			Bank:    bank,
			Trader:  trader,
			Foreign: a.manager.Foreign(),
		}))
		return subcommands.ExitSuccess
	})
}

// historyCmd holds the flags for the 'history' subcommand.
type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the daily snapshots" }
func (*historyCmd) Usage() string {
	return `mfm history [-n <limit>]

  Displays the daily snapshots, most recent first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 0, "Maximum number of snapshots to display, 0 for all")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) subcommands.ExitStatus {
		list := a.manager.History()
		if c.limit > 0 && len(list) > c.limit {
			list = list[:c.limit]
		}
		printMarkdown(renderer.HistoryMarkdown(list))
		return subcommands.ExitSuccess
	})
}

// statusCmd implements the 'status' subcommand.
type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "display when each part of the portfolio last changed" }
func (*statusCmd) Usage() string {
	return `mfm status

  Displays the last modification time of the stocks, the history, the
  cash flows and the foreign currencies.
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {}

func (c *statusCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) subcommands.ExitStatus {
		if len(a.manager.LastModified()) == 0 {
			fmt.Fprintln(os.Stderr, "The portfolio is empty.")
		}
		printMarkdown(renderer.StatusMarkdown(a.manager.LastModified()))
		return subcommands.ExitSuccess
	})
}
