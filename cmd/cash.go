package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/renderer"
)

// snapshotCmd holds the flags for the 'snapshot' subcommand.
type snapshotCmd struct {
	bank   string
	trader string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "record today's snapshot in the history" }
func (*snapshotCmd) Usage() string {
	return `mfm snapshot [-bank <ILS>] [-trader <ILS>]

  Records today's portfolio value, total assets and profit in the history.
  Cash flows that are not given are carried over from the latest snapshot.
  Recording twice on the same day replaces the day's snapshot.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.bank, "bank", "", "Bank cash flow, in ILS")
	f.StringVar(&c.trader, "trader", "", "Trader cash flow, in ILS")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	bank, err := parseOptionalDecimal(c.bank)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing bank cash flow: %v\n", err)
		return subcommands.ExitUsageError
	}
	trader, err := parseOptionalDecimal(c.trader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing trader cash flow: %v\n", err)
		return subcommands.ExitUsageError
	}

	return run(ctx, func(a *app) subcommands.ExitStatus {
		var s mfm.Snapshot
		var err error
		if bank == nil && trader == nil {
			s, err = a.manager.SnapshotLatest(ctx)
		} else {
			latestBank, latestTrader := a.manager.LatestCashFlow()
			s, err = a.manager.SnapshotHistory(ctx, orDefault(bank, latestBank), orDefault(trader, latestTrader))
		}
		if err != nil {
			return fail("recording snapshot", err)
		}
		printMarkdown(renderer.HistoryMarkdown([]mfm.Snapshot{s}))
		return subcommands.ExitSuccess
	})
}

func orDefault(v *decimal.Decimal, def decimal.Decimal) decimal.Decimal {
	if v == nil {
		return def
	}
	return *v
}

// cashFlowCmd holds the flags for the 'cashflow' subcommand.
type cashFlowCmd struct {
	bank   string
	trader string
}

func (*cashFlowCmd) Name() string     { return "cashflow" }
func (*cashFlowCmd) Synopsis() string { return "set today's bank or trader cash flow" }
func (*cashFlowCmd) Usage() string {
	return `mfm cashflow [-bank <ILS>] [-trader <ILS>]

  Sets today's cash flows without revaluing the portfolio. At least one of
  -bank or -trader is required.
`
}

func (c *cashFlowCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.bank, "bank", "", "Bank cash flow, in ILS")
	f.StringVar(&c.trader, "trader", "", "Trader cash flow, in ILS")
}

func (c *cashFlowCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	bank, err := parseOptionalDecimal(c.bank)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing bank cash flow: %v\n", err)
		return subcommands.ExitUsageError
	}
	trader, err := parseOptionalDecimal(c.trader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing trader cash flow: %v\n", err)
		return subcommands.ExitUsageError
	}
	if bank == nil && trader == nil {
		fmt.Fprintln(os.Stderr, "Error: -bank or -trader is required.")
		return subcommands.ExitUsageError
	}

	return run(ctx, func(a *app) subcommands.ExitStatus {
		s, err := a.manager.SetCashFlow(ctx, bank, trader)
		if err != nil {
			return fail("setting cash flow", err)
		}
		printMarkdown(renderer.HistoryMarkdown([]mfm.Snapshot{s}))
		return subcommands.ExitSuccess
	})
}

// forexCmd holds the flags for the 'forex' subcommand.
type forexCmd struct {
	currency string
	account  string
	amount   string
}

func (*forexCmd) Name() string     { return "forex" }
func (*forexCmd) Synopsis() string { return "record a foreign currency balance" }
func (*forexCmd) Usage() string {
	return `mfm forex -c <currency> -a <bank|trader> -n <amount>

  Records the balance of a foreign currency account and its value in ILS at
  the current rate. Without flags, prints the recorded balances.
`
}

func (c *forexCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.currency, "c", "", "Currency of the balance, e.g. USD or EUR")
	f.StringVar(&c.account, "a", string(mfm.Bank), "Account holding the balance, bank or trader")
	f.StringVar(&c.amount, "n", "", "Balance, in the currency")
}

func (c *forexCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.currency == "" && c.amount == "" {
		return run(ctx, func(a *app) subcommands.ExitStatus {
			printMarkdown(renderer.ForeignMarkdown(a.manager.Foreign()))
			return subcommands.ExitSuccess
		})
	}

	cur, err := mfm.ParseCurrency(c.currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing currency: %v\n", err)
		return subcommands.ExitUsageError
	}
	account, err := mfm.ParseAccount(c.account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing account: %v\n", err)
		return subcommands.ExitUsageError
	}
	amount, err := decimal.NewFromString(c.amount)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing amount %q: %v\n", c.amount, err)
		return subcommands.ExitUsageError
	}

	return run(ctx, func(a *app) subcommands.ExitStatus {
		if _, err := a.manager.UpdateForeignCurrency(ctx, cur, account, amount); err != nil {
			return fail("updating foreign currency", err)
		}
		printMarkdown(renderer.ForeignMarkdown(a.manager.Foreign()))
		return subcommands.ExitSuccess
	})
}
