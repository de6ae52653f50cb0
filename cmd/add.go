package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/date"
	"github.com/etnz/mfm/renderer"
)

// addCmd holds the flags for the 'add' subcommand.
type addCmd struct {
	symbol   string
	date     string
	amount   int
	price    string
	currency string
	fund     string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record the purchase of a new lot" }
func (*addCmd) Usage() string {
	return `mfm add -s <symbol> -n <amount> -p <unit cost> [-d <date>] [-c <currency>] [-fund <ref>]

  Records a purchase as a new lot of the symbol and values it right away.

  USD lots are US equities priced by EODHD. ILS lots must name the fund
  reference their redemption price is read from, or a currency code such
  as USD for foreign cash held as a fund.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol of the lot")
	f.StringVar(&c.date, "d", "today", "Purchase date")
	f.IntVar(&c.amount, "n", 0, "Number of units purchased")
	f.StringVar(&c.price, "p", "", "Unit cost, in the lot's currency")
	f.StringVar(&c.currency, "c", "USD", "Currency of the lot, USD or ILS")
	f.StringVar(&c.fund, "fund", "", "Fund reference of an ILS lot")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	on, err := date.Parse(c.date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	cur, err := mfm.ParseReporting(c.currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing currency: %v\n", err)
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing unit cost %q: %v\n", c.price, err)
		return subcommands.ExitUsageError
	}

	return run(ctx, func(a *app) subcommands.ExitStatus {
		lot, err := a.manager.AddStock(ctx, c.symbol, on, c.amount, price, cur, mfm.FundRef(c.fund))
		if err != nil {
			return fail("adding stock", err)
		}
		printMarkdown(renderer.HoldingsMarkdown([]mfm.Lot{lot}))
		return subcommands.ExitSuccess
	})
}
