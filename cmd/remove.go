package cmd

import (
	"context"
	"flag"
	"strings"

	"github.com/google/subcommands"

	"github.com/etnz/mfm"
	"github.com/etnz/mfm/renderer"
)

// removeCmd holds the flags for the 'remove' subcommand.
type removeCmd struct {
	symbol string
	amount int
}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "sell units of a symbol, oldest lots first" }
func (*removeCmd) Usage() string {
	return `mfm remove -s <symbol> -n <amount>

  Removes units of the symbol from its lots, oldest first, and prints the
  lots that were reduced or closed.
`
}

func (c *removeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol to sell")
	f.IntVar(&c.amount, "n", 0, "Number of units to sell")
}

func (c *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) subcommands.ExitStatus {
		cur := lotCurrency(a.manager.Holdings(), c.symbol)
		plan, err := a.manager.RemoveStock(ctx, c.symbol, c.amount)
		if err != nil {
			return fail("removing stock", err)
		}
		printMarkdown(renderer.DivestmentMarkdown(plan, cur))
		return subcommands.ExitSuccess
	})
}

// lotCurrency returns the currency of the symbol's lots, USD if it has none.
func lotCurrency(lots []mfm.Lot, symbol string) mfm.Currency {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, l := range lots {
		if l.Symbol == symbol {
			return l.Currency()
		}
	}
	return mfm.USD
}
