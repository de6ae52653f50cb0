package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/mfm/renderer"
)

// updateCmd implements the 'update' subcommand.
type updateCmd struct{}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "revalue lots with the latest market prices" }
func (*updateCmd) Usage() string {
	return `mfm update [<symbol>...]

  Fetches the latest prices and conversion rates and revalues the lots of
  the given symbols, or of every symbol when none is given.

  A symbol that cannot be priced keeps its last valuation.
`
}

func (c *updateCmd) SetFlags(f *flag.FlagSet) {}

func (c *updateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(a *app) subcommands.ExitStatus {
		report, err := a.manager.UpdateStocksPrice(ctx, f.Args()...)
		if err != nil {
			return fail("updating prices", err)
		}
		printMarkdown(renderer.RevalueMarkdown(report))
		if len(report.Updated) == 0 && len(report.Failed) > 0 {
			fmt.Fprintln(os.Stderr, "Error: no symbol could be updated")
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	})
}
