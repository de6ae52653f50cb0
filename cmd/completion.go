package cmd

import (
	"flag"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// flagPredictions are the values suggested for well known flags, any other flag takes something.
var flagPredictions = map[string]complete.Predictor{
	"config": predict.Files("*.toml"),
	"data":   predict.Dirs("*"),
	"c":      predict.Set{"USD", "ILS", "EUR", "GBP"},
	"a":      predict.Set{"bank", "trader"},
	"v":      predict.Nothing,
	"strict": predict.Nothing,
}

// Completion returns the shell completion of the commands registered in c,
// top being c's top level flags.
func Completion(c *subcommands.Commander, top *flag.FlagSet) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: predictFlags(top),
	}
	c.VisitCommands(func(_ *subcommands.CommandGroup, cmd subcommands.Command) {
		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		cmd.SetFlags(fs)
		root.Sub[cmd.Name()] = &complete.Command{Flags: predictFlags(fs)}
	})
	return root
}

func predictFlags(fs *flag.FlagSet) map[string]complete.Predictor {
	flags := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		if p, ok := flagPredictions[f.Name]; ok {
			flags[f.Name] = p
			return
		}
		flags[f.Name] = predict.Something
	})
	return flags
}
