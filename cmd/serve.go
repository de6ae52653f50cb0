package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/etnz/mfm/api"
)

// serveCmd holds the flags for the 'serve' subcommand.
type serveCmd struct {
	host string
	port int
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the portfolio over HTTP" }
func (*serveCmd) Usage() string {
	return `mfm serve [-host <host>] [-port <port>]

  Serves the portfolio operations as a JSON HTTP API until interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.host, "host", "", "Host to listen on. Overrides the configuration.")
	f.IntVar(&c.port, "port", 0, "Port to listen on. Overrides the configuration.")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, func(a *app) subcommands.ExitStatus {
		host, port := a.cfg.Server.Host, a.cfg.Server.Port
		if c.host != "" {
			host = c.host
		}
		if c.port != 0 {
			port = c.port
		}
		srv := &http.Server{
			Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
			Handler:           api.NewServer(a.manager, a.logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			a.logger.Info().Str("addr", srv.Addr).Msg("listening")
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "Error serving: %v\n", err)
				return subcommands.ExitFailure
			}
		case <-ctx.Done():
			a.logger.Info().Msg("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error shutting down: %v\n", err)
				return subcommands.ExitFailure
			}
		}
		return subcommands.ExitSuccess
	})
}
