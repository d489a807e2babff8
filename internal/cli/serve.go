package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/docstore/internal/logging"
	"github.com/calvinalkan/docstore/internal/site"
)

// ServeCmd returns the serve command.
func ServeCmd(a *app) *Command {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.String("addr", "", "Listen address (default from config)")

	return &Command{
		Flags: fs,
		Usage: "serve [flags]",
		Short: "Serve the site and JSON API over HTTP",
		Long: `Serve the home page at /, the public root under /static/ and the
document API under /api/{ns}/{key}. Runs until interrupted.`,
		Exec: func(ctx context.Context, _ *IO, _ []string) error {
			addr := a.cfg.Addr
			if fs.Changed("addr") {
				addr, _ = fs.GetString("addr")
			}

			logger := logging.Component(a.logger, "http")
			handler := site.NewServer(a.store, logger, site.DefaultPage())

			return site.Serve(ctx, addr, handler, logger)
		},
	}
}
