package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/mdserve/internal/config"
	"github.com/conneroisu/mdserve/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve a directory, rendering Markdown on request",
	Long: `Serve a directory over HTTP. Requests for .md files, or for paths that
resolve to one, are rendered to sanitized HTML and wrapped in the page
templates. Every other file is served as-is.

Both the directory and the listen address are required, from flags, the
environment or the config file.

Examples:
  mdserve serve -d ./docs -a 127.0.0.1:8080
  mdserve serve --dir . --address :3000 --live-reload
  MDSERVE_SERVER_DIR=./notes mdserve serve -a localhost:8000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.StringP("dir", "d", "", "Directory to serve (required)")
	flags.StringP("address", "a", "", "Address to listen on, host:port (required)")
	flags.Bool("live-reload", false, "Reload browsers when served files change")
	flags.Duration("debounce", config.DefaultDebounce, "Delay used to batch file change events")
	flags.String("heading-id-prefix", "", "Prefix for generated heading ids")
	flags.String("head", "", "File whose content precedes every rendered page")
	flags.String("tail", "", "File whose content follows every rendered page")

	mustBindFlags(flags, map[string]string{
		"server.dir":               "dir",
		"server.address":           "address",
		"development.live_reload":  "live-reload",
		"development.debounce":     "debounce",
		"render.heading_id_prefix": "heading-id-prefix",
		"templates.head":           "head",
		"templates.tail":           "tail",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingSetting) {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			fmt.Fprintln(cmd.ErrOrStderr())
			fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
		}
		return err
	}

	logger, closeLog, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closeLog()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug(ctx, "Starting mdserve", "flags", changedFlags(cmd.Flags()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info(context.Background(), "Shutdown requested")
		}
		return nil
	})

	return g.Wait()
}
