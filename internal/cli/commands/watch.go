package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/typedgql/internal/barrier"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Regenerate declarations as query files change",
		Long: `Generate declarations for every query file, then keep watching the search
directory and regenerate or remove declarations as files are added, changed
or deleted.

Stop with Ctrl+C. A summary of the session is printed on exit.`,
		Example: `  # Watch with the project config
  typedgql watch

  # Watch a different directory with debug logging
  typedgql watch --search-dir app -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, NewCommandContext(cmd))
		},
	}
}

// runWatch runs until ctx is done.
func runWatch(ctx context.Context, c *CommandContext) error {
	if err := c.Cfg.ValidateSchemaFile(); err != nil {
		return err
	}

	start := time.Now()
	p := c.NewPlugin()
	if err := p.BuildStart(ctx); err != nil {
		return err
	}

	err := barrier.Await(ctx, p.Ready(), c.Cfg.StartupTimeout)
	switch {
	case err == nil:
		c.Logger.Info("initial scan complete, watching for changes", "elapsed", time.Since(start).Round(time.Millisecond))
	case errors.Is(err, barrier.ErrTimeout):
		c.Logger.Warn("initial scan is taking longer than expected", "timeout", c.Cfg.StartupTimeout)
	}

	<-ctx.Done()
	c.Logger.Info("stopping watcher")

	// ctx is already done; shut down on a fresh one.
	if err := p.BuildEnd(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	report, err := p.Report()
	if err != nil {
		return err
	}
	renderSummary(c.Out, report, time.Since(start))
	return nil
}
