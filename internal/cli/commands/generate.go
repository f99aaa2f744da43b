package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Generate declarations for every query file",
		Long: `Generate a TypeScript declaration for every query file under the search
directory, then exit.

The output directory is cleared first, so stale declarations never survive a
run. Files that fail to validate against the schema are reported and skipped.`,
		Example: `  # Generate with the project config
  typedgql generate

  # Fail the build when any query file is invalid
  typedgql generate --strict

  # Map a custom scalar
  typedgql generate --scalar DateTime=string`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), NewCommandContext(cmd), strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when any query file fails to generate")

	return cmd
}

func runGenerate(ctx context.Context, c *CommandContext, strict bool) error {
	if err := c.Cfg.ValidateSchemaFile(); err != nil {
		return err
	}

	start := time.Now()
	p := c.NewPlugin()
	if err := p.BuildStart(ctx); err != nil {
		return err
	}
	if err := p.BuildEnd(ctx); err != nil {
		return err
	}

	report, err := p.Report()
	if err != nil {
		return err
	}
	renderSummary(c.Out, report, time.Since(start))

	if strict {
		if report.StartupErr != nil {
			return report.StartupErr
		}
		if report.Stats.Failed > 0 {
			return fmt.Errorf("%d query file(s) failed to generate", report.Stats.Failed)
		}
	}
	return nil
}
