package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/typedgql/internal/codegen"
)

// NewTransformCommand creates the transform command.
func NewTransformCommand() *cobra.Command {
	var declaration bool

	cmd := &cobra.Command{
		Use:   "transform <file>",
		Short: "Print the compiled module for one query file",
		Long: `Validate one query file against the schema and print the JavaScript module a
bundler would load for it.

With --declaration the TypeScript declaration body is printed instead.`,
		Example: `  # Show the runtime module
  typedgql transform src/routes/starship.gql

  # Show the declaration
  typedgql transform src/routes/starship.gql --declaration`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(NewCommandContext(cmd), args[0], declaration)
		},
	}

	cmd.Flags().BoolVar(&declaration, "declaration", false, "Print the TypeScript declaration instead of JavaScript")

	return cmd
}

func runTransform(c *CommandContext, path string, declaration bool) error {
	src, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	schema, err := codegen.LoadSchema(c.Cfg.Schema)
	if err != nil {
		return err
	}

	var out string
	if declaration {
		out, err = codegen.DeclarationTransform(string(src), schema, c.Cfg.Scalars)
	} else {
		out, err = codegen.RuntimeTransform(string(src), schema, c.Cfg.Scalars)
	}
	if err != nil {
		return fmt.Errorf("transform %s: %w", path, err)
	}

	_, _ = fmt.Fprint(c.Out, out)
	return nil
}
