package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/typedgql/internal/cli/config"
)

const exampleSchema = `schema {
  query: Root
}

type Root {
  starship(id: ID!): Starship
  allStarships: [Starship!]!
}

type Starship {
  id: ID!
  name: String!
  length: Float
}
`

const exampleQuery = `query Starship($id: ID!) {
  starship(id: $id) {
    ...StarshipFields
  }
}

fragment StarshipFields on Starship {
  id
  name
  length
}
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a typedgql project",
		Long: `Initialize a typedgql project by writing a typedgql.yaml configuration
file with the default settings.

Use --example to also create a small schema and query file to try the
generator on.`,
		Example: `  # Initialize in current directory
  typedgql init

  # Initialize with a sample schema and query
  typedgql init --example

  # Force overwrite existing config
  typedgql init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create a sample schema and query file")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force, example bool) error {
	out := cmd.OutOrStdout()

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.DefaultConfigFile)
	}

	cfg := config.Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	_, _ = fmt.Fprintf(out, "Created %s\n", configPath)

	if example {
		files := []struct {
			path    string
			content string
		}{
			{cfg.Schema, exampleSchema},
			{filepath.Join(cfg.SearchDir, "starship.gql"), exampleQuery},
		}
		for _, f := range files {
			path := filepath.Join(dir, f.path)
			if _, err := os.Stat(path); err == nil && !force {
				_, _ = fmt.Fprintf(out, "Skipped %s (already exists)\n", path)
				continue
			}
			if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", path, err)
			}
			if err := os.WriteFile(path, []byte(f.content), 0600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			_, _ = fmt.Fprintf(out, "Created %s\n", path)
		}
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  typedgql generate   Write declarations for every query file")
	_, _ = fmt.Fprintln(out, "  typedgql watch      Keep declarations in sync while you edit")
	_, _ = fmt.Fprintf(out, "  Add %s to the include list of tsconfig.json\n", cfg.VirtualDir)

	return nil
}
