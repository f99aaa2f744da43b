// Package config provides configuration management for the typedgql CLI.
package config

import "time"

// Default configuration values.
const (
	DefaultSchema         = "schema.graphql"
	DefaultSearchDir      = "src"
	DefaultVirtualDir     = ".gql"
	DefaultStartupTimeout = 10 * time.Second
	DefaultLogFormat      = "text"
	DefaultConfigFile     = "typedgql.yaml"
)

// DefaultExtensions lists the query file extensions handled by default.
var DefaultExtensions = []string{".gql", ".graphql"}

// configFileNames are searched in order.
var configFileNames = []string{"typedgql.yaml", "typedgql.yml"}

// Config holds all CLI configuration options.
type Config struct {
	// Schema is the GraphQL schema file.
	Schema string `koanf:"schema" yaml:"schema"`
	// Scalars maps custom scalar names to TypeScript types.
	Scalars map[string]string `koanf:"scalars" yaml:"scalars,omitempty"`
	// SearchDir is the directory watched for query files.
	SearchDir string `koanf:"search_dir" yaml:"search_dir"`
	// Extensions are the query file extensions, each with a leading dot.
	Extensions []string `koanf:"extensions" yaml:"extensions"`
	// VirtualDir is the output root, relative to BaseDir.
	VirtualDir string `koanf:"virtual_dir" yaml:"virtual_dir"`
	// BaseDir anchors every relative path. Defaults to the directory holding
	// the config file, or the working directory.
	BaseDir        string        `koanf:"base_dir" yaml:"base_dir,omitempty"`
	StartupTimeout time.Duration `koanf:"startup_timeout" yaml:"startup_timeout"`
	// Concurrency bounds parallel generation; zero picks a default.
	Concurrency int    `koanf:"concurrency" yaml:"concurrency,omitempty"`
	Verbose     bool   `koanf:"verbose" yaml:"verbose,omitempty"`
	LogFormat   string `koanf:"log_format" yaml:"log_format,omitempty"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Schema:         DefaultSchema,
		SearchDir:      DefaultSearchDir,
		Extensions:     append([]string(nil), DefaultExtensions...),
		VirtualDir:     DefaultVirtualDir,
		StartupTimeout: DefaultStartupTimeout,
		LogFormat:      DefaultLogFormat,
	}
}
