package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/leapstack-labs/typedgql/internal/vpath"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Schema == "" {
		errs = append(errs, errors.New("schema is required"))
	}
	if c.SearchDir == "" {
		errs = append(errs, errors.New("search_dir is required"))
	}
	if c.VirtualDir == "" {
		errs = append(errs, errors.New("virtual_dir is required"))
	}
	if c.VirtualDir != "" {
		errs = append(errs, c.validateOutputRoot()...)
	}
	if len(c.Extensions) == 0 {
		errs = append(errs, errors.New("at least one extension is required"))
	}
	for _, ext := range c.Extensions {
		if len(ext) < 2 || !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("extension %q must start with a dot", ext))
			continue
		}
		if !doublestar.ValidatePattern("**/*" + ext) {
			errs = append(errs, fmt.Errorf("extension %q is not a valid glob suffix", ext))
		}
	}
	if c.StartupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("startup_timeout must be positive, got %s", c.StartupTimeout))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}
	for name, ts := range c.Scalars {
		if strings.TrimSpace(ts) == "" {
			errs = append(errs, fmt.Errorf("scalar %s has an empty type", name))
		}
	}

	return errors.Join(errs...)
}

// validateOutputRoot rejects a virtual_dir that would delete the project,
// the search directory or the schema when the output tree is reset.
func (c *Config) validateOutputRoot() []error {
	base, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return []error{fmt.Errorf("resolve base_dir: %w", err)}
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	root := resolve(c.VirtualDir)
	if vpath.Contains(root, base) {
		return []error{fmt.Errorf("virtual_dir %q must not contain the base directory", c.VirtualDir)}
	}

	var errs []error
	if c.SearchDir != "" && vpath.Contains(root, resolve(c.SearchDir)) {
		errs = append(errs, fmt.Errorf("virtual_dir %q must not contain search_dir %q", c.VirtualDir, c.SearchDir))
	}
	if c.Schema != "" && vpath.Contains(root, resolve(c.Schema)) {
		errs = append(errs, fmt.Errorf("virtual_dir %q must not contain the schema %q", c.VirtualDir, c.Schema))
	}
	return errs
}

// ValidateSchemaFile checks that the schema file exists.
func (c *Config) ValidateSchemaFile() error {
	info, err := os.Stat(c.Schema)
	if os.IsNotExist(err) {
		return fmt.Errorf("schema file does not exist: %s\nHint: Create it or use --schema to specify a different path", c.Schema)
	}
	if err != nil {
		return fmt.Errorf("stat schema file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("schema path is a directory: %s", c.Schema)
	}
	return nil
}
