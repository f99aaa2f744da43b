// Package main provides the typedgql command.
package main

import (
	"os"

	"github.com/leapstack-labs/typedgql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
