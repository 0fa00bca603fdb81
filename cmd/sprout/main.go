// Package main provides the entry point for the sprout CLI.
package main

import (
	"os"

	"github.com/randalmurphal/sprout/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
