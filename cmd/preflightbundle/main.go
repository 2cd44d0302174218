// Package main provides the entry point for the preflightbundle CLI.
package main

import (
	"os"

	"github.com/preflightbundle/preflightbundle/cmd/preflightbundle/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
