// Package main is the entry point for the swctl CLI tool.
package main

import (
	"os"

	"github.com/truthsource/syncwatch/cmd/swctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
