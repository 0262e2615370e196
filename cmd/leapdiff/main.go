// Package main provides the leapdiff CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapdiff/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
