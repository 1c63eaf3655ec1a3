// Package main provides the entry point for the Toolgate CLI.
package main

import (
	"fmt"
	"os"

	"github.com/toolgate-ai/toolgate/cmd/toolgate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
