// Package cli provides the command-line interface for CortexResearch.
package cli

import (
	"context"
	"fmt"
	"os"
)

// Run executes the root command and exits non-zero on failure.
func Run() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
