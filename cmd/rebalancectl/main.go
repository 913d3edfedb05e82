// Package main is the rebalancectl command line tool.
// It wires the same container as the server against a data directory and
// prints harvest proposals, drift reports and restrictions as JSON.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
