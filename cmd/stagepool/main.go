// Package main is the entry point for the stagepool CLI.
//
// stagepool maintains a pool of cloud servers and volumes: it reuses idle
// resources where it can, provisions and converges new ones where it must,
// and cleans up according to the configured exit policy.
//
// Commands: status, scan, cleanup.
package main

import (
	"fmt"
	"os"

	"github.com/stagepool/stagepool/cmd/stagepool/commands"
)

func main() {
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
