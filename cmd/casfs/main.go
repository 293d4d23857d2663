// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command casfs manages content-addressed file system snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/cmd/casfs/commands"
)

func main() {
	if err := commands.Root().Execute(os.Args[1:]); err != nil {
		if !cli.IsSilent(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.ExitCodeOf(err))
	}
}
