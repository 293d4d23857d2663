// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"os"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
)

// Root returns the casfs command tree bound to the process streams.
func Root() *cli.Command {
	return newApp(os.Stdin, os.Stdout, os.Stderr).root()
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:    "casfs",
		Summary: "Content-addressed file system tool",
		Description: `casfs stores directory trees as immutable, content-addressed nodes.

Every mutation returns a new root key and leaves the old root intact,
so any root printed by a previous command remains a readable snapshot.
Storage is selected by the config file named by --config or
CASFS_CONFIG.`,
		Stderr: a.stderr,
		Subcommands: []*cli.Command{
			a.initCommand(),
			a.statCommand(),
			a.lsCommand(),
			a.catCommand(),
			a.writeCommand(),
			a.mkdirCommand(),
			a.rmCommand(),
			a.mvCommand(),
			a.cpCommand(),
			a.rewriteCommand(),
			a.eventsCommand(),
			a.mountCommand(),
			a.keyCommand(),
			a.versionCommand(),
		},
	}
}
