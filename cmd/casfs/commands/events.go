// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/eventlog"
)

func (a *app) eventsCommand() *cli.Command {
	var options globalOptions
	var file string
	var after uint64
	return &cli.Command{
		Name:    "events",
		Summary: "Print the node event log",
		Usage:   "casfs events [--file PATH] [--after SEQ]",
		Description: `Print the records of the CBOR event log: one line per stored node with
its sequence number, kind, storage key and encoded size. The log path
comes from --file or from event_log in the config.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("events", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.StringVar(&file, "file", "", "event log path (default: event_log from config)")
			flagSet.Uint64Var(&after, "after", 0, "only records with a sequence number above this")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return cli.Validation("events takes no arguments")
			}
			path := file
			if path == "" {
				cfg, err := loadConfig(options.configPath)
				if err != nil {
					return err
				}
				if cfg.EventLog == "" {
					return cli.Validation("no event log: pass --file or set event_log in the config")
				}
				path = cfg.EventLog
			}

			f, err := os.Open(path)
			if err != nil {
				if os.IsNotExist(err) {
					return cli.NotFound("%w", err)
				}
				return cli.Internal("%w", err)
			}
			defer f.Close()
			records, err := eventlog.ReadAll(f)
			if err != nil {
				return cli.Internal("reading %s: %w", path, err)
			}

			selected := records[:0]
			for _, record := range records {
				if record.Seq > after {
					selected = append(selected, record)
				}
			}
			return a.emit(options, selected, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
				for _, record := range selected {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", record.Seq, record.Kind, record.StorageKey, record.Size)
				}
				return tw.Flush()
			})
		},
	}
}
