// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/fs"
	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

func (a *app) initCommand() *cli.Command {
	var options globalOptions
	return &cli.Command{
		Name:    "init",
		Summary: "Store the empty directory and print its root",
		Usage:   "casfs init [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
			options.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return cli.Validation("init takes no arguments")
			}
			return a.run(options, func(ctx context.Context, env *environment) error {
				root, err := env.service.EmptyRoot(ctx)
				if err != nil {
					return err
				}
				return a.emitMutation(options, &fs.MutationResult{NewRoot: root})
			})
		},
	}
}

// statOutput is the JSON form of a stat result.
type statOutput struct {
	Path        string `json:"path"`
	Type        string `json:"type"`
	Key         string `json:"key"`
	Size        uint64 `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Children    *int   `json:"children,omitempty"`
}

func (a *app) statCommand() *cli.Command {
	var options rootOptions
	return &cli.Command{
		Name:    "stat",
		Summary: "Describe a file or directory",
		Usage:   "casfs stat --root KEY PATH",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stat", pflag.ContinueOnError)
			options.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			path, err := optionalPath(args)
			if err != nil {
				return err
			}
			root, err := options.rootKey()
			if err != nil {
				return err
			}
			return a.run(options.globalOptions, func(ctx context.Context, env *environment) error {
				stat, err := env.service.Stat(ctx, root, path)
				if err != nil {
					return err
				}
				output := statOutput{
					Path: path,
					Type: stat.Type.String(),
					Key:  stat.Key.ID(),
				}
				if stat.Type == node.KindDict {
					output.Children = &stat.ChildCount
				} else {
					output.Size = stat.Size
					output.ContentType = stat.ContentType
				}
				return a.emit(options.globalOptions, output, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
					fmt.Fprintf(tw, "path\t%s\n", output.Path)
					fmt.Fprintf(tw, "type\t%s\n", output.Type)
					fmt.Fprintf(tw, "key\t%s\n", output.Key)
					if output.Children != nil {
						fmt.Fprintf(tw, "children\t%d\n", *output.Children)
					} else {
						fmt.Fprintf(tw, "size\t%d\n", output.Size)
						if output.ContentType != "" {
							fmt.Fprintf(tw, "content-type\t%s\n", output.ContentType)
						}
					}
					return tw.Flush()
				})
			})
		},
	}
}

// listEntryOutput is the JSON form of one directory entry.
type listEntryOutput struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Key         string `json:"key"`
	Size        uint64 `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type listOutput struct {
	Entries    []listEntryOutput `json:"entries"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func (a *app) lsCommand() *cli.Command {
	var options rootOptions
	var limit int
	var cursor string
	var all bool
	return &cli.Command{
		Name:    "ls",
		Summary: "List a directory",
		Usage:   "casfs ls --root KEY [PATH]",
		Examples: []cli.Example{
			{Description: "List everything under /docs", Command: "casfs ls --root nod_… --all /docs"},
			{Description: "Fetch the page after a cursor", Command: "casfs ls --root nod_… --limit 50 --cursor Zm9v /docs"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.IntVar(&limit, "limit", 0, fmt.Sprintf("entries per page (default %d, max %d)", fs.DefaultListLimit, fs.MaxListLimit))
			flagSet.StringVar(&cursor, "cursor", "", "continue after a previous page")
			flagSet.BoolVarP(&all, "all", "a", false, "follow cursors until the directory is exhausted")
			return flagSet
		},
		Run: func(args []string) error {
			path, err := optionalPath(args)
			if err != nil {
				return err
			}
			root, err := options.rootKey()
			if err != nil {
				return err
			}
			return a.run(options.globalOptions, func(ctx context.Context, env *environment) error {
				output := listOutput{Entries: []listEntryOutput{}}
				listOptions := fs.ListOptions{Limit: limit, Cursor: cursor}
				for {
					page, err := env.service.List(ctx, root, path, listOptions)
					if err != nil {
						return err
					}
					for _, entry := range page.Entries {
						output.Entries = append(output.Entries, listEntryOutput{
							Name:        entry.Name,
							Type:        entry.Type.String(),
							Key:         entry.Key.ID(),
							Size:        entry.Size,
							ContentType: entry.ContentType,
						})
					}
					output.NextCursor = page.NextCursor
					if !all || page.NextCursor == "" {
						break
					}
					listOptions.Cursor = page.NextCursor
				}
				return a.emit(options.globalOptions, output, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
					for _, entry := range output.Entries {
						if entry.Type == node.KindDict.String() {
							fmt.Fprintf(tw, "%s\t-\t%s/\n", entry.Type, entry.Name)
						} else {
							fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", entry.Type, entry.Size, entry.Name, entry.ContentType)
						}
					}
					if err := tw.Flush(); err != nil {
						return err
					}
					if output.NextCursor != "" {
						fmt.Fprintf(a.stderr, "more entries: --cursor %s\n", output.NextCursor)
					}
					return nil
				})
			})
		},
	}
}

// catChunkSize bounds each ranged read.
const catChunkSize = 64 << 10

func (a *app) catCommand() *cli.Command {
	var options rootOptions
	var offset, length int64
	return &cli.Command{
		Name:    "cat",
		Summary: "Write a file's contents to stdout",
		Usage:   "casfs cat --root KEY PATH",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.Int64Var(&offset, "offset", 0, "first byte to write")
			flagSet.Int64Var(&length, "length", 0, "bytes to write (0 means to the end)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("cat takes exactly one path")
			}
			if offset < 0 || length < 0 {
				return cli.Validation("--offset and --length must not be negative")
			}
			root, err := options.rootKey()
			if err != nil {
				return err
			}
			path := args[0]
			return a.run(options.globalOptions, func(ctx context.Context, env *environment) error {
				if offset == 0 && length == 0 {
					stream, err := env.service.ReadStream(ctx, root, path)
					if err != nil {
						return err
					}
					_, err = stream.CopyTo(ctx, a.stdout)
					return err
				}
				return catRange(ctx, env.service, root, path, offset, length, a.stdout)
			})
		},
	}
}

// catRange copies [offset, offset+length) of a file, fetching only the
// successors that cover it.
func catRange(ctx context.Context, service *fs.Service, root nodekey.Key, path string, offset, length int64, w io.Writer) error {
	buffer := make([]byte, catChunkSize)
	remaining := length
	for length == 0 || remaining > 0 {
		want := buffer
		if length != 0 && remaining < int64(len(want)) {
			want = want[:remaining]
		}
		n, err := service.ReadAt(ctx, root, path, want, offset)
		if n > 0 {
			if _, writeErr := w.Write(want[:n]); writeErr != nil {
				return writeErr
			}
			offset += int64(n)
			remaining -= int64(n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func optionalPath(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "/", nil
	case 1:
		return args[0], nil
	default:
		return "", cli.Validation("expected at most one path, got %d", len(args))
	}
}
