// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/fs"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

type writeOutput struct {
	Root        string `json:"root"`
	File        string `json:"file"`
	Size        uint64 `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	Created     bool   `json:"created"`
	NodesStored int    `json:"nodes_stored"`
}

func (a *app) writeCommand() *cli.Command {
	var options rootOptions
	var contentType string
	return &cli.Command{
		Name:    "write",
		Summary: "Store a file and print the new root",
		Usage:   "casfs write --root KEY PATH [SOURCE]",
		Description: `Store SOURCE (stdin when omitted or "-") as the file at PATH and print
the new root. Missing parent directories are created. Without
--content-type the type is guessed from PATH's extension.`,
		Examples: []cli.Example{
			{Description: "Store a local file", Command: "casfs write --root nod_… /docs/report.pdf ./report.pdf"},
			{Description: "Store piped output", Command: "date | casfs write --root nod_… --content-type text/plain /now"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("write", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.StringVarP(&contentType, "content-type", "t", "", "content type recorded with the file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return cli.Validation("write takes PATH and an optional SOURCE")
			}
			root, err := options.rootKey()
			if err != nil {
				return err
			}
			target := args[0]
			source := "-"
			if len(args) == 2 {
				source = args[1]
			}
			data, err := a.readSource(source)
			if err != nil {
				return err
			}
			if contentType == "" {
				contentType = mime.TypeByExtension(path.Ext(target))
			}

			return a.run(options.globalOptions, func(ctx context.Context, env *environment) error {
				result, err := env.service.Write(ctx, root, target, data, contentType)
				if err != nil {
					return err
				}
				output := writeOutput{
					Root:        result.NewRoot.ID(),
					File:        result.File.Key.ID(),
					Size:        result.File.Size,
					ContentType: result.File.ContentType,
					Created:     result.Created,
					NodesStored: result.NodesStored,
				}
				return a.emit(options.globalOptions, output, func(w io.Writer) error {
					_, err := fmt.Fprintln(w, output.Root)
					return err
				})
			})
		},
	}
}

// readSource reads a named file, or stdin for "-".
func (a *app) readSource(source string) ([]byte, error) {
	if source == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, cli.Internal("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cli.NotFound("%w", err)
		}
		return nil, cli.Internal("%w", err)
	}
	return data, nil
}

// mutationCommand builds a command whose Run applies one engine
// mutation to the positional arguments.
func (a *app) mutationCommand(name, summary, usage string, arity int,
	apply func(ctx context.Context, service *fs.Service, root nodekey.Key, args []string) (*fs.MutationResult, error),
) *cli.Command {
	var options rootOptions
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   usage,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			options.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != arity {
				return cli.Validation("%s takes %d path argument(s), got %d", name, arity, len(args))
			}
			root, err := options.rootKey()
			if err != nil {
				return err
			}
			return a.run(options.globalOptions, func(ctx context.Context, env *environment) error {
				result, err := apply(ctx, env.service, root, args)
				if err != nil {
					return err
				}
				return a.emitMutation(options.globalOptions, result)
			})
		},
	}
}

func (a *app) mkdirCommand() *cli.Command {
	return a.mutationCommand("mkdir", "Create a directory and its parents", "casfs mkdir --root KEY PATH", 1,
		func(ctx context.Context, service *fs.Service, root nodekey.Key, args []string) (*fs.MutationResult, error) {
			return service.Mkdir(ctx, root, args[0])
		})
}

func (a *app) rmCommand() *cli.Command {
	return a.mutationCommand("rm", "Remove a file or directory tree", "casfs rm --root KEY PATH", 1,
		func(ctx context.Context, service *fs.Service, root nodekey.Key, args []string) (*fs.MutationResult, error) {
			return service.Remove(ctx, root, args[0])
		})
}

func (a *app) mvCommand() *cli.Command {
	return a.mutationCommand("mv", "Move a file or directory", "casfs mv --root KEY FROM TO", 2,
		func(ctx context.Context, service *fs.Service, root nodekey.Key, args []string) (*fs.MutationResult, error) {
			return service.Move(ctx, root, args[0], args[1])
		})
}

func (a *app) cpCommand() *cli.Command {
	return a.mutationCommand("cp", "Copy a file or directory by reference", "casfs cp --root KEY FROM TO", 2,
		func(ctx context.Context, service *fs.Service, root nodekey.Key, args []string) (*fs.MutationResult, error) {
			return service.Copy(ctx, root, args[0], args[1])
		})
}
