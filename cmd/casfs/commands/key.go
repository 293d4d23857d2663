// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// keyOutput describes a key and, with --inspect, the node it names.
type keyOutput struct {
	ID         string `json:"id"`
	StorageKey string `json:"storage_key"`
	SizeFlag   byte   `json:"size_flag"`
	SizeMin    int    `json:"size_min"`
	SizeMax    int    `json:"size_max"`

	Node *nodeOutput `json:"node,omitempty"`
}

type nodeOutput struct {
	Kind        string `json:"kind"`
	Encoded     int    `json:"encoded_bytes"`
	Verified    bool   `json:"verified"`
	Entries     *int   `json:"entries,omitempty"`
	Size        uint64 `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Level       *uint8 `json:"level,omitempty"`
	Children    int    `json:"children,omitempty"`
}

func (a *app) keyCommand() *cli.Command {
	var options globalOptions
	var inspect bool
	return &cli.Command{
		Name:    "key",
		Summary: "Show a key's forms and size class, or inspect its node",
		Usage:   "casfs key [--inspect] KEY",
		Description: `Print the storage (hex) and protocol (nod_…) forms of KEY and the
encoded-size range its size flag advertises. With --inspect, fetch the
node from storage, check that its bytes hash to KEY, and describe it.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("key", pflag.ContinueOnError)
			options.register(flagSet)
			flagSet.BoolVarP(&inspect, "inspect", "i", false, "fetch and decode the node")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("key takes exactly one key")
			}
			key, err := nodekey.Parse(args[0])
			if err != nil {
				return cli.Validation("%w", err)
			}
			sizeMin, sizeMax := key.SizeClass()
			output := keyOutput{
				ID:         key.ID(),
				StorageKey: key.String(),
				SizeFlag:   key.SizeFlag(),
				SizeMin:    sizeMin,
				SizeMax:    sizeMax,
			}
			if !inspect {
				return a.emit(options, output, output.writeText)
			}
			return a.run(options, func(ctx context.Context, env *environment) error {
				described, err := inspectNode(ctx, env.storage, key)
				if err != nil {
					return err
				}
				output.Node = described
				return a.emit(options, output, output.writeText)
			})
		},
	}
}

func inspectNode(ctx context.Context, provider storage.Provider, key nodekey.Key) (*nodeOutput, error) {
	data, err := provider.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, cli.NotFound("node %s is not stored", key.ID())
		}
		return nil, &cli.ToolError{Category: cli.CategoryTransient, Err: err}
	}
	decoded, err := node.Decode(data)
	if err != nil {
		return nil, cli.Internal("node %s: %w", key.ID(), err)
	}

	output := &nodeOutput{
		Kind:     decoded.Kind().String(),
		Encoded:  len(data),
		Verified: nodekey.Blake3().ComputeKey(data) == key,
	}
	switch n := decoded.(type) {
	case *node.DictNode:
		count := len(n.Entries)
		output.Entries = &count
	case *node.FileNode:
		output.Size = n.Size
		output.ContentType = n.ContentType
		output.Level = &n.Level
		output.Children = len(n.Children)
	case *node.SuccessorNode:
		output.Size = n.Span
		output.Level = &n.Level
		output.Children = len(n.Children)
	}
	return output, nil
}

func (k keyOutput) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", k.ID)
	fmt.Fprintf(tw, "storage key\t%s\n", k.StorageKey)
	fmt.Fprintf(tw, "size class\t[%d, %d) bytes (flag %d)\n", k.SizeMin, k.SizeMax, k.SizeFlag)
	if n := k.Node; n != nil {
		fmt.Fprintf(tw, "kind\t%s\n", n.Kind)
		fmt.Fprintf(tw, "encoded\t%d bytes\n", n.Encoded)
		fmt.Fprintf(tw, "verified\t%t\n", n.Verified)
		if n.Entries != nil {
			fmt.Fprintf(tw, "entries\t%d\n", *n.Entries)
		}
		if n.Level != nil {
			fmt.Fprintf(tw, "size\t%d\n", n.Size)
			if n.ContentType != "" {
				fmt.Fprintf(tw, "content type\t%s\n", n.ContentType)
			}
			fmt.Fprintf(tw, "level\t%d\n", *n.Level)
			fmt.Fprintf(tw, "children\t%d\n", n.Children)
		}
	}
	return tw.Flush()
}
