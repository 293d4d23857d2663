// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// Options configures a [Service].
type Options struct {
	// Storage persists nodes. Required.
	Storage storage.Provider

	// Keys computes node keys. Defaults to [nodekey.Blake3]. Every
	// service writing into the same store must use the same provider.
	Keys nodekey.Provider

	// NodeLimit is the maximum encoded size of any node, and drives
	// all capacity arithmetic. Defaults to [node.DefaultNodeLimit].
	// Trees written with different limits can be read by any service
	// but dedupe poorly against each other.
	NodeLimit int

	// MaxFileSize rejects larger writes with FILE_TOO_LARGE before
	// anything is stored. Zero means unlimited.
	MaxFileSize int64

	// OnNodeStored is called once for every node an operation actually
	// persists. Nodes already present in storage are not reported. The
	// hook runs synchronously on the calling goroutine and must not
	// call back into the service.
	OnNodeStored func(NodeStored)

	// Logger receives debug records for mutations. Nil discards.
	Logger *slog.Logger
}

// NodeStored describes one persisted node.
type NodeStored struct {
	Kind node.Kind
	Key  nodekey.Key

	// StorageKey is the string form the storage layer files the node
	// under.
	StorageKey string

	// Size is the encoded length in bytes.
	Size int
}

func (o Options) withDefaults() (Options, error) {
	if o.Storage == nil {
		return o, fmt.Errorf("fs: Storage is required")
	}
	if o.Keys == nil {
		o.Keys = nodekey.Blake3()
	}
	if o.NodeLimit == 0 {
		o.NodeLimit = node.DefaultNodeLimit
	}
	if err := node.ValidateNodeLimit(o.NodeLimit); err != nil {
		return o, fmt.Errorf("fs: %w", err)
	}
	if o.MaxFileSize < 0 {
		return o, fmt.Errorf("fs: MaxFileSize must not be negative, got %d", o.MaxFileSize)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o, nil
}
