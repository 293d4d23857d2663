// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// ErrNotFound is returned (possibly wrapped) by Get when the key is
// absent.
var ErrNotFound = errors.New("node not found")

// ErrCorrupt is returned (wrapped) by Get when a stored value exists
// but cannot be turned back into node bytes. Retrying does not help.
var ErrCorrupt = errors.New("stored value is corrupt")

// Provider is the persistence contract for encoded nodes.
//
// Implementations must be safe for concurrent use. Put with a key that
// is already present must succeed without changing the stored value.
// Get returns a slice the caller may retain but must not modify.
type Provider interface {
	Has(ctx context.Context, key nodekey.Key) (bool, error)
	Get(ctx context.Context, key nodekey.Key) ([]byte, error)
	Put(ctx context.Context, key nodekey.Key, data []byte) error
}

func notFound(key nodekey.Key) error {
	return fmt.Errorf("%w: %s", ErrNotFound, key)
}
