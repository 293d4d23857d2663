// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Mirror replicates every write to a primary provider and a set of
// replicas. A Put succeeds only when every target accepted the node,
// so a root returned by the engine is readable from any of them.
// Reads try the primary first and then each replica in order.
type Mirror struct {
	targets []Provider
}

// NewMirror returns a Mirror writing to primary and replicas.
func NewMirror(primary Provider, replicas ...Provider) *Mirror {
	targets := make([]Provider, 0, 1+len(replicas))
	targets = append(targets, primary)
	targets = append(targets, replicas...)
	return &Mirror{targets: targets}
}

// Has reports whether every target holds the key. A node missing from
// any replica is reported absent so the next Put repairs the gap.
func (m *Mirror) Has(ctx context.Context, key nodekey.Key) (bool, error) {
	for _, target := range m.targets {
		found, err := target.Has(ctx, key)
		if err != nil || !found {
			return false, err
		}
	}
	return true, nil
}

func (m *Mirror) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	var errs []error
	for _, target := range m.targets {
		data, err := target.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, notFound(key)
}

func (m *Mirror) Put(ctx context.Context, key nodekey.Key, data []byte) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for index, target := range m.targets {
		group.Go(func() error {
			if err := target.Put(groupCtx, key, data); err != nil {
				return fmt.Errorf("mirror target %d: %w", index, err)
			}
			return nil
		})
	}
	return group.Wait()
}
