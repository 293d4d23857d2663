// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Cached serves repeated reads of the same nodes from memory. Values
// under a key never change, so entries are never invalidated; the LRU
// only bounds memory.
type Cached struct {
	inner Provider
	cache *lru.Cache[nodekey.Key, []byte]
}

// NewCached wraps inner with an LRU holding up to entries nodes.
func NewCached(inner Provider, entries int) (*Cached, error) {
	cache, err := lru.New[nodekey.Key, []byte](entries)
	if err != nil {
		return nil, fmt.Errorf("creating node cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Has(ctx context.Context, key nodekey.Key) (bool, error) {
	if c.cache.Contains(key) {
		return true, nil
	}
	return c.inner.Has(ctx, key)
}

func (c *Cached) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	if data, ok := c.cache.Get(key); ok {
		return data, nil
	}
	data, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, data)
	return data, nil
}

// Put writes through. The value is not cached: freshly written nodes
// are mostly data chunks that are not read back in the same session.
func (c *Cached) Put(ctx context.Context, key nodekey.Key, data []byte) error {
	return c.inner.Put(ctx, key, data)
}

// Len returns the number of cached nodes.
func (c *Cached) Len() int {
	return c.cache.Len()
}
