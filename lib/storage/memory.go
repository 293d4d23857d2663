// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Memory keeps nodes in a map. The zero value is not usable; call
// [NewMemory].
type Memory struct {
	mu    sync.RWMutex
	nodes map[nodekey.Key][]byte
}

// NewMemory returns an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{nodes: make(map[nodekey.Key][]byte)}
}

func (m *Memory) Has(ctx context.Context, key nodekey.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[key]
	return ok, nil
}

func (m *Memory) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.nodes[key]
	if !ok {
		return nil, notFound(key)
	}
	return data, nil
}

func (m *Memory) Put(ctx context.Context, key nodekey.Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[key]; !ok {
		m.nodes[key] = bytes.Clone(data)
	}
	return nil
}

// Len returns the number of stored nodes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Keys returns every stored key in storage-string order.
func (m *Memory) Keys() []nodekey.Key {
	m.mu.RLock()
	keys := make([]nodekey.Key, 0, len(m.nodes))
	for key := range m.nodes {
		keys = append(keys, key)
	}
	m.mu.RUnlock()
	slices.SortFunc(keys, func(a, b nodekey.Key) int {
		return bytes.Compare(a[:], b[:])
	})
	return keys
}
