// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// testHarness bundles a service over in-memory storage with a record
// of every node-stored notification.
type testHarness struct {
	t       *testing.T
	ctx     context.Context
	store   *storage.Memory
	service *Service
	root    nodekey.Key

	mu     sync.Mutex
	events []NodeStored
}

func newTestHarness(t *testing.T, nodeLimit int, maxFileSize int64) *testHarness {
	t.Helper()
	h := &testHarness{t: t, ctx: context.Background(), store: storage.NewMemory()}
	service, err := New(Options{
		Storage:     h.store,
		NodeLimit:   nodeLimit,
		MaxFileSize: maxFileSize,
		OnNodeStored: func(event NodeStored) {
			h.mu.Lock()
			h.events = append(h.events, event)
			h.mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	h.service = service
	h.root, err = service.EmptyRoot(h.ctx)
	if err != nil {
		t.Fatalf("EmptyRoot failed: %v", err)
	}
	h.takeEvents()
	return h
}

// takeEvents returns and clears the recorded notifications.
func (h *testHarness) takeEvents() []NodeStored {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := h.events
	h.events = nil
	return events
}

func (h *testHarness) write(root nodekey.Key, path string, data []byte) *WriteResult {
	h.t.Helper()
	result, err := h.service.Write(h.ctx, root, path, data, "application/octet-stream")
	if err != nil {
		h.t.Fatalf("Write(%s, %d bytes) failed: %v", path, len(data), err)
	}
	return result
}

func (h *testHarness) read(root nodekey.Key, path string) []byte {
	h.t.Helper()
	result, err := h.service.Read(h.ctx, root, path)
	if err != nil {
		h.t.Fatalf("Read(%s) failed: %v", path, err)
	}
	return result.Data
}

func (h *testHarness) stat(root nodekey.Key, path string) *StatResult {
	h.t.Helper()
	result, err := h.service.Stat(h.ctx, root, path)
	if err != nil {
		h.t.Fatalf("Stat(%s) failed: %v", path, err)
	}
	return result
}

func (h *testHarness) mkdir(root nodekey.Key, path string) nodekey.Key {
	h.t.Helper()
	result, err := h.service.Mkdir(h.ctx, root, path)
	if err != nil {
		h.t.Fatalf("Mkdir(%s) failed: %v", path, err)
	}
	return result.NewRoot
}

func countKinds(events []NodeStored) map[node.Kind]int {
	counts := make(map[node.Kind]int)
	for _, event := range events {
		counts[event.Kind]++
	}
	return counts
}

// testPayload returns size reproducible pseudo-random bytes. Random
// content keeps chunks distinct so deduplication does not hide nodes.
func testPayload(size int, seed uint64) []byte {
	random := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(random.Uint32())
	}
	return data
}

func expectCode(t *testing.T, err error, code Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("succeeded, want %s", code)
	}
	if got := CodeOf(err); got != code {
		t.Fatalf("error = %v (code %q), want code %s", err, got, code)
	}
}
