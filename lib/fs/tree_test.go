// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// Sizes around every boundary of a 256-byte node limit: inline
// capacity 136, raw chunk 232, file fan-out 8, successor fan-out 14.
var boundarySizes = []int{0, 1, 135, 136, 137, 232, 233, 408, 1856, 1857, 5000, 50000}

func TestWriteReadRoundTrip(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	for index, size := range boundarySizes {
		data := testPayload(size, uint64(index))
		result, err := h.service.Write(h.ctx, h.root, "file.bin", data, "application/x-test")
		if err != nil {
			t.Fatalf("size %d: Write failed: %v", size, err)
		}
		if result.File.Size != uint64(size) || result.File.ContentType != "application/x-test" {
			t.Errorf("size %d: write reported %+v", size, result.File)
		}

		read, err := h.service.Read(h.ctx, result.NewRoot, "file.bin")
		if err != nil {
			t.Fatalf("size %d: Read failed: %v", size, err)
		}
		if !bytes.Equal(read.Data, data) {
			t.Errorf("size %d: read back %d bytes that differ from the payload", size, len(read.Data))
		}
		if read.Size != uint64(size) || read.ContentType != "application/x-test" {
			t.Errorf("size %d: read reported size %d type %q", size, read.Size, read.ContentType)
		}

		stat := h.stat(result.NewRoot, "file.bin")
		if stat.Type != node.KindFile || stat.Size != uint64(size) || stat.ContentType != "application/x-test" {
			t.Errorf("size %d: stat = %+v", size, stat)
		}
		if stat.Key != result.File.Key {
			t.Errorf("size %d: stat key %s, write key %s", size, stat.Key, result.File.Key)
		}
	}
}

func TestThreeBlockExample(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	capacity := 256 - node.HeaderSize - node.FileInfoSize
	if capacity != node.SingleNodeCapacity(256) {
		t.Fatalf("capacity = %d, SingleNodeCapacity = %d", capacity, node.SingleNodeCapacity(256))
	}

	pattern := []byte("0123456789abcdef")
	data := bytes.Repeat(pattern, 3*capacity/len(pattern)+1)[:3*capacity]

	result := h.write(h.root, "big.dat", data)
	if !result.Created {
		t.Error("Created = false for a new file")
	}
	if stat := h.stat(result.NewRoot, "big.dat"); stat.Size != uint64(3*capacity) {
		t.Errorf("stat size = %d, want %d", stat.Size, 3*capacity)
	}
	if got := h.read(result.NewRoot, "big.dat"); !bytes.Equal(got, data) {
		t.Error("read returned different bytes than the 3C pattern")
	}
}

func TestWriteIsDeterministic(t *testing.T) {
	data := testPayload(50000, 7)
	first := newTestHarness(t, 256, 0)
	second := newTestHarness(t, 256, 0)

	a := first.write(first.root, "dir/payload", data)
	b := second.write(second.root, "dir/payload", data)
	if a.NewRoot != b.NewRoot {
		t.Errorf("roots differ: %s vs %s", a.NewRoot, b.NewRoot)
	}
	if !slices.Equal(first.store.Keys(), second.store.Keys()) {
		t.Error("stored key sets differ")
	}
}

func TestSingleNodeBoundary(t *testing.T) {
	capacity := node.SingleNodeCapacity(256)

	h := newTestHarness(t, 256, 0)
	result := h.write(h.root, "f", testPayload(capacity, 1))
	events := h.takeEvents()
	// One file node plus the rewritten root.
	if result.NodesStored != 2 || len(events) != 2 {
		t.Errorf("inline write stored %d nodes (%d events), want 2", result.NodesStored, len(events))
	}
	if counts := countKinds(events); counts[node.KindFile] != 1 || counts[node.KindDict] != 1 {
		t.Errorf("inline write stored kinds %v", counts)
	}

	result = h.write(h.root, "g", testPayload(capacity+1, 2))
	if counts := countKinds(h.takeEvents()); counts[node.KindSuccessor] < 1 {
		t.Errorf("write of capacity+1 stored no successor: %v", counts)
	}
	if got := h.read(result.NewRoot, "g"); len(got) != capacity+1 {
		t.Errorf("read %d bytes, want %d", len(got), capacity+1)
	}
}

func TestMaxFileSize(t *testing.T) {
	h := newTestHarness(t, 256, 1000)

	result := h.write(h.root, "exact", testPayload(1000, 1))
	if got := h.read(result.NewRoot, "exact"); len(got) != 1000 {
		t.Errorf("read %d bytes, want 1000", len(got))
	}

	before := h.store.Len()
	h.takeEvents()
	_, err := h.service.Write(h.ctx, result.NewRoot, "over", testPayload(1001, 2), "")
	expectCode(t, err, CodeFileTooLarge)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("errors.Is(err, ErrFileTooLarge) = false for %v", err)
	}
	if CodeFileTooLarge.Status() != 413 {
		t.Errorf("FILE_TOO_LARGE status = %d", CodeFileTooLarge.Status())
	}
	if h.store.Len() != before {
		t.Errorf("rejected write changed node count from %d to %d", before, h.store.Len())
	}
	if events := h.takeEvents(); len(events) != 0 {
		t.Errorf("rejected write fired %d hooks", len(events))
	}
}

func TestHookCompleteness(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	before := h.store.Len()

	result := h.write(h.root, "data/blob", testPayload(10*node.SuccessorCapacity(256), 3))
	events := h.takeEvents()

	counts := countKinds(events)
	if counts[node.KindFile] < 1 || counts[node.KindSuccessor] < 1 || counts[node.KindDict] < 1 {
		t.Errorf("hook kinds = %v, want at least one of each", counts)
	}
	added := h.store.Len() - before
	if len(events) != added || result.NodesStored != added {
		t.Errorf("%d events, %d reported, %d keys added", len(events), result.NodesStored, added)
	}
	seen := make(map[string]bool)
	for _, event := range events {
		if seen[event.StorageKey] {
			t.Errorf("node %s reported twice", event.StorageKey)
		}
		seen[event.StorageKey] = true
		if event.StorageKey != event.Key.String() {
			t.Errorf("StorageKey %q does not match key %s", event.StorageKey, event.Key)
		}
	}
}

func TestHookSkipsDeduplicatedNodes(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	chunk := testPayload(node.SuccessorCapacity(256), 4)
	data := bytes.Repeat(chunk, 4)

	first := h.write(h.root, "a", data)
	// Four identical chunks are one successor node.
	if counts := countKinds(h.takeEvents()); counts[node.KindSuccessor] != 1 || counts[node.KindFile] != 1 || counts[node.KindDict] != 1 {
		t.Errorf("first write stored %v", counts)
	}

	// The same content under another name only needs a new root.
	h.write(first.NewRoot, "b", data)
	if counts := countKinds(h.takeEvents()); counts[node.KindSuccessor] != 0 || counts[node.KindFile] != 0 || counts[node.KindDict] != 1 {
		t.Errorf("second write stored %v", counts)
	}
}

func TestStreamMatchesRead(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	for index, size := range boundarySizes {
		data := testPayload(size, uint64(100+index))
		root := h.write(h.root, "s", data).NewRoot

		stream, err := h.service.ReadStream(h.ctx, root, "s")
		if err != nil {
			t.Fatalf("size %d: ReadStream failed: %v", size, err)
		}
		if stream.Size() != uint64(size) {
			t.Errorf("size %d: stream size %d", size, stream.Size())
		}
		var assembled []byte
		for {
			chunk, err := stream.Next(h.ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("size %d: Next failed: %v", size, err)
			}
			if len(chunk) == 0 || len(chunk) > node.SuccessorCapacity(256) {
				t.Errorf("size %d: chunk of %d bytes", size, len(chunk))
			}
			assembled = append(assembled, chunk...)
		}
		if !bytes.Equal(assembled, h.read(root, "s")) {
			t.Errorf("size %d: streamed bytes differ from Read", size)
		}
		if _, err := stream.Next(h.ctx); err != io.EOF {
			t.Errorf("size %d: Next after end = %v, want io.EOF", size, err)
		}

		again, err := h.service.ReadStream(h.ctx, root, "s")
		if err != nil {
			t.Fatal(err)
		}
		viaReader, err := io.ReadAll(again.Reader(h.ctx))
		if err != nil {
			t.Fatalf("size %d: reading through Reader: %v", size, err)
		}
		if !bytes.Equal(viaReader, data) {
			t.Errorf("size %d: Reader bytes differ", size)
		}
	}
}

func TestStreamCopyTo(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	data := testPayload(5000, 9)
	root := h.write(h.root, "c", data).NewRoot
	stream, err := h.service.ReadStream(h.ctx, root, "c")
	if err != nil {
		t.Fatal(err)
	}
	var buffer bytes.Buffer
	written, err := stream.CopyTo(h.ctx, &buffer)
	if err != nil || written != 5000 || !bytes.Equal(buffer.Bytes(), data) {
		t.Errorf("CopyTo = %d, %v", written, err)
	}
}

func TestReadAt(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	for _, size := range []int{100, 5000, 50000} {
		data := testPayload(size, uint64(size))
		root := h.write(h.root, "r", data).NewRoot

		for _, offset := range []int{0, 1, 135, 231, 232, 233, 3247, 3248, 4990, 45471, 45472, 49999} {
			if offset >= size {
				continue
			}
			for _, length := range []int{1, 17, 232, 1000} {
				dest := make([]byte, length)
				n, err := h.service.ReadAt(h.ctx, root, "r", dest, int64(offset))
				want := min(length, size-offset)
				if n != want {
					t.Fatalf("size %d offset %d length %d: n = %d, want %d", size, offset, length, n, want)
				}
				if want < length && err != io.EOF {
					t.Errorf("size %d offset %d: short read error = %v, want io.EOF", size, offset, err)
				}
				if want == length && err != nil {
					t.Errorf("size %d offset %d: error %v", size, offset, err)
				}
				if !bytes.Equal(dest[:n], data[offset:offset+n]) {
					t.Errorf("size %d offset %d length %d: wrong bytes", size, offset, length)
				}
			}
		}

		n, err := h.service.ReadAt(h.ctx, root, "r", make([]byte, 10), int64(size))
		if n != 0 || err != io.EOF {
			t.Errorf("size %d: read at end = %d, %v", size, n, err)
		}
	}
}

func TestMultiLevelTreeShape(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	// 216 raw chunks group into 16 level-1 successors, which still
	// exceed the file fan-out of 8 and group again into 2 at level 2.
	root := h.write(h.root, "deep", testPayload(50000, 11)).NewRoot
	counts := countKinds(h.takeEvents())
	if counts[node.KindSuccessor] != 216+16+2 {
		t.Errorf("stored %d successors, want %d", counts[node.KindSuccessor], 216+16+2)
	}

	file, err := h.service.loadFile(h.ctx, h.stat(root, "deep").Key)
	if err != nil {
		t.Fatal(err)
	}
	if file.Level != 3 || len(file.Children) != 2 {
		t.Errorf("file node level %d with %d children, want level 3 with 2", file.Level, len(file.Children))
	}
}

// storeRaw encodes n and stores it without going through the service,
// so tests can build trees the engine would never produce.
func storeRaw(t *testing.T, h *testHarness, n node.Node) nodekey.Key {
	t.Helper()
	data, err := node.Encode(n)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	key := nodekey.Blake3().ComputeKey(data)
	if err := h.store.Put(h.ctx, key, data); err != nil {
		t.Fatal(err)
	}
	return key
}

func TestReadDetectsSizeMismatch(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	chunk := storeRaw(t, h, &node.SuccessorNode{Span: 5, Data: []byte("hello")})
	file := storeRaw(t, h, &node.FileNode{Size: 10, Level: 1, Children: []nodekey.Key{chunk}})
	root := storeRaw(t, h, &node.DictNode{Entries: []node.Entry{{Name: "short", Key: file, Kind: node.KindFile}}})

	_, err := h.service.Read(h.ctx, root, "short")
	expectCode(t, err, CodeCorruptNode)

	_, err = h.service.ReadAt(h.ctx, root, "short", make([]byte, 10), 0)
	expectCode(t, err, CodeCorruptNode)
}

func TestReadDetectsMalformedNodes(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	garbage := []byte("definitely not a node")
	garbageKey := nodekey.Blake3().ComputeKey(garbage)
	if err := h.store.Put(h.ctx, garbageKey, garbage); err != nil {
		t.Fatal(err)
	}
	root := storeRaw(t, h, &node.DictNode{Entries: []node.Entry{{Name: "bad", Key: garbageKey, Kind: node.KindFile}}})

	_, err := h.service.Read(h.ctx, root, "bad")
	expectCode(t, err, CodeCorruptNode)
	if !errors.Is(err, node.ErrMalformed) {
		t.Errorf("error %v does not wrap node.ErrMalformed", err)
	}
	if CodeCorruptNode.Status() != 500 {
		t.Errorf("CORRUPT_NODE status = %d", CodeCorruptNode.Status())
	}
}

func TestReadDetectsLevelMismatch(t *testing.T) {
	h := newTestHarness(t, 256, 0)
	chunk := storeRaw(t, h, &node.SuccessorNode{Span: 3, Data: []byte("abc")})
	// The file claims its children are at level 1, but the child is raw.
	file := storeRaw(t, h, &node.FileNode{Size: 3, Level: 2, Children: []nodekey.Key{chunk}})
	root := storeRaw(t, h, &node.DictNode{Entries: []node.Entry{{Name: "f", Key: file, Kind: node.KindFile}}})

	_, err := h.service.Read(h.ctx, root, "f")
	expectCode(t, err, CodeCorruptNode)
}

// overlayProvider serves fixed raw values for some keys and defers to
// the wrapped provider for the rest.
type overlayProvider struct {
	storage.Provider
	values map[nodekey.Key][]byte
}

func (o *overlayProvider) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	if value, ok := o.values[key]; ok {
		return value, nil
	}
	return o.Provider.Get(ctx, key)
}

func TestReadDetectsUndecompressableValues(t *testing.T) {
	ctx := context.Background()
	memory := storage.NewMemory()
	overlay := &overlayProvider{Provider: memory, values: make(map[nodekey.Key][]byte)}
	service, err := New(Options{Storage: storage.NewCompressed(overlay, storage.CompressionZstd)})
	if err != nil {
		t.Fatal(err)
	}
	root, err := service.EmptyRoot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	written, err := service.Write(ctx, root, "f", bytes.Repeat([]byte("compressible "), 100), "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := memory.Get(ctx, written.File.Key)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"unknown tag", func(value []byte) []byte { value[0] = 9; return value }},
		{"truncated", func(value []byte) []byte { return value[:len(value)/2] }},
		{"length mismatch", func(value []byte) []byte { value[1]++; return value }},
		{"huge length", func(value []byte) []byte { value[1], value[2], value[3], value[4] = 0xff, 0xff, 0xff, 0xff; return value }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			overlay.values[written.File.Key] = test.mutate(bytes.Clone(raw))
			_, err := service.Read(ctx, written.NewRoot, "f")
			expectCode(t, err, CodeCorruptNode)
			if !errors.Is(err, storage.ErrCorrupt) {
				t.Errorf("error %v does not wrap storage.ErrCorrupt", err)
			}
		})
	}
}
