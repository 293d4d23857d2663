// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mount

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/bureau-foundation/casfs/lib/fs"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// fuseAvailable skips tests that need a real FUSE mount when
// /dev/fuse is absent.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

func newService(t *testing.T) *fs.Service {
	t.Helper()
	service, err := fs.New(fs.Options{Storage: storage.NewMemory(), NodeLimit: 256})
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}
	return service
}

// buildTree writes files into an empty root and returns the result.
func buildTree(t *testing.T, service *fs.Service, files map[string][]byte) nodekey.Key {
	t.Helper()
	ctx := context.Background()
	root, err := service.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("EmptyRoot: %v", err)
	}
	for path, data := range files {
		result, err := service.Write(ctx, root, path, data, "")
		if err != nil {
			t.Fatalf("Write(%s): %v", path, err)
		}
		root = result.NewRoot
	}
	return root
}

func testMount(t *testing.T, service *fs.Service, root nodekey.Key) string {
	t.Helper()
	fuseAvailable(t)

	mountpoint := filepath.Join(t.TempDir(), "mount")
	server, err := Mount(context.Background(), Options{
		Mountpoint: mountpoint,
		Service:    service,
		Root:       root,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})
	return mountpoint
}

func TestToErrno(t *testing.T) {
	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{fs.ErrNotFound, syscall.ENOENT},
		{fs.ErrNotADirectory, syscall.ENOTDIR},
		{fs.ErrNotAFile, syscall.EISDIR},
		{fs.ErrInvalidPath, syscall.EINVAL},
		{fs.ErrCorruptNode, syscall.EIO},
		{fs.ErrStorage, syscall.EIO},
		{errors.New("unclassified"), syscall.EIO},
	}
	for _, test := range tests {
		if got := toErrno(test.err); got != test.want {
			t.Errorf("toErrno(%v) = %v, want %v", test.err, got, test.want)
		}
	}
}

func TestMountRejectsBadOptions(t *testing.T) {
	service := newService(t)
	ctx := context.Background()

	if _, err := Mount(ctx, Options{Service: service}); err == nil {
		t.Error("expected error without a mountpoint")
	}
	if _, err := Mount(ctx, Options{Mountpoint: t.TempDir()}); err == nil {
		t.Error("expected error without a service")
	}

	// A root that was never stored cannot be mounted.
	missing := nodekey.Blake3().ComputeKey([]byte("never stored"))
	_, err := Mount(ctx, Options{Mountpoint: t.TempDir(), Service: service, Root: missing})
	if !errors.Is(err, fs.ErrNotFound) {
		t.Errorf("mounting a missing root: got %v, want NOT_FOUND", err)
	}
}

func TestMountReadsFiles(t *testing.T) {
	service := newService(t)
	large := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	root := buildTree(t, service, map[string][]byte{
		"/hello.txt":        []byte("hello from casfs"),
		"/docs/large.bin":   large,
		"/docs/nested/a.md": []byte("# a"),
	})
	mountpoint := testMount(t, service, root)

	got, err := os.ReadFile(filepath.Join(mountpoint, "hello.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello from casfs" {
		t.Errorf("hello.txt = %q", got)
	}

	got, err = os.ReadFile(filepath.Join(mountpoint, "docs", "large.bin"))
	if err != nil {
		t.Fatalf("ReadFile large: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Errorf("large.bin differs: got %d bytes, want %d", len(got), len(large))
	}

	info, err := os.Stat(filepath.Join(mountpoint, "docs", "large.bin"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != int64(len(large)) {
		t.Errorf("size = %d, want %d", info.Size(), len(large))
	}
}

func TestMountPartialRead(t *testing.T) {
	service := newService(t)
	content := bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz"), 1000)
	root := buildTree(t, service, map[string][]byte{"/letters": content})
	mountpoint := testMount(t, service, root)

	file, err := os.Open(filepath.Join(mountpoint, "letters"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()

	buffer := make([]byte, 100)
	n, err := file.ReadAt(buffer, 12345)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(buffer[:n], content[12345:12345+n]) {
		t.Errorf("partial read mismatch")
	}
}

func TestMountListsDirectories(t *testing.T) {
	service := newService(t)
	root := buildTree(t, service, map[string][]byte{
		"/b.txt":   []byte("b"),
		"/a/x.txt": []byte("x"),
		"/c.txt":   []byte("c"),
	})
	mountpoint := testMount(t, service, root)

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	want := []struct {
		name string
		dir  bool
	}{{"a", true}, {"b.txt", false}, {"c.txt", false}}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, entry := range entries {
		if entry.Name() != want[i].name || entry.IsDir() != want[i].dir {
			t.Errorf("entry %d = %s (dir=%v), want %s (dir=%v)",
				i, entry.Name(), entry.IsDir(), want[i].name, want[i].dir)
		}
	}
}

func TestMountIsReadOnly(t *testing.T) {
	service := newService(t)
	root := buildTree(t, service, map[string][]byte{"/file": []byte("data")})
	mountpoint := testMount(t, service, root)

	if _, err := os.OpenFile(filepath.Join(mountpoint, "file"), os.O_WRONLY, 0); err == nil {
		t.Error("opening for write succeeded on a read-only mount")
	}
	if err := os.WriteFile(filepath.Join(mountpoint, "new"), []byte("x"), 0o644); err == nil {
		t.Error("creating a file succeeded on a read-only mount")
	}
	if _, err := os.Stat(filepath.Join(mountpoint, "absent")); !os.IsNotExist(err) {
		t.Errorf("Stat(absent) = %v, want not-exist", err)
	}
}
