// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/casfs/lib/config"
	"github.com/bureau-foundation/casfs/lib/fs"
	"github.com/bureau-foundation/casfs/lib/storage"
)

func TestOpenStorageFullStack(t *testing.T) {
	dir := t.TempDir()
	cfg := config.StorageConfig{
		Backend:      config.BackendSQLite,
		Path:         filepath.Join(dir, "db", "nodes.db"),
		Compression:  "zstd",
		CacheEntries: 64,
		Mirrors: []config.MirrorConfig{
			{Backend: config.BackendBolt, Path: filepath.Join(dir, "mirror", "nodes.bolt")},
			{Backend: config.BackendFile, Path: filepath.Join(dir, "files")},
		},
	}
	logger := slog.New(slog.DiscardHandler)

	provider, closers, err := openStorage(cfg, logger)
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	if _, ok := provider.(*storage.Cached); !ok {
		t.Errorf("outermost provider is %T, want *storage.Cached", provider)
	}
	if len(closers) != 2 {
		t.Errorf("got %d closers, want sqlite and bolt", len(closers))
	}

	ctx := context.Background()
	service, err := fs.New(fs.Options{Storage: provider, NodeLimit: 256})
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}
	root, err := service.EmptyRoot(ctx)
	if err != nil {
		t.Fatalf("EmptyRoot: %v", err)
	}
	content := bytes.Repeat([]byte("compressible "), 500)
	written, err := service.Write(ctx, root, "/a", content, "")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	// Each replica alone serves the whole tree once the compression
	// layer is put back in front of it.
	for _, mirror := range cfg.Mirrors {
		replica, closer, err := openBackend(mirror.Backend, mirror.Path, logger)
		if err != nil {
			t.Fatalf("reopening %s: %v", mirror.Backend, err)
		}
		replicaService, err := fs.New(fs.Options{
			Storage:   storage.NewCompressed(replica, storage.CompressionZstd),
			NodeLimit: 256,
		})
		if err != nil {
			t.Fatal(err)
		}
		read, err := replicaService.Read(ctx, written.NewRoot, "/a")
		if err != nil {
			t.Fatalf("%s replica: Read: %v", mirror.Backend, err)
		}
		if !bytes.Equal(read.Data, content) {
			t.Errorf("%s replica returned different content", mirror.Backend)
		}
		if closer != nil {
			closer.Close()
		}
	}
}

func TestOpenStorageRejectsUnknownBackend(t *testing.T) {
	_, _, err := openStorage(config.StorageConfig{Backend: "tape"}, slog.New(slog.DiscardHandler))
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpenStorageMemory(t *testing.T) {
	provider, closers, err := openStorage(config.StorageConfig{Backend: config.BackendMemory, Compression: "lz4"}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("openStorage: %v", err)
	}
	if len(closers) != 0 {
		t.Errorf("memory backend returned %d closers", len(closers))
	}
	if _, ok := provider.(*storage.Compressed); !ok {
		t.Errorf("provider is %T, want *storage.Compressed", provider)
	}
}
