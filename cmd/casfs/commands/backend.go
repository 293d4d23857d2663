// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/casfs/cmd/casfs/cli"
	"github.com/bureau-foundation/casfs/lib/config"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// openStorage builds the provider stack described by cfg, outermost
// first: LRU cache, compression, mirror fan-out, backends. Compression
// sits above the mirror so every replica holds the same bytes, and the
// cache sits above compression so hits skip decompression.
func openStorage(cfg config.StorageConfig, logger *slog.Logger) (storage.Provider, []io.Closer, error) {
	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	primary, closer, err := openBackend(cfg.Backend, cfg.Path, logger)
	if err != nil {
		return nil, nil, err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	provider := primary

	if len(cfg.Mirrors) > 0 {
		replicas := make([]storage.Provider, 0, len(cfg.Mirrors))
		for _, mirror := range cfg.Mirrors {
			replica, closer, err := openBackend(mirror.Backend, mirror.Path, logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			if closer != nil {
				closers = append(closers, closer)
			}
			replicas = append(replicas, replica)
		}
		provider = storage.NewMirror(primary, replicas...)
	}

	compression, err := storage.ParseCompression(cfg.Compression)
	if err != nil {
		closeAll()
		return nil, nil, cli.Validation("storage.compression: %w", err)
	}
	if compression != storage.CompressionNone {
		provider = storage.NewCompressed(provider, compression)
	}

	if cfg.CacheEntries > 0 {
		cached, err := storage.NewCached(provider, cfg.CacheEntries)
		if err != nil {
			closeAll()
			return nil, nil, cli.Validation("storage.cache_entries: %w", err)
		}
		provider = cached
	}

	logger.Debug("storage opened",
		"backend", cfg.Backend,
		"path", cfg.Path,
		"compression", compression.String(),
		"mirrors", len(cfg.Mirrors),
		"cache_entries", cfg.CacheEntries,
	)
	return provider, closers, nil
}

// openBackend opens one store. The closer is nil for backends that
// hold no handles.
func openBackend(backend, path string, logger *slog.Logger) (storage.Provider, io.Closer, error) {
	switch backend {
	case config.BackendMemory:
		return storage.NewMemory(), nil, nil
	case config.BackendFile:
		files, err := storage.NewFiles(path)
		if err != nil {
			return nil, nil, cli.Internal("opening file store %s: %w", path, err)
		}
		return files, nil, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, cli.Internal("creating %s: %w", filepath.Dir(path), err)
		}
		db, err := storage.OpenSQLite(storage.SQLiteConfig{Path: path, Logger: logger})
		if err != nil {
			return nil, nil, cli.Internal("opening sqlite store %s: %w", path, err)
		}
		return db, db, nil
	case config.BackendBolt:
		db, err := storage.OpenBolt(path)
		if err != nil {
			return nil, nil, cli.Internal("opening bolt store %s: %w", path, err)
		}
		return db, db, nil
	default:
		return nil, nil, cli.Validation("unknown storage backend %q", backend)
	}
}
