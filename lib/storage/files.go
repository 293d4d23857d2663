// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

const (
	filesNodeDir = "nodes"
	filesTmpDir  = "tmp"
)

// Files stores one file per node below a root directory. Nodes are
// sharded by the first two bytes of their storage key:
//
//	nodes/a3/f9/a3f9b2c1e7d4...
//
// Writes go through tmp/ and an atomic rename, so a reader never sees
// a partially written node and a crash leaves at most a stray temp
// file.
type Files struct {
	root string
}

// NewFiles opens (creating if needed) a file tree rooted at root.
func NewFiles(root string) (*Files, error) {
	for _, dir := range []string{
		root,
		filepath.Join(root, filesNodeDir),
		filepath.Join(root, filesTmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	return &Files{root: root}, nil
}

// Path returns the file holding key.
func (f *Files) Path(key nodekey.Key) string {
	hex := key.String()
	return filepath.Join(f.root, filesNodeDir, hex[:2], hex[2:4], hex)
}

func (f *Files) Has(ctx context.Context, key nodekey.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(f.Path(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking node %s: %w", key, err)
}

func (f *Files) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading node %s: %w", key, err)
	}
	return data, nil
}

func (f *Files) Put(ctx context.Context, key nodekey.Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	finalPath := f.Path(key)
	if _, err := os.Stat(finalPath); err == nil {
		return nil
	}

	tmpFile, err := os.CreateTemp(filepath.Join(f.root, filesTmpDir), "node-*")
	if err != nil {
		return fmt.Errorf("creating temp node file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing node %s: %w", key, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp node file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating node shard directory: %w", err)
	}
	// A concurrent writer may have renamed the same content into place
	// already; rename over it is harmless because the bytes are equal.
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming node to %s: %w", finalPath, err)
	}
	success = true
	return nil
}
