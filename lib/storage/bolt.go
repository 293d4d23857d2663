// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

var boltBucket = []byte("nodes")

// Bolt stores nodes in one bucket of a bbolt database. Keys are the raw
// 16 key bytes.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if needed) the database at path. bbolt takes
// an exclusive file lock, so only one process can hold the store; a
// second opener fails after one second instead of blocking.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt store: creating %s: %w", filepath.Dir(path), err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout:      time.Second,
		FreelistType: bbolt.DefaultOptions.FreelistType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt store: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt store: creating bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Has(ctx context.Context, key nodekey.Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := b.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(boltBucket).Get(key[:]) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("bolt store: checking %s: %w", key, err)
	}
	return found, nil
}

func (b *Bolt) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		// Values are only valid for the life of the transaction.
		if value := tx.Bucket(boltBucket).Get(key[:]); value != nil {
			data = bytes.Clone(value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bolt store: reading %s: %w", key, err)
	}
	if data == nil {
		return nil, notFound(key)
	}
	return data, nil
}

func (b *Bolt) Put(ctx context.Context, key nodekey.Key, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket.Get(key[:]) != nil {
			return nil
		}
		return bucket.Put(key[:], data)
	})
	if err != nil {
		return fmt.Errorf("bolt store: writing %s: %w", key, err)
	}
	return nil
}

// Close releases the database file lock.
func (b *Bolt) Close() error {
	return b.db.Close()
}
