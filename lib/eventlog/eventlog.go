// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventlog records node-stored notifications as an append-only
// sequence of CBOR records. Plugging [Writer.Observe] into
// fs.Options.OnNodeStored yields a durable list of every node a tool
// or service persisted, which replication and garbage collection can
// consume later.
package eventlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/bureau-foundation/casfs/lib/fs"
)

// Record is one persisted node.
type Record struct {
	Seq        uint64 `cbor:"seq"`
	Kind       string `cbor:"kind"`
	StorageKey string `cbor:"storage_key"`
	Size       int    `cbor:"size,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("eventlog: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("eventlog: CBOR decoder initialization failed: " + err.Error())
	}
}

// Writer appends records. It is safe for concurrent use, which the
// fs hook requires when several operations run at once.
type Writer struct {
	mu      sync.Mutex
	encoder *cbor.Encoder
	closer  io.Closer
	next    uint64
	err     error
}

// NewWriter writes records to w starting at sequence number 1.
func NewWriter(w io.Writer) *Writer {
	return &Writer{encoder: encMode.NewEncoder(w), next: 1}
}

// Open appends to the log file at path, creating it and its parent
// directory if needed. Sequence numbers continue after the last record
// already present.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating event log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	existing, err := ReadAll(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading event log %s: %w", path, err)
	}
	writer := NewWriter(file)
	writer.closer = file
	if len(existing) > 0 {
		writer.next = existing[len(existing)-1].Seq + 1
	}
	return writer, nil
}

// Append writes one record and returns its sequence number.
func (w *Writer) Append(kind, storageKey string, size int) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return 0, w.err
	}
	record := Record{Seq: w.next, Kind: kind, StorageKey: storageKey, Size: size}
	if err := w.encoder.Encode(record); err != nil {
		w.err = fmt.Errorf("appending event %d: %w", record.Seq, err)
		return 0, w.err
	}
	w.next++
	return record.Seq, nil
}

// Observe has the signature of fs.Options.OnNodeStored. The hook
// cannot fail an operation, so write errors are kept for [Writer.Err].
func (w *Writer) Observe(event fs.NodeStored) {
	w.Append(event.Kind.String(), event.StorageKey, event.Size)
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close closes the underlying file when the writer came from Open,
// and reports any earlier write error.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var closeErr error
	if w.closer != nil {
		closeErr = w.closer.Close()
		w.closer = nil
	}
	return errors.Join(w.err, closeErr)
}

// ReadAll decodes every record in r.
func ReadAll(r io.Reader) ([]Record, error) {
	decoder := decMode.NewDecoder(r)
	var records []Record
	for {
		var record Record
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("decoding event %d: %w", len(records)+1, err)
		}
		records = append(records, record)
	}
}
