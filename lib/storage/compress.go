// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Compression identifies the algorithm a stored value was compressed
// with. Tags are written into every value; changing them breaks stores
// written by earlier versions.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses the configuration name of an algorithm.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// compressedHeaderSize is the tag byte plus the uncompressed length.
const compressedHeaderSize = 5

var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(node.MaxNodeLimit))
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// Compressed stores values compressed in the wrapped provider. Keys
// still address the uncompressed node bytes. Values that do not shrink
// are stored with [CompressionNone], so reading never depends on the
// configured algorithm.
type Compressed struct {
	inner       Provider
	compression Compression
}

// NewCompressed wraps inner.
func NewCompressed(inner Provider, compression Compression) *Compressed {
	return &Compressed{inner: inner, compression: compression}
}

func (c *Compressed) Has(ctx context.Context, key nodekey.Key) (bool, error) {
	return c.inner.Has(ctx, key)
}

func (c *Compressed) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	stored, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	data, err := decompressValue(stored)
	if err != nil {
		return nil, fmt.Errorf("decompressing node %s: %w: %w", key, ErrCorrupt, err)
	}
	return data, nil
}

func (c *Compressed) Put(ctx context.Context, key nodekey.Key, data []byte) error {
	stored, err := compressValue(data, c.compression)
	if err != nil {
		return fmt.Errorf("compressing node %s: %w", key, err)
	}
	return c.inner.Put(ctx, key, stored)
}

func compressValue(data []byte, compression Compression) ([]byte, error) {
	if len(data) > node.MaxNodeLimit {
		return nil, fmt.Errorf("value of %d bytes exceeds %d", len(data), node.MaxNodeLimit)
	}
	var payload []byte
	var err error
	switch compression {
	case CompressionNone:
		err = errIncompressible
	case CompressionLZ4:
		payload, err = compressLZ4(data)
	case CompressionZstd:
		payload, err = compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
	if errors.Is(err, errIncompressible) {
		compression, payload, err = CompressionNone, data, nil
	}
	if err != nil {
		return nil, err
	}

	stored := make([]byte, compressedHeaderSize+len(payload))
	stored[0] = byte(compression)
	binary.LittleEndian.PutUint32(stored[1:5], uint32(len(data)))
	copy(stored[compressedHeaderSize:], payload)
	return stored, nil
}

func decompressValue(stored []byte) ([]byte, error) {
	if len(stored) < compressedHeaderSize {
		return nil, fmt.Errorf("value truncated: %d bytes", len(stored))
	}
	compression := Compression(stored[0])
	size := int(binary.LittleEndian.Uint32(stored[1:5]))
	payload := stored[compressedHeaderSize:]
	if size > node.MaxNodeLimit {
		return nil, fmt.Errorf("uncompressed length %d exceeds %d", size, node.MaxNodeLimit)
	}

	switch compression {
	case CompressionNone:
		if len(payload) != size {
			return nil, fmt.Errorf("uncompressed value: %d bytes, expected %d", len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		data := make([]byte, size)
		read, err := lz4.UncompressBlock(payload, data)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return data, nil
	case CompressionZstd:
		data, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(data) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(data), size)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unknown compression tag %d", uint8(compression))
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}
