// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"fmt"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

const (
	// HeaderSize is the fixed framing present on every node.
	HeaderSize = 24

	// FileInfoSize is the metadata block carried by file nodes: 8-byte
	// size, 2-byte content type length, 6 reserved bytes, and
	// MaxContentTypeLength bytes of content type.
	FileInfoSize = 96

	// MaxContentTypeLength is the longest content type a file node can
	// record.
	MaxContentTypeLength = FileInfoSize - 16

	// KeySize is the size of one pointer slot.
	KeySize = nodekey.Size

	// entryOverhead is the fixed part of a directory entry: key, kind
	// and name length.
	entryOverhead = KeySize + 2

	// MaxNameLength is the longest directory entry name.
	MaxNameLength = 255
)

const (
	// MinNodeLimit is the smallest supported node size limit. Smaller
	// limits leave file nodes without room for two pointers.
	MinNodeLimit = 256

	// MaxNodeLimit bounds node sizes so raw counts fit the header.
	MaxNodeLimit = 64 << 20

	// DefaultNodeLimit is used when no limit is configured.
	DefaultNodeLimit = 1 << 20
)

// SingleNodeCapacity is the largest file that is stored inline in its
// file node.
func SingleNodeCapacity(nodeLimit int) int {
	return nodeLimit - HeaderSize - FileInfoSize
}

// SuccessorCapacity is the largest raw chunk a successor node holds.
// It is larger than SingleNodeCapacity because successors carry no
// file metadata.
func SuccessorCapacity(nodeLimit int) int {
	return nodeLimit - HeaderSize
}

// FileFanout is the number of child keys that fit in a file node.
func FileFanout(nodeLimit int) int {
	return SingleNodeCapacity(nodeLimit) / KeySize
}

// Fanout is the number of child keys that fit in a successor node.
func Fanout(nodeLimit int) int {
	return SuccessorCapacity(nodeLimit) / KeySize
}

// EntrySize is the encoded size of a directory entry with the given
// name.
func EntrySize(name string) int {
	return entryOverhead + len(name)
}

// ValidateNodeLimit reports whether nodeLimit is usable.
func ValidateNodeLimit(nodeLimit int) error {
	if nodeLimit < MinNodeLimit {
		return fmt.Errorf("node limit %d is below the minimum %d", nodeLimit, MinNodeLimit)
	}
	if nodeLimit > MaxNodeLimit {
		return fmt.Errorf("node limit %d exceeds the maximum %d", nodeLimit, MaxNodeLimit)
	}
	return nil
}
