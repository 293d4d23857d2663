// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package node defines the three node kinds of a casfs tree and their
// binary encoding.
//
// Every node starts with a fixed [HeaderSize]-byte header:
//
//	offset  size  field
//	0       3     magic "CAS"
//	3       1     format version
//	4       1     kind (1 dict, 2 file, 3 successor)
//	5       1     flags (bit 0: payload is a pointer list)
//	6       1     level (height above the raw leaves; 0 for raw payloads)
//	7       1     reserved
//	8       4     count (entries, pointers, or raw bytes)
//	12      4     reserved
//	16      8     span (file bytes reachable from this node)
//
// A [FileNode] follows the header with a fixed [FileInfoSize]-byte
// metadata block (size, content type). Payloads follow:
//
//   - [DictNode]: count entries of key(16) | kind(1) | nameLength(1) |
//     name, in ascending name order. An empty directory is exactly
//     the header, so every empty directory has the same key.
//
//   - [FileNode]: the file's bytes inline, or count child keys.
//
//   - [SuccessorNode]: a raw chunk of file bytes, or count child keys
//     one level further from the leaves.
//
// All integers are little endian. The capacity functions
// ([SingleNodeCapacity], [SuccessorCapacity], [FileFanout], [Fanout])
// derive how much fits in a node of a given size limit; the tree
// builder in lib/fs is written entirely in terms of them.
//
// [Decode] validates structure strictly. Any violation is reported as
// an error wrapping [ErrMalformed]; a malformed node means storage is
// corrupt and callers must not retry or paper over it.
package node
