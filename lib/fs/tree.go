// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"io"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// writeFile stores data as a file node and its successors, leaves
// first, and returns the file node's key.
//
// Data up to SingleNodeCapacity is stored inline. Anything larger is
// cut into raw successors of SuccessorCapacity bytes; while the
// resulting pointer list is too long for the file node, it is grouped
// into pointer successors of Fanout children, one level at a time.
func (ss *session) writeFile(ctx context.Context, data []byte, contentType string) (nodekey.Key, error) {
	limit := ss.service.nodeLimit
	size := uint64(len(data))

	if len(data) <= node.SingleNodeCapacity(limit) {
		return ss.put(ctx, &node.FileNode{Size: size, ContentType: contentType, Data: data})
	}

	chunkSize := node.SuccessorCapacity(limit)
	keys := make([]nodekey.Key, 0, (len(data)+chunkSize-1)/chunkSize)
	spans := make([]uint64, 0, cap(keys))
	for offset := 0; offset < len(data); offset += chunkSize {
		end := min(offset+chunkSize, len(data))
		key, err := ss.put(ctx, &node.SuccessorNode{Span: uint64(end - offset), Data: data[offset:end]})
		if err != nil {
			return nodekey.Key{}, err
		}
		keys = append(keys, key)
		spans = append(spans, uint64(end-offset))
	}

	fanout := node.Fanout(limit)
	level := uint8(1)
	for len(keys) > node.FileFanout(limit) {
		groupKeys := make([]nodekey.Key, 0, (len(keys)+fanout-1)/fanout)
		groupSpans := make([]uint64, 0, cap(groupKeys))
		for start := 0; start < len(keys); start += fanout {
			end := min(start+fanout, len(keys))
			var span uint64
			for _, childSpan := range spans[start:end] {
				span += childSpan
			}
			key, err := ss.put(ctx, &node.SuccessorNode{
				Level:    level,
				Span:     span,
				Children: keys[start:end],
			})
			if err != nil {
				return nodekey.Key{}, err
			}
			groupKeys = append(groupKeys, key)
			groupSpans = append(groupSpans, span)
		}
		keys, spans = groupKeys, groupSpans
		level++
	}

	return ss.put(ctx, &node.FileNode{
		Size:        size,
		ContentType: contentType,
		Level:       level,
		Children:    keys,
	})
}

// readFileAt copies the file bytes starting at offset into dest,
// following io.ReaderAt conventions.
func (s *Service) readFileAt(ctx context.Context, file *node.FileNode, dest []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, newError(CodeInvalidArgument, "negative offset %d", offset)
	}
	if uint64(offset) >= file.Size {
		return 0, io.EOF
	}
	want := len(dest)
	if remaining := file.Size - uint64(offset); uint64(want) > remaining {
		want = int(remaining)
	}

	var n int
	if file.Inline() {
		n = copy(dest[:want], file.Data[offset:])
	} else {
		var err error
		n, err = s.readPointersAt(ctx, file.Children, file.Level-1, uint64(offset), dest[:want])
		if err != nil {
			return n, err
		}
		if n != want {
			return n, newError(CodeCorruptNode, "file tree holds fewer bytes than its size %d", file.Size)
		}
	}
	if n < len(dest) {
		return n, io.EOF
	}
	return n, nil
}

// readPointersAt fills dest from the subtree covered by children, all
// at childLevel, starting offset bytes into that subtree. Every child
// but the last covers the same number of bytes (the builder only ever
// leaves the final group short), so the first child's span is the
// stride that locates offset.
func (s *Service) readPointersAt(ctx context.Context, children []nodekey.Key, childLevel uint8, offset uint64, dest []byte) (int, error) {
	first, err := s.loadSuccessor(ctx, children[0], childLevel)
	if err != nil {
		return 0, err
	}
	stride := first.Span
	if stride == 0 {
		return 0, newError(CodeCorruptNode, "successor %s has an empty span", children[0])
	}

	index := offset / stride
	local := offset % stride
	written := 0
	for index < uint64(len(children)) && written < len(dest) {
		child := first
		if index != 0 {
			child, err = s.loadSuccessor(ctx, children[index], childLevel)
			if err != nil {
				return written, err
			}
		}
		if index < uint64(len(children))-1 && child.Span != stride {
			return written, newError(CodeCorruptNode, "successor %s spans %d bytes, siblings span %d", children[index], child.Span, stride)
		}
		if local < child.Span {
			if child.Raw() {
				written += copy(dest[written:], child.Data[local:])
			} else {
				n, err := s.readPointersAt(ctx, child.Children, childLevel-1, local, dest[written:])
				written += n
				if err != nil {
					return written, err
				}
			}
		}
		index++
		local = 0
	}
	return written, nil
}
