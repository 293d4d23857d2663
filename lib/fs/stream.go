// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"io"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Stream yields a file's bytes chunk by chunk. Each call to Next
// fetches at most the nodes needed for the next raw chunk, so memory
// stays bounded by one chunk plus one pointer list per tree level.
//
// A Stream is single pass and not safe for concurrent use. Abandoning
// it needs no cleanup.
type Stream struct {
	service     *Service
	size        uint64
	contentType string

	inline  []byte
	stack   []streamFrame
	emitted uint64
	done    bool
	err     error
}

// streamFrame is the unvisited remainder of one pointer list.
type streamFrame struct {
	keys  []nodekey.Key
	level uint8
}

func (s *Service) newStream(file *node.FileNode) *Stream {
	stream := &Stream{
		service:     s,
		size:        file.Size,
		contentType: file.ContentType,
	}
	if file.Inline() {
		stream.inline = file.Data
	} else {
		stream.stack = []streamFrame{{keys: file.Children, level: file.Level - 1}}
	}
	return stream
}

// Size is the file size recorded in the file node.
func (st *Stream) Size() uint64 { return st.size }

// ContentType is the file's content type.
func (st *Stream) ContentType() string { return st.contentType }

// Next returns the next non-empty chunk, or io.EOF once the whole file
// has been produced. A file whose chunks do not add up to its recorded
// size ends with a CORRUPT_NODE error instead. The returned slice must
// not be modified.
func (st *Stream) Next(ctx context.Context) ([]byte, error) {
	if st.err != nil {
		return nil, st.err
	}
	if st.done {
		return nil, io.EOF
	}
	if st.inline != nil {
		chunk := st.inline
		st.inline = nil
		st.emitted = uint64(len(chunk))
		if len(chunk) > 0 {
			return chunk, nil
		}
	}

	for len(st.stack) > 0 {
		top := &st.stack[len(st.stack)-1]
		if len(top.keys) == 0 {
			st.stack = st.stack[:len(st.stack)-1]
			continue
		}
		key := top.keys[0]
		level := top.level
		top.keys = top.keys[1:]

		successor, err := st.service.loadSuccessor(ctx, key, level)
		if err != nil {
			return nil, st.fail(err)
		}
		if !successor.Raw() {
			st.stack = append(st.stack, streamFrame{keys: successor.Children, level: level - 1})
			continue
		}
		st.emitted += uint64(len(successor.Data))
		if st.emitted > st.size {
			return nil, st.fail(newError(CodeCorruptNode, "file tree holds more than its size %d", st.size))
		}
		if len(successor.Data) > 0 {
			return successor.Data, nil
		}
	}

	if st.emitted != st.size {
		return nil, st.fail(newError(CodeCorruptNode, "file tree holds %d bytes, size is %d", st.emitted, st.size))
	}
	st.done = true
	return nil, io.EOF
}

func (st *Stream) fail(err error) error {
	st.err = withOp("readStream", "", err)
	return st.err
}

// Reader adapts the stream to io.Reader. Storage calls made by the
// reader use ctx.
func (st *Stream) Reader(ctx context.Context) io.Reader {
	return &streamReader{ctx: ctx, stream: st}
}

// CopyTo copies the remaining chunks to w.
func (st *Stream) CopyTo(ctx context.Context, w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, err := st.Next(ctx)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

type streamReader struct {
	ctx     context.Context
	stream  *Stream
	pending []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		chunk, err := r.stream.Next(r.ctx)
		if err != nil {
			return 0, err
		}
		r.pending = chunk
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
