// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

const formatVersion = 1

// magic is the 3-byte node signature. The format version follows it.
var magic = [3]byte{'C', 'A', 'S'}

// flagPointers marks a payload made of child keys.
const flagPointers = 1 << 0

// ErrMalformed is wrapped by every structural decoding error.
var ErrMalformed = errors.New("malformed node")

// ErrUnexpectedKind is returned by the kind-specific decoders when the
// buffer holds a well-formed node of another kind.
var ErrUnexpectedKind = errors.New("unexpected node kind")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// header is the decoded fixed framing of a node.
type header struct {
	kind  Kind
	flags uint8
	level uint8
	count uint32
	span  uint64
}

func putHeader(buffer []byte, h header) {
	copy(buffer[0:3], magic[:])
	buffer[3] = formatVersion
	buffer[4] = byte(h.kind)
	buffer[5] = h.flags
	buffer[6] = h.level
	buffer[7] = 0
	binary.LittleEndian.PutUint32(buffer[8:12], h.count)
	binary.LittleEndian.PutUint32(buffer[12:16], 0)
	binary.LittleEndian.PutUint64(buffer[16:24], h.span)
}

func readHeader(data []byte) (header, error) {
	if len(data) < HeaderSize {
		return header{}, malformed("truncated header: %d bytes, need %d", len(data), HeaderSize)
	}
	if [3]byte(data[0:3]) != magic {
		return header{}, malformed("bad magic %q", data[0:3])
	}
	if data[3] != formatVersion {
		return header{}, malformed("unsupported format version %d", data[3])
	}
	if data[7] != 0 || binary.LittleEndian.Uint32(data[12:16]) != 0 {
		return header{}, malformed("reserved header bytes are not zero")
	}
	return header{
		kind:  Kind(data[4]),
		flags: data[5],
		level: data[6],
		count: binary.LittleEndian.Uint32(data[8:12]),
		span:  binary.LittleEndian.Uint64(data[16:24]),
	}, nil
}

// Encode serializes n. The result is deterministic: equal nodes always
// encode to equal bytes.
func Encode(n Node) ([]byte, error) {
	switch typed := n.(type) {
	case *DictNode:
		return encodeDict(typed)
	case *FileNode:
		return encodeFile(typed)
	case *SuccessorNode:
		return encodeSuccessor(typed)
	default:
		return nil, fmt.Errorf("cannot encode node of type %T", n)
	}
}

// EmptyDict returns the encoding of a directory with no entries.
func EmptyDict() []byte {
	buffer := make([]byte, HeaderSize)
	putHeader(buffer, header{kind: KindDict})
	return buffer
}

func encodeDict(d *DictNode) ([]byte, error) {
	size := HeaderSize
	for i, entry := range d.Entries {
		if len(entry.Name) == 0 || len(entry.Name) > MaxNameLength {
			return nil, fmt.Errorf("entry %d: name length %d outside [1, %d]", i, len(entry.Name), MaxNameLength)
		}
		if entry.Kind != KindDict && entry.Kind != KindFile {
			return nil, fmt.Errorf("entry %q: directories cannot hold %s nodes", entry.Name, entry.Kind)
		}
		if i > 0 && d.Entries[i-1].Name >= entry.Name {
			return nil, fmt.Errorf("entry %q: names must be unique and sorted", entry.Name)
		}
		size += EntrySize(entry.Name)
	}
	if len(d.Entries) > math.MaxUint32 {
		return nil, fmt.Errorf("directory has too many entries: %d", len(d.Entries))
	}

	buffer := make([]byte, size)
	putHeader(buffer, header{kind: KindDict, count: uint32(len(d.Entries))})

	offset := HeaderSize
	for _, entry := range d.Entries {
		copy(buffer[offset:], entry.Key[:])
		offset += KeySize
		buffer[offset] = byte(entry.Kind)
		buffer[offset+1] = byte(len(entry.Name))
		offset += 2
		offset += copy(buffer[offset:], entry.Name)
	}
	return buffer, nil
}

func encodeFile(f *FileNode) ([]byte, error) {
	if len(f.ContentType) > MaxContentTypeLength {
		return nil, fmt.Errorf("content type is %d bytes, maximum is %d", len(f.ContentType), MaxContentTypeLength)
	}

	h := header{kind: KindFile, level: f.Level, span: f.Size}
	var payload int
	if f.Level == 0 {
		if f.Children != nil {
			return nil, fmt.Errorf("inline file node cannot have children")
		}
		if uint64(len(f.Data)) != f.Size {
			return nil, fmt.Errorf("inline file node holds %d bytes but declares size %d", len(f.Data), f.Size)
		}
		h.count = uint32(len(f.Data))
		payload = len(f.Data)
	} else {
		if len(f.Children) == 0 || f.Data != nil {
			return nil, fmt.Errorf("level %d file node needs children and no inline data", f.Level)
		}
		h.flags = flagPointers
		h.count = uint32(len(f.Children))
		payload = len(f.Children) * KeySize
	}

	buffer := make([]byte, HeaderSize+FileInfoSize+payload)
	putHeader(buffer, h)

	info := buffer[HeaderSize : HeaderSize+FileInfoSize]
	binary.LittleEndian.PutUint64(info[0:8], f.Size)
	binary.LittleEndian.PutUint16(info[8:10], uint16(len(f.ContentType)))
	copy(info[16:], f.ContentType)

	body := buffer[HeaderSize+FileInfoSize:]
	if f.Level == 0 {
		copy(body, f.Data)
	} else {
		putKeys(body, f.Children)
	}
	return buffer, nil
}

func encodeSuccessor(s *SuccessorNode) ([]byte, error) {
	h := header{kind: KindSuccessor, level: s.Level, span: s.Span}
	var payload int
	if s.Level == 0 {
		if s.Children != nil {
			return nil, fmt.Errorf("raw successor node cannot have children")
		}
		if uint64(len(s.Data)) != s.Span {
			return nil, fmt.Errorf("raw successor node holds %d bytes but declares span %d", len(s.Data), s.Span)
		}
		h.count = uint32(len(s.Data))
		payload = len(s.Data)
	} else {
		if len(s.Children) == 0 || s.Data != nil {
			return nil, fmt.Errorf("level %d successor node needs children and no raw data", s.Level)
		}
		h.flags = flagPointers
		h.count = uint32(len(s.Children))
		payload = len(s.Children) * KeySize
	}

	buffer := make([]byte, HeaderSize+payload)
	putHeader(buffer, h)
	if s.Level == 0 {
		copy(buffer[HeaderSize:], s.Data)
	} else {
		putKeys(buffer[HeaderSize:], s.Children)
	}
	return buffer, nil
}

func putKeys(buffer []byte, keys []nodekey.Key) {
	for i, key := range keys {
		copy(buffer[i*KeySize:], key[:])
	}
}

// Decode parses an encoded node. Byte slices in the result (inline
// data, raw chunks) alias data.
func Decode(data []byte) (Node, error) {
	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	switch h.kind {
	case KindDict:
		return decodeDict(h, data)
	case KindFile:
		return decodeFile(h, data)
	case KindSuccessor:
		return decodeSuccessor(h, data)
	default:
		return nil, malformed("unknown kind %d", uint8(h.kind))
	}
}

// DecodeDict decodes data and requires a directory node.
func DecodeDict(data []byte) (*DictNode, error) {
	n, err := Decode(data)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*DictNode)
	if !ok {
		return nil, fmt.Errorf("%w: want dict, found %s", ErrUnexpectedKind, n.Kind())
	}
	return d, nil
}

// DecodeFile decodes data and requires a file node.
func DecodeFile(data []byte) (*FileNode, error) {
	n, err := Decode(data)
	if err != nil {
		return nil, err
	}
	f, ok := n.(*FileNode)
	if !ok {
		return nil, fmt.Errorf("%w: want file, found %s", ErrUnexpectedKind, n.Kind())
	}
	return f, nil
}

// DecodeSuccessor decodes data and requires a successor node.
func DecodeSuccessor(data []byte) (*SuccessorNode, error) {
	n, err := Decode(data)
	if err != nil {
		return nil, err
	}
	s, ok := n.(*SuccessorNode)
	if !ok {
		return nil, fmt.Errorf("%w: want successor, found %s", ErrUnexpectedKind, n.Kind())
	}
	return s, nil
}

func decodeDict(h header, data []byte) (*DictNode, error) {
	if h.flags != 0 || h.level != 0 || h.span != 0 {
		return nil, malformed("dict header has flags %#x, level %d, span %d", h.flags, h.level, h.span)
	}

	// Every entry needs at least entryOverhead+1 bytes, which bounds
	// the allocation for hostile counts.
	body := data[HeaderSize:]
	if uint64(h.count)*(entryOverhead+1) > uint64(len(body)) {
		return nil, malformed("dict declares %d entries in %d bytes", h.count, len(body))
	}

	d := &DictNode{Entries: make([]Entry, 0, h.count)}
	offset := 0
	for i := uint32(0); i < h.count; i++ {
		if len(body)-offset < entryOverhead {
			return nil, malformed("dict entry %d truncated", i)
		}
		var entry Entry
		copy(entry.Key[:], body[offset:offset+KeySize])
		entry.Kind = Kind(body[offset+KeySize])
		nameLength := int(body[offset+KeySize+1])
		offset += entryOverhead

		if entry.Kind != KindDict && entry.Kind != KindFile {
			return nil, malformed("dict entry %d has child kind %d", i, uint8(entry.Kind))
		}
		if nameLength == 0 {
			return nil, malformed("dict entry %d has an empty name", i)
		}
		if len(body)-offset < nameLength {
			return nil, malformed("dict entry %d name truncated", i)
		}
		entry.Name = string(body[offset : offset+nameLength])
		offset += nameLength

		if i > 0 && d.Entries[i-1].Name >= entry.Name {
			return nil, malformed("dict entry %q is out of order or duplicated", entry.Name)
		}
		d.Entries = append(d.Entries, entry)
	}
	if offset != len(body) {
		return nil, malformed("dict has %d trailing bytes", len(body)-offset)
	}
	return d, nil
}

func decodeFile(h header, data []byte) (*FileNode, error) {
	if len(data) < HeaderSize+FileInfoSize {
		return nil, malformed("file node truncated: %d bytes", len(data))
	}
	info := data[HeaderSize : HeaderSize+FileInfoSize]
	size := binary.LittleEndian.Uint64(info[0:8])
	contentTypeLength := int(binary.LittleEndian.Uint16(info[8:10]))
	if size != h.span {
		return nil, malformed("file size %d disagrees with span %d", size, h.span)
	}
	if contentTypeLength > MaxContentTypeLength {
		return nil, malformed("content type length %d exceeds %d", contentTypeLength, MaxContentTypeLength)
	}
	for _, b := range info[10:16] {
		if b != 0 {
			return nil, malformed("reserved file info bytes are not zero")
		}
	}
	for _, b := range info[16+contentTypeLength:] {
		if b != 0 {
			return nil, malformed("content type padding is not zero")
		}
	}

	f := &FileNode{
		Size:        size,
		ContentType: string(info[16 : 16+contentTypeLength]),
		Level:       h.level,
	}
	body := data[HeaderSize+FileInfoSize:]
	switch h.flags {
	case 0:
		if h.level != 0 {
			return nil, malformed("inline file node has level %d", h.level)
		}
		if uint64(len(body)) != uint64(h.count) || uint64(h.count) != size {
			return nil, malformed("inline file node: count %d, body %d bytes, size %d", h.count, len(body), size)
		}
		f.Data = body
	case flagPointers:
		children, err := readKeys(h, body)
		if err != nil {
			return nil, err
		}
		if uint64(len(children)) > size {
			return nil, malformed("file node has %d children for %d bytes", len(children), size)
		}
		f.Children = children
	default:
		return nil, malformed("file node has flags %#x", h.flags)
	}
	return f, nil
}

func decodeSuccessor(h header, data []byte) (*SuccessorNode, error) {
	s := &SuccessorNode{Level: h.level, Span: h.span}
	body := data[HeaderSize:]
	switch h.flags {
	case 0:
		if h.level != 0 {
			return nil, malformed("raw successor node has level %d", h.level)
		}
		if uint64(len(body)) != uint64(h.count) || uint64(h.count) != h.span {
			return nil, malformed("raw successor node: count %d, body %d bytes, span %d", h.count, len(body), h.span)
		}
		s.Data = body
	case flagPointers:
		children, err := readKeys(h, body)
		if err != nil {
			return nil, err
		}
		if uint64(len(children)) > h.span {
			return nil, malformed("successor node has %d children for span %d", len(children), h.span)
		}
		s.Children = children
	default:
		return nil, malformed("successor node has flags %#x", h.flags)
	}
	return s, nil
}

func readKeys(h header, body []byte) ([]nodekey.Key, error) {
	if h.level == 0 {
		return nil, malformed("%s pointer list at level 0", h.kind)
	}
	if h.count == 0 {
		return nil, malformed("%s pointer list is empty", h.kind)
	}
	if uint64(len(body)) != uint64(h.count)*KeySize {
		return nil, malformed("%s pointer list: count %d, body %d bytes", h.kind, h.count, len(body))
	}
	keys := make([]nodekey.Key, h.count)
	for i := range keys {
		copy(keys[i][:], body[i*KeySize:])
	}
	return keys, nil
}
