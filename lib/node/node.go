// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package node

import (
	"fmt"
	"sort"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Kind identifies the variant of a node. The values are stored in the
// node header and in directory entries; changing them breaks the
// format.
type Kind uint8

const (
	KindDict      Kind = 1
	KindFile      Kind = 2
	KindSuccessor Kind = 3
)

// String returns the name used in hooks, logs, and event records.
func (k Kind) String() string {
	switch k {
	case KindDict:
		return "dict"
	case KindFile:
		return "file"
	case KindSuccessor:
		return "successor"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind is the inverse of [Kind.String].
func ParseKind(name string) (Kind, error) {
	switch name {
	case "dict":
		return KindDict, nil
	case "file":
		return KindFile, nil
	case "successor":
		return KindSuccessor, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", name)
	}
}

// Node is implemented by *DictNode, *FileNode and *SuccessorNode.
type Node interface {
	Kind() Kind
}

// Entry is one child of a directory.
type Entry struct {
	Name string
	Key  nodekey.Key
	Kind Kind
}

// DictNode is a directory: a name-ordered list of entries with unique
// names.
type DictNode struct {
	Entries []Entry
}

func (*DictNode) Kind() Kind { return KindDict }

// Lookup returns the entry named name.
func (d *DictNode) Lookup(name string) (Entry, bool) {
	index, found := d.search(name)
	if !found {
		return Entry{}, false
	}
	return d.Entries[index], true
}

// Set inserts entry, or replaces the entry with the same name. Reports
// whether an entry was replaced.
func (d *DictNode) Set(entry Entry) bool {
	index, found := d.search(entry.Name)
	if found {
		d.Entries[index] = entry
		return true
	}
	d.Entries = append(d.Entries, Entry{})
	copy(d.Entries[index+1:], d.Entries[index:])
	d.Entries[index] = entry
	return false
}

// Remove deletes the entry named name. Reports whether it existed.
func (d *DictNode) Remove(name string) bool {
	index, found := d.search(name)
	if !found {
		return false
	}
	d.Entries = append(d.Entries[:index], d.Entries[index+1:]...)
	return true
}

// Clone returns a copy whose entry slice can be edited independently.
func (d *DictNode) Clone() *DictNode {
	return &DictNode{Entries: append([]Entry(nil), d.Entries...)}
}

func (d *DictNode) search(name string) (int, bool) {
	index := sort.Search(len(d.Entries), func(i int) bool {
		return d.Entries[i].Name >= name
	})
	return index, index < len(d.Entries) && d.Entries[index].Name == name
}

// FileNode is the representative node of a file. Exactly one of Data
// and Children is used: Data holds the whole file when it fits in one
// node, otherwise Children lists the successor nodes at Level-1 that
// cover the file in offset order.
type FileNode struct {
	Size        uint64
	ContentType string
	Level       uint8
	Data        []byte
	Children    []nodekey.Key
}

func (*FileNode) Kind() Kind { return KindFile }

// Inline reports whether the file's bytes are stored in the node.
func (f *FileNode) Inline() bool {
	return f.Level == 0
}

// SuccessorNode holds either a raw chunk (Level 0, Data) or pointers
// to successors at Level-1 (Children). Span is the number of file
// bytes reachable from the node.
type SuccessorNode struct {
	Level    uint8
	Span     uint64
	Data     []byte
	Children []nodekey.Key
}

func (*SuccessorNode) Kind() Kind { return KindSuccessor }

// Raw reports whether the node is a leaf chunk.
func (s *SuccessorNode) Raw() bool {
	return s.Level == 0
}
