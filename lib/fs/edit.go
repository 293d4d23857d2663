// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"slices"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

type editOp uint8

const (
	// editNone marks a directory that only has edits below it.
	editNone editOp = iota

	// editSet inserts or replaces the entry.
	editSet

	// editDelete removes the entry, which must exist.
	editDelete

	// editEnsureDir creates an empty directory unless one exists.
	editEnsureDir
)

// editTree is a trie of path segments describing every change one
// operation makes. Applying it rebuilds each touched directory exactly
// once, however many edits land in it.
type editTree struct {
	op editOp

	// entry is the new entry for editSet. Its Name is filled in when
	// the edit is applied.
	entry node.Entry

	// dirConflict, when set, is the error code for an editSet that
	// would replace an existing directory.
	dirConflict Code

	// create means a missing directory at this position is created
	// rather than reported as NOT_FOUND.
	create bool

	// replaced reports, after apply, whether editSet found an existing
	// entry.
	replaced bool

	path     []string
	children map[string]*editTree
}

func newEditTree() *editTree {
	return &editTree{}
}

// add registers an edit at segments and returns its trie node. Two
// edits on the same path, or an edit on a path below another edit,
// conflict.
func (t *editTree) add(segments []string, op editOp) (*editTree, error) {
	current := t
	for i, segment := range segments {
		if current.op != editNone {
			return nil, newError(CodeInvalidArgument, "%s conflicts with an edit of %s",
				joinPath(segments), joinPath(segments[:i]))
		}
		child, ok := current.children[segment]
		if !ok {
			if current.children == nil {
				current.children = make(map[string]*editTree)
			}
			child = &editTree{path: segments[:i+1]}
			current.children[segment] = child
		}
		current = child
	}
	if current.op != editNone || len(current.children) > 0 {
		return nil, newError(CodeInvalidArgument, "%s is edited more than once", joinPath(segments))
	}
	current.op = op

	if op == editSet || op == editEnsureDir {
		ancestor := t
		for _, segment := range segments[:len(segments)-1] {
			ancestor = ancestor.children[segment]
			ancestor.create = true
		}
	}
	return current, nil
}

// check walks t against dir and reports the error apply would return,
// without storing anything.
func (s *Service) check(ctx context.Context, dir *node.DictNode, t *editTree) error {
	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		edit := t.children[name]
		existing, exists := dir.Lookup(name)
		path := joinPath(edit.path)

		switch edit.op {
		case editSet:
			if exists && existing.Kind == node.KindDict && edit.dirConflict != "" {
				return newError(edit.dirConflict, "%s is a directory", path)
			}

		case editDelete:
			if !exists {
				return newError(CodeNotFound, "%s does not exist", path)
			}

		case editEnsureDir:
			if exists && existing.Kind != node.KindDict {
				return newError(CodeAlreadyExists, "%s is a file", path)
			}

		case editNone:
			child := &node.DictNode{}
			switch {
			case exists && existing.Kind != node.KindDict:
				return newError(CodeNotADirectory, "%s is a file", path)
			case exists:
				loaded, err := s.loadDict(ctx, existing.Key)
				if err != nil {
					return err
				}
				child = loaded
			case !edit.create:
				return newError(CodeNotFound, "%s does not exist", path)
			}
			if err := s.check(ctx, child, edit); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply rebuilds dir with the edits in t and stores the result,
// returning the new directory key.
func (ss *session) apply(ctx context.Context, dir *node.DictNode, t *editTree) (nodekey.Key, error) {
	edited := dir.Clone()

	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		edit := t.children[name]
		existing, exists := edited.Lookup(name)
		path := joinPath(edit.path)

		switch edit.op {
		case editSet:
			if exists && existing.Kind == node.KindDict && edit.dirConflict != "" {
				return nodekey.Key{}, newError(edit.dirConflict, "%s is a directory", path)
			}
			entry := edit.entry
			entry.Name = name
			edit.replaced = edited.Set(entry)

		case editDelete:
			if !edited.Remove(name) {
				return nodekey.Key{}, newError(CodeNotFound, "%s does not exist", path)
			}

		case editEnsureDir:
			if exists {
				if existing.Kind != node.KindDict {
					return nodekey.Key{}, newError(CodeAlreadyExists, "%s is a file", path)
				}
				continue
			}
			key, err := ss.put(ctx, &node.DictNode{})
			if err != nil {
				return nodekey.Key{}, err
			}
			edited.Set(node.Entry{Name: name, Key: key, Kind: node.KindDict})

		case editNone:
			child := &node.DictNode{}
			switch {
			case exists && existing.Kind != node.KindDict:
				return nodekey.Key{}, newError(CodeNotADirectory, "%s is a file", path)
			case exists:
				loaded, err := ss.service.loadDict(ctx, existing.Key)
				if err != nil {
					return nodekey.Key{}, err
				}
				child = loaded
			case !edit.create:
				return nodekey.Key{}, newError(CodeNotFound, "%s does not exist", path)
			}
			key, err := ss.apply(ctx, child, edit)
			if err != nil {
				return nodekey.Key{}, err
			}
			edited.Set(node.Entry{Name: name, Key: key, Kind: node.KindDict})
		}
	}

	return ss.put(ctx, edited)
}
