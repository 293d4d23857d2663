// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
)

// Content is file data supplied inline with a rewrite.
type Content struct {
	Data        []byte
	ContentType string
}

// Link names a node already in storage.
type Link struct {
	Key  nodekey.Key
	Kind node.Kind
}

// RewriteEntry sets Path from exactly one source. Existing entries at
// Path, files or directories, are replaced; Dir leaves an existing
// directory as is.
type RewriteEntry struct {
	Path string

	// Content writes a new file.
	Content *Content

	// From shares the entry at this path of the input root.
	From string

	// Link inserts an existing stored node.
	Link *Link

	// Dir ensures a directory exists at Path.
	Dir bool
}

func (e RewriteEntry) sources() int {
	count := 0
	if e.Content != nil {
		count++
	}
	if e.From != "" {
		count++
	}
	if e.Link != nil {
		count++
	}
	if e.Dir {
		count++
	}
	return count
}

// Rewrite applies entries and deletes in one copy-on-write pass and
// returns a single new root. Each path may appear once, and no path
// may lie below another path of the same batch. The batch is checked
// before anything is stored. Every delete must name an existing entry.
// From paths resolve against the input root, not against earlier
// entries of the batch.
func (s *Service) Rewrite(ctx context.Context, root nodekey.Key, entries []RewriteEntry, deletes []string) (*MutationResult, error) {
	result, err := s.mutate(ctx, "rewrite", root, "", func(ss *session, rootDir *node.DictNode, edits *editTree) error {
		return s.rewrite(ctx, ss, root, rootDir, edits, entries, deletes)
	})
	return result, withOp("rewrite", "", err)
}

func (s *Service) rewrite(ctx context.Context, ss *session, root nodekey.Key, rootDir *node.DictNode, edits *editTree, entries []RewriteEntry, deletes []string) error {
	targets := make([]*editTree, len(entries))
	for i, entry := range entries {
		if entry.sources() != 1 {
			return newError(CodeInvalidArgument, "entry %d (%s) must have exactly one source", i, entry.Path)
		}
		segments, err := splitPath(entry.Path)
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			return newError(CodeInvalidPath, "entry %d targets the root directory", i)
		}
		if entry.Content != nil {
			if err := s.checkContent(entry.Content.Data, entry.Content.ContentType); err != nil {
				return err
			}
		}
		op := editSet
		if entry.Dir {
			op = editEnsureDir
		}
		if targets[i], err = edits.add(segments, op); err != nil {
			return err
		}
	}
	for _, path := range deletes {
		segments, err := splitPath(path)
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			return newError(CodeInvalidPath, "cannot delete the root directory")
		}
		if _, err := edits.add(segments, editDelete); err != nil {
			return err
		}
	}

	// Resolve references before writing any content, so a bad
	// reference stores nothing.
	for i, entry := range entries {
		switch {
		case entry.From != "":
			fromSegments, err := splitPath(entry.From)
			if err != nil {
				return err
			}
			source, err := s.lookup(ctx, root, rootDir, fromSegments)
			if err != nil {
				return err
			}
			targets[i].entry = node.Entry{Key: source.Key, Kind: source.Kind}
		case entry.Link != nil:
			if err := s.checkLink(ctx, *entry.Link); err != nil {
				return err
			}
			targets[i].entry = node.Entry{Key: entry.Link.Key, Kind: entry.Link.Kind}
		}
	}
	if err := s.check(ctx, rootDir, edits); err != nil {
		return err
	}

	for i, entry := range entries {
		if entry.Content == nil {
			continue
		}
		key, err := ss.writeFile(ctx, entry.Content.Data, entry.Content.ContentType)
		if err != nil {
			return err
		}
		targets[i].entry = node.Entry{Key: key, Kind: node.KindFile}
	}
	return nil
}

// checkLink verifies a linked node exists and is what the link claims.
func (s *Service) checkLink(ctx context.Context, link Link) error {
	if link.Kind != node.KindDict && link.Kind != node.KindFile {
		return newError(CodeInvalidArgument, "cannot link a %s node into a directory", link.Kind)
	}
	loaded, err := s.loadNode(ctx, link.Key)
	if err != nil {
		if CodeOf(err) == CodeNotFound {
			return newError(CodeNotFound, "linked node %s does not exist", link.Key.ID())
		}
		return err
	}
	if loaded.Kind() != link.Kind {
		return newError(CodeInvalidArgument, "linked node %s is a %s, not a %s", link.Key.ID(), loaded.Kind(), link.Kind)
	}
	return nil
}
