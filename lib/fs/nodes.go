// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"errors"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

// fetch reads the encoded node stored under key.
func (s *Service) fetch(ctx context.Context, key nodekey.Key) ([]byte, error) {
	data, err := s.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &Error{Code: CodeNotFound, Err: err}
	}
	if errors.Is(err, storage.ErrCorrupt) {
		return nil, &Error{Code: CodeCorruptNode, Err: err}
	}
	if err != nil {
		return nil, &Error{Code: CodeStorage, Err: err}
	}
	return data, nil
}

func (s *Service) loadNode(ctx context.Context, key nodekey.Key) (node.Node, error) {
	data, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	decoded, err := node.Decode(data)
	if err != nil {
		return nil, newError(CodeCorruptNode, "node %s: %w", key, err)
	}
	return decoded, nil
}

// loadDict loads a node that the tree says is a directory.
func (s *Service) loadDict(ctx context.Context, key nodekey.Key) (*node.DictNode, error) {
	loaded, err := s.loadNode(ctx, key)
	if err != nil {
		return nil, err
	}
	dict, ok := loaded.(*node.DictNode)
	if !ok {
		return nil, newError(CodeCorruptNode, "node %s is a %s, expected dict", key, loaded.Kind())
	}
	return dict, nil
}

// loadRoot loads the directory a caller named as a root. A missing
// root is NOT_FOUND and a non-directory root is NOT_A_DIRECTORY, since
// both come from caller input rather than from stored references.
func (s *Service) loadRoot(ctx context.Context, root nodekey.Key) (*node.DictNode, error) {
	loaded, err := s.loadNode(ctx, root)
	if err != nil {
		if CodeOf(err) == CodeNotFound {
			return nil, newError(CodeNotFound, "root %s does not exist", root.ID())
		}
		return nil, err
	}
	dict, ok := loaded.(*node.DictNode)
	if !ok {
		return nil, newError(CodeNotADirectory, "root %s is a %s node", root.ID(), loaded.Kind())
	}
	return dict, nil
}

func (s *Service) loadFile(ctx context.Context, key nodekey.Key) (*node.FileNode, error) {
	loaded, err := s.loadNode(ctx, key)
	if err != nil {
		return nil, err
	}
	file, ok := loaded.(*node.FileNode)
	if !ok {
		return nil, newError(CodeCorruptNode, "node %s is a %s, expected file", key, loaded.Kind())
	}
	return file, nil
}

// loadSuccessor loads a successor and checks it sits at level, the
// height its parent's pointer list promises.
func (s *Service) loadSuccessor(ctx context.Context, key nodekey.Key, level uint8) (*node.SuccessorNode, error) {
	loaded, err := s.loadNode(ctx, key)
	if err != nil {
		return nil, err
	}
	successor, ok := loaded.(*node.SuccessorNode)
	if !ok {
		return nil, newError(CodeCorruptNode, "node %s is a %s, expected successor", key, loaded.Kind())
	}
	if successor.Level != level {
		return nil, newError(CodeCorruptNode, "successor %s is at level %d, expected %d", key, successor.Level, level)
	}
	return successor, nil
}

// session tracks the nodes one operation persists.
type session struct {
	service *Service
	stored  int
}

func (s *Service) newSession() *session {
	return &session{service: s}
}

// put encodes, keys and persists n, skipping the write (and the hook)
// when storage already holds the key.
func (ss *session) put(ctx context.Context, n node.Node) (nodekey.Key, error) {
	s := ss.service
	data, err := node.Encode(n)
	if err != nil {
		return nodekey.Key{}, &Error{Code: CodeInvalidArgument, Err: err}
	}
	if len(data) > s.nodeLimit {
		if n.Kind() == node.KindDict {
			return nodekey.Key{}, newError(CodeDirectoryFull,
				"directory of %d entries encodes to %d bytes, limit is %d",
				len(n.(*node.DictNode).Entries), len(data), s.nodeLimit)
		}
		return nodekey.Key{}, newError(CodeInvalidArgument, "%s node of %d bytes exceeds limit %d", n.Kind(), len(data), s.nodeLimit)
	}

	key := s.keys.ComputeKey(data)
	present, err := s.storage.Has(ctx, key)
	if err != nil {
		return nodekey.Key{}, &Error{Code: CodeStorage, Err: err}
	}
	if present {
		return key, nil
	}
	if err := s.storage.Put(ctx, key, data); err != nil {
		return nodekey.Key{}, &Error{Code: CodeStorage, Err: err}
	}
	ss.stored++
	if s.onNodeStored != nil {
		s.onNodeStored(NodeStored{
			Kind:       n.Kind(),
			Key:        key,
			StorageKey: key.String(),
			Size:       len(data),
		})
	}
	return key, nil
}
