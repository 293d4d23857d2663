// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/bureau-foundation/casfs/lib/node"
	"github.com/bureau-foundation/casfs/lib/nodekey"
	"github.com/bureau-foundation/casfs/lib/storage"
)

const (
	// DefaultListLimit is the page size when ListOptions.Limit is zero.
	DefaultListLimit = 100

	// MaxListLimit caps ListOptions.Limit.
	MaxListLimit = 1000
)

// Service runs file-system operations against a storage provider. It
// holds only configuration, so one Service can serve any number of
// concurrent callers and roots.
type Service struct {
	storage      storage.Provider
	keys         nodekey.Provider
	nodeLimit    int
	maxFileSize  int64
	onNodeStored func(NodeStored)
	logger       *slog.Logger
}

// New validates options and returns a Service.
func New(options Options) (*Service, error) {
	options, err := options.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Service{
		storage:      options.Storage,
		keys:         options.Keys,
		nodeLimit:    options.NodeLimit,
		maxFileSize:  options.MaxFileSize,
		onNodeStored: options.OnNodeStored,
		logger:       options.Logger,
	}, nil
}

// NodeLimit returns the configured node size limit.
func (s *Service) NodeLimit() int { return s.nodeLimit }

// StatResult describes a file or directory.
type StatResult struct {
	Type node.Kind
	Key  nodekey.Key

	// Size and ContentType are set for files.
	Size        uint64
	ContentType string

	// ChildCount is set for directories.
	ChildCount int
}

// ListEntry is one directory entry returned by List.
type ListEntry struct {
	Name string
	Type node.Kind
	Key  nodekey.Key

	// Size and ContentType are set for files.
	Size        uint64
	ContentType string
}

// ListOptions pages through a directory.
type ListOptions struct {
	// Limit is the maximum number of entries returned. Zero means
	// DefaultListLimit; values above MaxListLimit are clamped.
	Limit int

	// Cursor is the NextCursor of the previous page.
	Cursor string
}

// ListResult is one page of a directory listing.
type ListResult struct {
	Entries []ListEntry

	// NextCursor is empty on the last page.
	NextCursor string
}

// ReadResult is a whole file.
type ReadResult struct {
	Data        []byte
	Size        uint64
	ContentType string
}

// FileInfo describes a file created by a write.
type FileInfo struct {
	Key         nodekey.Key
	Size        uint64
	ContentType string
}

// WriteResult is returned by Write.
type WriteResult struct {
	File    FileInfo
	NewRoot nodekey.Key

	// Created is false when an existing file was replaced.
	Created bool

	// NodesStored counts nodes this call persisted; nodes already in
	// storage are not counted.
	NodesStored int
}

// MutationResult is returned by the structural mutations.
type MutationResult struct {
	NewRoot     nodekey.Key
	NodesStored int
}

// EmptyRoot stores the empty directory and returns its key.
func (s *Service) EmptyRoot(ctx context.Context) (nodekey.Key, error) {
	key, err := s.newSession().put(ctx, &node.DictNode{})
	return key, withOp("init", "", err)
}

// lookup resolves segments below rootDir. The root itself resolves to
// a dict entry with an empty name.
func (s *Service) lookup(ctx context.Context, root nodekey.Key, rootDir *node.DictNode, segments []string) (node.Entry, error) {
	if len(segments) == 0 {
		return node.Entry{Key: root, Kind: node.KindDict}, nil
	}
	dir := rootDir
	last := len(segments) - 1
	for i, segment := range segments[:last] {
		entry, ok := dir.Lookup(segment)
		if !ok {
			return node.Entry{}, newError(CodeNotFound, "%s does not exist", joinPath(segments[:i+1]))
		}
		if entry.Kind != node.KindDict {
			return node.Entry{}, newError(CodeNotADirectory, "%s is a file", joinPath(segments[:i+1]))
		}
		next, err := s.loadDict(ctx, entry.Key)
		if err != nil {
			return node.Entry{}, err
		}
		dir = next
	}
	entry, ok := dir.Lookup(segments[last])
	if !ok {
		return node.Entry{}, newError(CodeNotFound, "%s does not exist", joinPath(segments))
	}
	return entry, nil
}

// resolve validates path and looks it up in root.
func (s *Service) resolve(ctx context.Context, root nodekey.Key, path string) (node.Entry, error) {
	segments, err := splitPath(path)
	if err != nil {
		return node.Entry{}, err
	}
	rootDir, err := s.loadRoot(ctx, root)
	if err != nil {
		return node.Entry{}, err
	}
	return s.lookup(ctx, root, rootDir, segments)
}

// resolveFile resolves path and loads the file node it names.
func (s *Service) resolveFile(ctx context.Context, root nodekey.Key, path string) (*node.FileNode, error) {
	entry, err := s.resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}
	if entry.Kind != node.KindFile {
		return nil, newError(CodeNotAFile, "%s is a directory", path)
	}
	return s.loadFile(ctx, entry.Key)
}

// Stat describes the file or directory at path.
func (s *Service) Stat(ctx context.Context, root nodekey.Key, path string) (*StatResult, error) {
	entry, err := s.resolve(ctx, root, path)
	if err != nil {
		return nil, withOp("stat", path, err)
	}
	result := &StatResult{Type: entry.Kind, Key: entry.Key}
	switch entry.Kind {
	case node.KindDict:
		dir, err := s.loadDict(ctx, entry.Key)
		if err != nil {
			return nil, withOp("stat", path, err)
		}
		result.ChildCount = len(dir.Entries)
	case node.KindFile:
		file, err := s.loadFile(ctx, entry.Key)
		if err != nil {
			return nil, withOp("stat", path, err)
		}
		result.Size = file.Size
		result.ContentType = file.ContentType
	}
	return result, nil
}

// List returns one page of the directory at path, in name order.
func (s *Service) List(ctx context.Context, root nodekey.Key, path string, options ListOptions) (*ListResult, error) {
	result, err := s.list(ctx, root, path, options)
	return result, withOp("ls", path, err)
}

func (s *Service) list(ctx context.Context, root nodekey.Key, path string, options ListOptions) (*ListResult, error) {
	limit := options.Limit
	switch {
	case limit < 0:
		return nil, newError(CodeInvalidArgument, "negative limit %d", limit)
	case limit == 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	var after string
	if options.Cursor != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(options.Cursor)
		if err != nil || len(decoded) == 0 {
			return nil, newError(CodeInvalidArgument, "malformed cursor %q", options.Cursor)
		}
		after = string(decoded)
	}

	entry, err := s.resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}
	if entry.Kind != node.KindDict {
		return nil, newError(CodeNotADirectory, "%s is a file", path)
	}
	dir, err := s.loadDict(ctx, entry.Key)
	if err != nil {
		return nil, err
	}

	start := 0
	if after != "" {
		start = sort.Search(len(dir.Entries), func(i int) bool {
			return dir.Entries[i].Name > after
		})
	}
	end := min(start+limit, len(dir.Entries))

	result := &ListResult{Entries: make([]ListEntry, 0, end-start)}
	for _, child := range dir.Entries[start:end] {
		listed := ListEntry{Name: child.Name, Type: child.Kind, Key: child.Key}
		if child.Kind == node.KindFile {
			file, err := s.loadFile(ctx, child.Key)
			if err != nil {
				return nil, err
			}
			listed.Size = file.Size
			listed.ContentType = file.ContentType
		}
		result.Entries = append(result.Entries, listed)
	}
	if end < len(dir.Entries) {
		result.NextCursor = base64.RawURLEncoding.EncodeToString([]byte(dir.Entries[end-1].Name))
	}
	return result, nil
}

// Read returns the whole file at path.
func (s *Service) Read(ctx context.Context, root nodekey.Key, path string) (*ReadResult, error) {
	file, err := s.resolveFile(ctx, root, path)
	if err != nil {
		return nil, withOp("read", path, err)
	}

	// The recorded size is only trusted up to a bound until the chunks
	// confirm it.
	const maxPreallocation = 64 << 20
	data := make([]byte, 0, min(file.Size, maxPreallocation))
	stream := s.newStream(file)
	for {
		chunk, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, withOp("read", path, err)
		}
		data = append(data, chunk...)
	}
	return &ReadResult{Data: data, Size: file.Size, ContentType: file.ContentType}, nil
}

// ReadStream opens the file at path for chunked reading.
func (s *Service) ReadStream(ctx context.Context, root nodekey.Key, path string) (*Stream, error) {
	file, err := s.resolveFile(ctx, root, path)
	if err != nil {
		return nil, withOp("readStream", path, err)
	}
	return s.newStream(file), nil
}

// ReadAt reads len(dest) bytes of the file at path starting at offset,
// with io.ReaderAt semantics. Only the successors covering the range
// are fetched.
func (s *Service) ReadAt(ctx context.Context, root nodekey.Key, path string, dest []byte, offset int64) (int, error) {
	file, err := s.resolveFile(ctx, root, path)
	if err != nil {
		return 0, withOp("readAt", path, err)
	}
	n, err := s.readFileAt(ctx, file, dest, offset)
	if err != nil && err != io.EOF {
		return n, withOp("readAt", path, err)
	}
	return n, err
}

// Write stores data as the file at path, creating missing parent
// directories, and returns the new root.
func (s *Service) Write(ctx context.Context, root nodekey.Key, path string, data []byte, contentType string) (*WriteResult, error) {
	result, err := s.write(ctx, root, path, data, contentType)
	if err != nil {
		return nil, withOp("write", path, err)
	}
	s.logger.Debug("write",
		"path", path,
		"root", root.ID(),
		"new_root", result.NewRoot.ID(),
		"size", len(data),
		"created", result.Created,
		"nodes_stored", result.NodesStored,
	)
	return result, nil
}

func (s *Service) write(ctx context.Context, root nodekey.Key, path string, data []byte, contentType string) (*WriteResult, error) {
	if err := s.checkContent(data, contentType); err != nil {
		return nil, err
	}
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, newError(CodeInvalidPath, "cannot write to the root directory")
	}
	rootDir, err := s.loadRoot(ctx, root)
	if err != nil {
		return nil, err
	}

	edits := newEditTree()
	target, err := edits.add(segments, editSet)
	if err != nil {
		return nil, err
	}
	target.dirConflict = CodeNotAFile

	ss := s.newSession()
	fileKey, err := ss.writeFile(ctx, data, contentType)
	if err != nil {
		return nil, err
	}
	target.entry = node.Entry{Key: fileKey, Kind: node.KindFile}

	newRoot, err := ss.apply(ctx, rootDir, edits)
	if err != nil {
		return nil, err
	}
	return &WriteResult{
		File:        FileInfo{Key: fileKey, Size: uint64(len(data)), ContentType: contentType},
		NewRoot:     newRoot,
		Created:     !target.replaced,
		NodesStored: ss.stored,
	}, nil
}

// checkContent enforces the limits a payload must meet before any of
// it is stored.
func (s *Service) checkContent(data []byte, contentType string) error {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return newError(CodeFileTooLarge, "payload of %d bytes exceeds the %d byte limit", len(data), s.maxFileSize)
	}
	if len(contentType) > node.MaxContentTypeLength {
		return newError(CodeInvalidArgument, "content type of %d bytes exceeds %d", len(contentType), node.MaxContentTypeLength)
	}
	return nil
}

// Mkdir creates an empty directory at path, and any missing parents.
// An existing directory is left as is.
func (s *Service) Mkdir(ctx context.Context, root nodekey.Key, path string) (*MutationResult, error) {
	result, err := s.mutate(ctx, "mkdir", root, path, func(_ *session, _ *node.DictNode, edits *editTree) error {
		segments, err := splitPath(path)
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			return nil
		}
		_, err = edits.add(segments, editEnsureDir)
		return err
	})
	return result, withOp("mkdir", path, err)
}

// Remove deletes the file or directory (with its contents) at path.
func (s *Service) Remove(ctx context.Context, root nodekey.Key, path string) (*MutationResult, error) {
	result, err := s.mutate(ctx, "rm", root, path, func(_ *session, _ *node.DictNode, edits *editTree) error {
		segments, err := splitPath(path)
		if err != nil {
			return err
		}
		if len(segments) == 0 {
			return newError(CodeInvalidPath, "cannot remove the root directory")
		}
		_, err = edits.add(segments, editDelete)
		return err
	})
	return result, withOp("rm", path, err)
}

// Move renames from to to. An existing file at to is replaced; an
// existing directory at to is an ALREADY_EXISTS error.
func (s *Service) Move(ctx context.Context, root nodekey.Key, from, to string) (*MutationResult, error) {
	result, err := s.mutate(ctx, "mv", root, from, func(_ *session, rootDir *node.DictNode, edits *editTree) error {
		return s.transfer(ctx, root, rootDir, edits, from, to, true)
	})
	return result, withOp("mv", from, err)
}

// Copy makes to refer to the same nodes as from. No file data is
// copied. Destination rules are those of Move.
func (s *Service) Copy(ctx context.Context, root nodekey.Key, from, to string) (*MutationResult, error) {
	result, err := s.mutate(ctx, "cp", root, from, func(_ *session, rootDir *node.DictNode, edits *editTree) error {
		return s.transfer(ctx, root, rootDir, edits, from, to, false)
	})
	return result, withOp("cp", from, err)
}

func (s *Service) transfer(ctx context.Context, root nodekey.Key, rootDir *node.DictNode, edits *editTree, from, to string, move bool) error {
	fromSegments, err := splitPath(from)
	if err != nil {
		return err
	}
	toSegments, err := splitPath(to)
	if err != nil {
		return err
	}
	if len(fromSegments) == 0 {
		return newError(CodeInvalidPath, "cannot move or copy the root directory")
	}
	if len(toSegments) == 0 {
		return newError(CodeInvalidPath, "destination cannot be the root directory")
	}

	source, err := s.lookup(ctx, root, rootDir, fromSegments)
	if err != nil {
		return err
	}
	if move && slices.Equal(fromSegments, toSegments) {
		return nil
	}
	if len(toSegments) > len(fromSegments) && hasPrefix(toSegments, fromSegments) {
		return newError(CodeInvalidPath, "%s is inside %s", joinPath(toSegments), joinPath(fromSegments))
	}

	destination, err := s.lookup(ctx, root, rootDir, toSegments)
	switch {
	case err == nil && destination.Kind == node.KindDict:
		return newError(CodeAlreadyExists, "%s is a directory", joinPath(toSegments))
	case err != nil && CodeOf(err) != CodeNotFound:
		return err
	}

	target, err := edits.add(toSegments, editSet)
	if err != nil {
		return err
	}
	target.entry = node.Entry{Key: source.Key, Kind: source.Kind}
	target.dirConflict = CodeAlreadyExists

	if move {
		if _, err := edits.add(fromSegments, editDelete); err != nil {
			return err
		}
	}
	return nil
}

// mutate loads root, lets build describe the edits, and applies them.
// An empty edit tree leaves the root unchanged.
func (s *Service) mutate(ctx context.Context, op string, root nodekey.Key, path string, build func(*session, *node.DictNode, *editTree) error) (*MutationResult, error) {
	rootDir, err := s.loadRoot(ctx, root)
	if err != nil {
		return nil, err
	}
	ss := s.newSession()
	edits := newEditTree()
	if err := build(ss, rootDir, edits); err != nil {
		return nil, err
	}
	if len(edits.children) == 0 {
		return &MutationResult{NewRoot: root, NodesStored: ss.stored}, nil
	}

	newRoot, err := ss.apply(ctx, rootDir, edits)
	if err != nil {
		return nil, err
	}
	s.logger.Debug(op,
		"path", path,
		"root", root.ID(),
		"new_root", newRoot.ID(),
		"nodes_stored", ss.stored,
	)
	return &MutationResult{NewRoot: newRoot, NodesStored: ss.stored}, nil
}
