// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs implements file-system operations over an immutable,
// content-addressed tree of nodes.
//
// A tree is named by the key of its root directory node. Nothing is
// ever modified in place: every mutating [Service] method builds new
// nodes from the changed entry up to the root and returns the new
// root key, leaving the input root (and every earlier root) readable.
// Tracking which root is "current" is the caller's business.
//
// Files that fit in one node are stored inline in their file node.
// Larger files are split into raw successor chunks that are grouped
// into a B-tree of pointer successors until the top-level pointer list
// fits in the file node. Reads walk that tree depth first; [Stream]
// does so lazily, holding one chunk at a time.
//
// Errors returned by the service are *[Error] values carrying a
// [Code]; match them with errors.Is against the Err* sentinels or
// extract the code with [CodeOf].
package fs
