// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mount exposes one casfs root as a read-only FUSE filesystem.
//
// A root key names an immutable snapshot, so every directory and file
// in the mount is immutable too: the kernel page cache is always valid
// and attribute timeouts only bound memory use. Directories are backed
// by [fs.Service.List] and [fs.Service.Stat]; file reads go through
// [fs.Service.ReadAt] and fetch only the successors covering the
// requested range.
package mount
