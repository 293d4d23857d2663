// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the key/value contract nodes are persisted
// through, together with the backends and decorators the casfs tool
// composes from configuration.
//
// A [Provider] maps a [nodekey.Key] to the encoded bytes of one node.
// Content never changes under a key, so Put is idempotent and any
// cached copy of a value stays valid forever. Backends:
//
//   - [Memory]: a map, for tests and scratch sessions
//   - [Files]: one file per node in a sharded directory tree
//   - [SQLite]: a single table in a WAL-mode SQLite database
//   - [Bolt]: a single bbolt bucket
//
// Decorators wrap any Provider: [Cached] keeps recently read nodes in
// an LRU, [Compressed] stores values compressed at rest, and [Mirror]
// replicates writes to several providers.
package storage
