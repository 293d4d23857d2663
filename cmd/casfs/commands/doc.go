// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the casfs command tree.
//
// Every command loads the configuration named by --config or
// CASFS_CONFIG, builds the storage stack it describes, and drives an
// fs.Service over it. Roots are passed explicitly with --root and
// mutating commands print the new root, so the tool holds no state of
// its own between invocations.
package commands
