// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the casfs binary.
//
// Release builds inject values with -ldflags, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/casfs/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Builds without ldflags fall back to the VCS stamp the Go toolchain
// records in the binary.
package version
