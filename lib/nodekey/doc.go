// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package nodekey derives the content addresses of casfs nodes.
//
// A [Key] is 16 bytes. Byte 0 is a size flag derived from the length
// of the encoded node; bytes 1 through 15 are the leading bytes of a
// BLAKE3 keyed digest of the node's encoding. The size flag lets a
// caller holding only a key estimate how large the node is without
// fetching it. It is advisory: nothing may rely on it for integrity.
//
// Keys have two string forms:
//
//   - [Key.String] is the storage-layer form: 32 lowercase hex
//     characters, used as the key in every storage backend.
//
//   - [Key.ID] is the protocol form: "nod_" followed by 26 Crockford
//     base32 characters. This is what the surrounding API layers pass
//     around and compare for equality.
//
// Hashing is pluggable through [Provider]. [Blake3] returns the
// default provider; tests may substitute their own.
package nodekey
