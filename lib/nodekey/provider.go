// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nodekey

import (
	"github.com/zeebo/blake3"
)

// Provider derives the key of an encoded node. Implementations must be
// pure: the same bytes always produce the same key, with no I/O.
type Provider interface {
	ComputeKey(data []byte) Key
}

// nodeDomainKey is the BLAKE3 key for node hashing: the ASCII domain
// name zero-padded to 32 bytes. Changing it re-addresses every node
// ever written.
var nodeDomainKey = [32]byte{
	'c', 'a', 's', 'f', 's', '.', 'n', 'o', 'd', 'e',
}

type blake3Provider struct{}

// Blake3 returns the default provider: a BLAKE3 keyed digest truncated
// to [Size] bytes with byte 0 replaced by [SizeFlag].
func Blake3() Provider {
	return blake3Provider{}
}

func (blake3Provider) ComputeKey(data []byte) Key {
	// NewKeyed only fails for keys that are not 32 bytes long.
	hasher, err := blake3.NewKeyed(nodeDomainKey[:])
	if err != nil {
		panic("nodekey: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)

	var key Key
	copy(key[:], hasher.Sum(nil))
	key[0] = SizeFlag(len(data))
	return key
}

// ProviderFunc adapts a plain function to [Provider].
type ProviderFunc func(data []byte) Key

// ComputeKey calls f(data).
func (f ProviderFunc) ComputeKey(data []byte) Key {
	return f(data)
}
