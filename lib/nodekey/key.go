// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nodekey

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strings"
)

// Size is the byte length of a node key.
const Size = 16

// IDPrefix is the type-discriminating prefix of the protocol form.
const IDPrefix = "nod_"

// Key is the content address of one encoded node.
type Key [Size]byte

// crockford is Crockford's base32 alphabet (no I, L, O, U), lowercase
// so identifiers read well in URLs and logs.
var crockford = base32.NewEncoding("0123456789abcdefghjkmnpqrstvwxyz").WithPadding(base32.NoPadding)

// String returns the storage-layer form of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ID returns the protocol-level identifier of the key.
func (k Key) ID() string {
	return IDPrefix + crockford.EncodeToString(k[:])
}

// IsZero reports whether k is the zero key. No encoded node hashes to
// the zero key in practice, so it doubles as "no key".
func (k Key) IsZero() bool {
	return k == Key{}
}

// SizeFlag returns the size-flag byte of the key.
func (k Key) SizeFlag() byte {
	return k[0]
}

// SizeClass returns the range of encoded lengths [min, max) implied by
// the key's size flag. A flag of zero means the node was empty.
func (k Key) SizeClass() (min, max int) {
	flag := int(k[0])
	if flag == 0 {
		return 0, 1
	}
	if flag > 62 {
		flag = 62
	}
	return 1 << (flag - 1), 1 << flag
}

// MarshalText encodes the key in its protocol form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.ID()), nil
}

// UnmarshalText accepts either string form.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SizeFlag returns the size-flag byte for an encoded node of n bytes:
// 0 for an empty buffer, otherwise the bit length of n, so flag f
// covers lengths in [2^(f-1), 2^f).
func SizeFlag(n int) byte {
	if n <= 0 {
		return 0
	}
	return byte(bits.Len(uint(n)))
}

// ParseStorageKey parses the 32-character hex storage form.
func ParseStorageKey(s string) (Key, error) {
	var key Key
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("parsing storage key %q: %w", s, err)
	}
	if len(decoded) != Size {
		return key, fmt.Errorf("storage key %q is %d bytes, want %d", s, len(decoded), Size)
	}
	copy(key[:], decoded)
	return key, nil
}

// ParseID parses the "nod_" protocol form.
func ParseID(s string) (Key, error) {
	var key Key
	encoded, ok := strings.CutPrefix(s, IDPrefix)
	if !ok {
		return key, fmt.Errorf("node id %q does not start with %q", s, IDPrefix)
	}
	decoded, err := crockford.DecodeString(strings.ToLower(encoded))
	if err != nil {
		return key, fmt.Errorf("parsing node id %q: %w", s, err)
	}
	if len(decoded) != Size {
		return key, fmt.Errorf("node id %q is %d bytes, want %d", s, len(decoded), Size)
	}
	copy(key[:], decoded)
	return key, nil
}

// Parse accepts either the protocol form or the storage form.
func Parse(s string) (Key, error) {
	if strings.HasPrefix(s, IDPrefix) {
		return ParseID(s)
	}
	return ParseStorageKey(s)
}
