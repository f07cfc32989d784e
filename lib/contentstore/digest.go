// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contentstore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is the content key for digest-addressed fill entries.
type Digest [32]byte

// contentDomainKey separates fill-content digests from any other
// BLAKE3 use of the same bytes. Changing it invalidates every stored
// digest.
var contentDomainKey = [32]byte{
	'c', 'a', 'p', 'd', 'l', '.', 'f', 'i', 'l', 'l', '.', 'c', 'o', 'n', 't', 'e',
	'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashContent computes the digest of data.
func HashContent(data []byte) Digest {
	hasher, err := blake3.NewKeyed(contentDomainKey[:])
	if err != nil {
		panic("contentstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the lowercase hex form.
func (d Digest) String() string {
	return FormatDigest(d)
}

// IsZero reports whether d is the all-zero digest, which no real
// content hashes to in practice and which marks an unset field.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// FormatDigest returns the hex encoding of d.
func FormatDigest(d Digest) string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses a 64-character hex string.
func ParseDigest(hexString string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return digest, fmt.Errorf("parsing content digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("content digest is %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// MarshalText implements encoding.TextMarshaler so digests appear as
// hex strings in JSON and CBOR text.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(FormatDigest(d)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
