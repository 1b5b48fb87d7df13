// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// Digest sizes of the two hash generations a repository can contain.
// The algorithm for a record is selected by the length of its stored
// digest — both generations coexist in migrated repositories.
const (
	SHA1Size   = 20 // first generation
	SHA3Size   = 32 // current generation, SHA3-256
	sha1HexLen = 2 * SHA1Size
	sha3HexLen = 2 * SHA3Size
)

// ContentDigest hashes content with the algorithm matching the given
// digest length. Lengths other than 20 and 32 indicate a damaged
// record row.
func ContentDigest(content []byte, digestLen int) ([]byte, error) {
	switch digestLen {
	case SHA1Size:
		sum := sha1.Sum(content)
		return sum[:], nil
	case SHA3Size:
		sum := sha3.Sum256(content)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("no hash algorithm for %d-byte digest: %w", digestLen, ErrCorruptRecord)
	}
}

// Verify checks resolved content against its declared content hash.
// A mismatch fails with ErrIntegrity.
func Verify(content, contentHash []byte) error {
	computed, err := ContentDigest(content, len(contentHash))
	if err != nil {
		return err
	}
	if !bytes.Equal(computed, contentHash) {
		return fmt.Errorf("content hashes to %x, record declares %x: %w",
			computed, contentHash, ErrIntegrity)
	}
	return nil
}

// ParseHash decodes a full-length lowercase hex hash string (40 or
// 64 characters) into its binary digest.
func ParseHash(hexHash string) ([]byte, error) {
	if len(hexHash) != sha1HexLen && len(hexHash) != sha3HexLen {
		return nil, fmt.Errorf("hash %q is %d characters, want %d or %d",
			hexHash, len(hexHash), sha1HexLen, sha3HexLen)
	}
	digest, err := hex.DecodeString(hexHash)
	if err != nil {
		return nil, fmt.Errorf("parsing hash %q: %w", hexHash, err)
	}
	return digest, nil
}

// FormatHash returns the canonical lowercase hex form of a digest.
func FormatHash(digest []byte) string {
	return hex.EncodeToString(digest)
}

// ValidHashPrefix reports whether s could be a prefix of a canonical
// hash: lowercase hex, no longer than the longest digest's hex form.
func ValidHashPrefix(s string) bool {
	if len(s) == 0 || len(s) > sha3HexLen {
		return false
	}
	for _, ch := range s {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}
