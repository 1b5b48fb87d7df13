// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import "encoding/binary"

// Checksum computes the delta checksum: the sum, modulo 2^32, of
// big-endian uint32 words over data zero-padded to a multiple of
// four bytes. This is the value stored in a delta's trailing ';'
// instruction.
func Checksum(data []byte) uint32 {
	return checksumImpl(data)
}

// checksumImpl is the active backend. Both backends produce identical
// results for all inputs; the blocked form is the default because it
// reads whole words instead of single bytes. Selection never changes
// observable behavior.
var checksumImpl = checksumBlocked

// checksumBlocked sums four words per iteration over the aligned
// portion, then folds in the remaining words and the zero-padded
// tail.
func checksumBlocked(data []byte) uint32 {
	var sum uint32
	i := 0

	for ; i+16 <= len(data); i += 16 {
		sum += binary.BigEndian.Uint32(data[i:]) +
			binary.BigEndian.Uint32(data[i+4:]) +
			binary.BigEndian.Uint32(data[i+8:]) +
			binary.BigEndian.Uint32(data[i+12:])
	}

	for ; i+4 <= len(data); i += 4 {
		sum += binary.BigEndian.Uint32(data[i:])
	}

	if i < len(data) {
		var tail [4]byte
		copy(tail[:], data[i:])
		sum += binary.BigEndian.Uint32(tail[:])
	}

	return sum
}

// checksumScalar is the byte-at-a-time reference implementation,
// kept to cross-validate the blocked backend in tests.
func checksumScalar(data []byte) uint32 {
	var sum uint32
	for i, b := range data {
		sum += uint32(b) << (24 - 8*(uint(i)%4))
	}
	return sum
}
