// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by record decoding and resolution. Callers
// match them with errors.Is; every occurrence is wrapped with
// operation context.
var (
	// ErrNotFound indicates that a record id or hash prefix does not
	// resolve to any record. Recoverable — the caller decides the
	// fallback.
	ErrNotFound = errors.New("record not found")

	// ErrAmbiguousPrefix indicates that a hash prefix matched more
	// than one record under the strict lookup policy.
	ErrAmbiguousPrefix = errors.New("ambiguous hash prefix")

	// ErrCorruptRecord indicates a malformed zlib stream or delta
	// structure. Store damage — retrying cannot succeed.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrCyclicDelta indicates a delta chain that references itself.
	// Store damage.
	ErrCyclicDelta = errors.New("cyclic delta chain")

	// ErrIntegrity indicates that resolved content does not hash to
	// the record's declared content hash. Store damage or tampering.
	ErrIntegrity = errors.New("content integrity mismatch")
)

// Encoding identifies how a record's payload is stored.
type Encoding uint8

const (
	// EncodingPlain is raw content with no envelope. Fossil itself
	// always compresses; this tag exists for stores and test doubles
	// that hold verbatim bytes.
	EncodingPlain Encoding = 0

	// EncodingCompressed is the standard envelope: 4-byte big-endian
	// size header followed by a zlib stream.
	EncodingCompressed Encoding = 1

	// EncodingDelta is a Fossil delta against another record. The
	// delta payload carries the compressed envelope as well, so it
	// is decompressed before the delta is applied.
	EncodingDelta Encoding = 2
)

// String returns the human-readable name of an encoding tag.
func (e Encoding) String() string {
	switch e {
	case EncodingPlain:
		return "plain"
	case EncodingCompressed:
		return "compressed"
	case EncodingDelta:
		return "delta"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

// RawRecord is an immutable view of one stored record, produced fresh
// on every store fetch. The resolution engine owns the record until it
// has been turned into resolved content; nothing mutates it.
type RawRecord struct {
	// RID is the store-local integer id, stable for the life of the
	// record.
	RID int64

	// ContentHash is the binary digest of the fully resolved content:
	// 20 bytes (SHA1) or 32 bytes (SHA3-256) depending on the
	// record's hash generation.
	ContentHash []byte

	// Encoding tags how Payload is stored.
	Encoding Encoding

	// Payload is the raw bytes as stored.
	Payload []byte

	// DeltaBase is the rid of the delta base record. Meaningful only
	// when Encoding is EncodingDelta.
	DeltaBase int64
}
