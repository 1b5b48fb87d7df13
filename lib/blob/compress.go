// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// envelopeHeaderSize is the length of the size prefix on every
// compressed payload.
const envelopeHeaderSize = 4

// Decompress decodes the Fossil blob envelope: a 4-byte big-endian
// original-size header followed by a zlib stream. A malformed header
// or stream fails with ErrCorruptRecord.
//
// The size header is advisory. Repositories exist in the wild where
// it disagrees with the actual stream length, so it is used only as
// an allocation hint, never enforced.
func Decompress(payload []byte) ([]byte, error) {
	if len(payload) < envelopeHeaderSize {
		return nil, fmt.Errorf("payload %d bytes, shorter than envelope header: %w",
			len(payload), ErrCorruptRecord)
	}

	declaredSize := binary.BigEndian.Uint32(payload[:envelopeHeaderSize])

	reader, err := zlib.NewReader(bytes.NewReader(payload[envelopeHeaderSize:]))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %v: %w", err, ErrCorruptRecord)
	}
	defer reader.Close()

	// Cap the hint so a corrupt header cannot force a huge allocation.
	hint := int64(declaredSize)
	if hint > 1<<28 {
		hint = 1 << 28
	}

	var out bytes.Buffer
	out.Grow(int(hint))
	if _, err := io.Copy(&out, reader); err != nil {
		return nil, fmt.Errorf("reading zlib stream: %v: %w", err, ErrCorruptRecord)
	}

	return out.Bytes(), nil
}

// Compress encodes content into the Fossil blob envelope. The engine
// itself is read-only; this exists for tests and fixture construction.
func Compress(content []byte) []byte {
	var out bytes.Buffer

	var header [envelopeHeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(content)))
	out.Write(header[:])

	writer := zlib.NewWriter(&out)
	writer.Write(content)
	writer.Close()

	return out.Bytes()
}
