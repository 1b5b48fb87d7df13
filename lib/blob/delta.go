// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"fmt"
	"math"
)

// deltaDigits is the varint alphabet used by the delta format, in
// value order. Values 0-63 map to '0'-'9', 'A'-'Z', '_', 'a'-'z', '~'.
const deltaDigits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz~"

// deltaDigitValue maps a 7-bit character to its varint value, or -1
// for characters outside the alphabet.
var deltaDigitValue [128]int8

func init() {
	for i := range deltaDigitValue {
		deltaDigitValue[i] = -1
	}
	for value, ch := range []byte(deltaDigits) {
		deltaDigitValue[ch] = int8(value)
	}
}

// getVarint decodes a base-64 varint starting at pos. Returns the
// value and the position of the first non-digit character. A run of
// zero digits decodes as zero, matching the reference decoder's
// leniency.
func getVarint(delta []byte, pos int) (uint64, int) {
	var value uint64
	for pos < len(delta) {
		digit := deltaDigitValue[delta[pos]&0x7f]
		if digit < 0 {
			break
		}
		value = value<<6 + uint64(digit)
		pos++
	}
	return value, pos
}

// putVarint appends the base-64 varint encoding of value. Used by
// test fixtures; the engine never writes deltas.
func putVarint(out []byte, value uint64) []byte {
	if value == 0 {
		return append(out, '0')
	}
	var digits [11]byte
	n := 0
	for value > 0 {
		digits[n] = deltaDigits[value&0x3f]
		value >>= 6
		n++
	}
	// Most-significant digit first, matching the decoder's
	// accumulation order.
	for i := n - 1; i >= 0; i-- {
		out = append(out, digits[i])
	}
	return out
}

// ApplyDelta reconstructs content from a base and a Fossil-format
// delta. The delta declares its target size up front; a reconstruction
// that disagrees fails with ErrCorruptRecord, as does any structural
// damage (out-of-range copy, truncated literal, unknown opcode,
// missing terminator).
//
// When verifyChecksum is set the trailing checksum instruction is
// validated against the reconstructed output. The reference reader
// makes this optional because it costs a full pass over the output;
// the size check alone catches most damage.
func ApplyDelta(base, delta []byte, verifyChecksum bool) ([]byte, error) {
	targetSize, pos := getVarint(delta, 0)
	if pos >= len(delta) || delta[pos] != '\n' {
		return nil, fmt.Errorf("delta header missing size terminator: %w", ErrCorruptRecord)
	}
	pos++

	if targetSize > 1<<31 {
		return nil, fmt.Errorf("delta target size %d unreasonable: %w", targetSize, ErrCorruptRecord)
	}

	out := make([]byte, 0, targetSize)

	for pos < len(delta) {
		count, next := getVarint(delta, pos)
		pos = next
		if pos >= len(delta) {
			return nil, fmt.Errorf("delta truncated after instruction count: %w", ErrCorruptRecord)
		}

		switch delta[pos] {
		case '@': // copy count bytes from base at offset
			pos++
			offset, next := getVarint(delta, pos)
			pos = next
			if pos >= len(delta) || delta[pos] != ',' {
				return nil, fmt.Errorf("delta copy missing offset terminator: %w", ErrCorruptRecord)
			}
			pos++
			// Ordered so a huge varint cannot wrap the sum past the
			// bound.
			if offset > uint64(len(base)) || count > uint64(len(base))-offset {
				return nil, fmt.Errorf("delta copy of %d bytes at %d exceeds base size %d: %w",
					count, offset, len(base), ErrCorruptRecord)
			}
			if uint64(len(out))+count > targetSize {
				return nil, fmt.Errorf("delta output exceeds declared size %d: %w",
					targetSize, ErrCorruptRecord)
			}
			out = append(out, base[offset:offset+count]...)

		case ':': // insert count literal bytes from the delta
			pos++
			if count > uint64(len(delta)-pos) {
				return nil, fmt.Errorf("delta literal of %d bytes truncated: %w", count, ErrCorruptRecord)
			}
			if uint64(len(out))+count > targetSize {
				return nil, fmt.Errorf("delta output exceeds declared size %d: %w",
					targetSize, ErrCorruptRecord)
			}
			out = append(out, delta[pos:pos+int(count)]...)
			pos += int(count)

		case ';': // trailing checksum, end of delta
			if uint64(len(out)) != targetSize {
				return nil, fmt.Errorf("delta produced %d bytes, declared %d: %w",
					len(out), targetSize, ErrCorruptRecord)
			}
			if count > math.MaxUint32 {
				return nil, fmt.Errorf("delta checksum varint %d wider than 32 bits: %w",
					count, ErrCorruptRecord)
			}
			if verifyChecksum && uint32(count) != Checksum(out) {
				return nil, fmt.Errorf("delta checksum %08x, computed %08x: %w",
					uint32(count), Checksum(out), ErrCorruptRecord)
			}
			return out, nil

		default:
			return nil, fmt.Errorf("delta opcode %q at offset %d: %w", delta[pos], pos, ErrCorruptRecord)
		}
	}

	return nil, fmt.Errorf("delta missing checksum terminator: %w", ErrCorruptRecord)
}
