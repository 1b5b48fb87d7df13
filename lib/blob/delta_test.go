// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

// buildDelta assembles a well-formed delta: header, the given
// instruction bytes, and a trailing checksum computed from want.
func buildDelta(want []byte, instructions []byte) []byte {
	delta := putVarint(nil, uint64(len(want)))
	delta = append(delta, '\n')
	delta = append(delta, instructions...)
	delta = putVarint(delta, uint64(Checksum(want)))
	delta = append(delta, ';')
	return delta
}

// copyOp encodes "copy count bytes from base at offset".
func copyOp(count, offset int) []byte {
	op := putVarint(nil, uint64(count))
	op = append(op, '@')
	op = putVarint(op, uint64(offset))
	return append(op, ',')
}

// insertOp encodes "insert these literal bytes".
func insertOp(literal []byte) []byte {
	op := putVarint(nil, uint64(len(literal)))
	op = append(op, ':')
	return append(op, literal...)
}

func TestApplyDeltaCopyInsertCopy(t *testing.T) {
	base := []byte("abcdef")
	want := []byte("abcXYZdef")

	var instructions []byte
	instructions = append(instructions, copyOp(3, 0)...)
	instructions = append(instructions, insertOp([]byte("XYZ"))...)
	instructions = append(instructions, copyOp(3, 3)...)

	delta := buildDelta(want, instructions)

	got, err := ApplyDelta(base, delta, true)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ApplyDelta = %q, want %q", got, want)
	}
}

func TestApplyDeltaLiteralOnly(t *testing.T) {
	want := []byte("no base content needed")
	delta := buildDelta(want, insertOp(want))

	got, err := ApplyDelta(nil, delta, true)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ApplyDelta = %q, want %q", got, want)
	}
}

func TestApplyDeltaEmptyOutput(t *testing.T) {
	delta := buildDelta(nil, nil)

	got, err := ApplyDelta([]byte("base"), delta, true)
	if err != nil {
		t.Fatalf("ApplyDelta failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ApplyDelta = %q, want empty", got)
	}
}

func TestApplyDeltaCorrupt(t *testing.T) {
	base := []byte("abcdef")
	want := []byte("abcdef")

	tests := []struct {
		name  string
		delta []byte
	}{
		{"missing size terminator", []byte("6")},
		{"copy past end of base", buildDelta(want, copyOp(20, 0))},
		{"copy offset past end of base", buildDelta(want, copyOp(3, 10))},
		// Eleven '~' digits decode as 1<<64 - 1; a naive offset+count
		// comparison wraps and admits the copy.
		{"copy offset varint overflow", []byte("6\n3@~~~~~~~~~~~,0;")},
		{"copy count varint overflow", []byte("6\n~~~~~~~~~~~@0,0;")},
		{"literal count varint overflow", []byte("6\n~~~~~~~~~~~:abcdef0;")},
		{"checksum wider than 32 bits", func() []byte {
			delta := []byte("6\n")
			delta = append(delta, insertOp(want)...)
			delta = putVarint(delta, 1<<35)
			return append(delta, ';')
		}()},
		{"truncated literal", append(putVarint([]byte("6\n"), 12), ':', 'x')},
		{"unknown opcode", []byte("6\n3?")},
		{"missing checksum terminator", append([]byte("6\n"), insertOp(want)...)},
		{"size mismatch", func() []byte {
			// Declares 9 bytes but the single copy produces 6.
			delta := []byte("9\n")
			delta = append(delta, copyOp(6, 0)...)
			delta = putVarint(delta, uint64(Checksum(want)))
			return append(delta, ';')
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyDelta(base, tt.delta, false)
			if !errors.Is(err, ErrCorruptRecord) {
				t.Errorf("ApplyDelta error = %v, want ErrCorruptRecord", err)
			}
		})
	}
}

func TestApplyDeltaChecksumMismatch(t *testing.T) {
	want := []byte("checksummed content")
	delta := putVarint(nil, uint64(len(want)))
	delta = append(delta, '\n')
	delta = append(delta, insertOp(want)...)
	delta = putVarint(delta, uint64(Checksum(want)+1))
	delta = append(delta, ';')

	// Without verification the bad checksum is ignored.
	got, err := ApplyDelta(nil, delta, false)
	if err != nil {
		t.Fatalf("ApplyDelta without verification failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ApplyDelta = %q, want %q", got, want)
	}

	// With verification it is a corrupt record.
	_, err = ApplyDelta(nil, delta, true)
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("ApplyDelta error = %v, want ErrCorruptRecord", err)
	}
}

func TestVarintRoundtrip(t *testing.T) {
	values := []uint64{0, 1, 9, 10, 63, 64, 1000, 1 << 20, 1<<32 - 1}
	for _, value := range values {
		encoded := putVarint(nil, value)
		decoded, pos := getVarint(encoded, 0)
		if decoded != value || pos != len(encoded) {
			t.Errorf("varint roundtrip: %d -> %q -> %d (consumed %d of %d)",
				value, encoded, decoded, pos, len(encoded))
		}
	}
}

func TestVarintStopsAtNonDigit(t *testing.T) {
	value, pos := getVarint([]byte("3@0,"), 0)
	if value != 3 || pos != 1 {
		t.Errorf("getVarint = (%d, %d), want (3, 1)", value, pos)
	}
}

func TestChecksumBackendsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, size := range []int{0, 1, 2, 3, 4, 5, 15, 16, 17, 1024, 4099} {
		data := make([]byte, size)
		rng.Read(data)
		blocked := checksumBlocked(data)
		scalar := checksumScalar(data)
		if blocked != scalar {
			t.Errorf("size %d: blocked checksum %08x, scalar %08x", size, blocked, scalar)
		}
	}
}

func TestChecksumKnownValue(t *testing.T) {
	// "abcd" is one exact big-endian word.
	if got := Checksum([]byte("abcd")); got != 0x61626364 {
		t.Errorf("Checksum(abcd) = %08x, want 61626364", got)
	}
	// "ab" zero-pads to "ab\x00\x00".
	if got := Checksum([]byte("ab")); got != 0x61620000 {
		t.Errorf("Checksum(ab) = %08x, want 61620000", got)
	}
}
