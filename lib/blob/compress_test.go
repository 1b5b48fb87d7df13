// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestDecompressRoundtrip(t *testing.T) {
	contents := [][]byte{
		[]byte("hello, fossil"),
		[]byte(""),
		bytes.Repeat([]byte("abcdefgh"), 10000),
	}

	for _, content := range contents {
		got, err := Decompress(Compress(content))
		if err != nil {
			t.Fatalf("Decompress failed for %d bytes: %v", len(content), err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("roundtrip mismatch for %d bytes", len(content))
		}
	}
}

func TestDecompressTruncatedHeader(t *testing.T) {
	_, err := Decompress([]byte{0, 0})
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("Decompress error = %v, want ErrCorruptRecord", err)
	}
}

func TestDecompressMalformedStream(t *testing.T) {
	payload := []byte{0, 0, 0, 10, 'n', 'o', 't', 'z', 'l', 'i', 'b'}
	_, err := Decompress(payload)
	if !errors.Is(err, ErrCorruptRecord) {
		t.Errorf("Decompress error = %v, want ErrCorruptRecord", err)
	}
}

func TestDecompressSizeHeaderIsAdvisory(t *testing.T) {
	// Repositories in the wild carry size headers that disagree with
	// the stream. The header is an allocation hint, not a check.
	content := []byte("actual content")
	payload := Compress(content)
	binary.BigEndian.PutUint32(payload[:4], 9999)

	got, err := Decompress(payload)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Decompress = %q, want %q", got, content)
	}
}
