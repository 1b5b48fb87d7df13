// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"crypto/sha1"
	"errors"
	"testing"

	"golang.org/x/crypto/sha3"
)

func TestContentDigestByLength(t *testing.T) {
	content := []byte("artifact content")

	sha1Want := sha1.Sum(content)
	got, err := ContentDigest(content, SHA1Size)
	if err != nil {
		t.Fatalf("ContentDigest(20) failed: %v", err)
	}
	if string(got) != string(sha1Want[:]) {
		t.Error("20-byte digest did not select SHA1")
	}

	sha3Want := sha3.Sum256(content)
	got, err = ContentDigest(content, SHA3Size)
	if err != nil {
		t.Fatalf("ContentDigest(32) failed: %v", err)
	}
	if string(got) != string(sha3Want[:]) {
		t.Error("32-byte digest did not select SHA3-256")
	}

	if _, err := ContentDigest(content, 16); err == nil {
		t.Error("ContentDigest(16) should fail")
	}
}

func TestVerify(t *testing.T) {
	content := []byte("verified bytes")
	digest := sha3.Sum256(content)

	if err := Verify(content, digest[:]); err != nil {
		t.Errorf("Verify with matching hash failed: %v", err)
	}

	digest[0] ^= 0xff
	err := Verify(content, digest[:])
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("Verify error = %v, want ErrIntegrity", err)
	}
}

func TestParseHash(t *testing.T) {
	sha1Hex := "da39a3ee5e6b4b0d3255bfef95601890afd80709"
	digest, err := ParseHash(sha1Hex)
	if err != nil {
		t.Fatalf("ParseHash failed: %v", err)
	}
	if len(digest) != SHA1Size {
		t.Errorf("digest length = %d, want %d", len(digest), SHA1Size)
	}
	if FormatHash(digest) != sha1Hex {
		t.Error("FormatHash did not round-trip")
	}

	for _, bad := range []string{"", "abc", "zz39a3ee5e6b4b0d3255bfef95601890afd80709"} {
		if _, err := ParseHash(bad); err == nil {
			t.Errorf("ParseHash(%q) should fail", bad)
		}
	}
}

func TestValidHashPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   bool
	}{
		{"deadbeef", true},
		{"0123", true},
		{"DEADBEEF", false}, // canonical form is lowercase
		{"xyz", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidHashPrefix(tt.prefix); got != tt.want {
			t.Errorf("ValidHashPrefix(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}
