// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

// Package blob implements the on-disk record formats of a Fossil
// repository: the compressed blob envelope, the delta encoding, and
// the content-hash algorithms. It is the pure-data leaf of the
// resolution engine — no I/O, no SQLite, no caching.
//
// A Fossil repository stores every artifact as a row in the blob
// table. The stored payload is a 4-byte big-endian length header
// followed by a zlib stream. Records listed in the delta table are
// stored as a Fossil-format delta against another record; the delta
// itself is compressed with the same envelope, so decompression is
// always the outermost decoding step.
//
// The delta format is a sequence of instructions encoded with a
// base-64 varint alphabet (0-9, A-Z, _, a-z, ~):
//
//	<target-size> '\n'
//	<count> '@' <offset> ','   copy count bytes from the base
//	<count> ':' <bytes>        insert count literal bytes
//	<checksum> ';'             trailing checksum, ends the delta
//
// The trailing checksum is the sum of big-endian uint32 words over
// the reconstructed output, zero-padded to a multiple of four bytes.
//
// Content hashes are addressed by digest length: Fossil's first
// generation used SHA1 (20 bytes), the current generation uses
// SHA3-256 (32 bytes). Both formats coexist in one repository, so
// the algorithm is selected per record from the stored digest size.
// These formats are fixed external contracts — this package decodes
// them, it does not define them.
package blob
