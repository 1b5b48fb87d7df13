// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

// Package repodb is the record-store adapter: a thin, read-only view
// over the SQLite database that backs a Fossil repository. It exposes
// exactly three capabilities to the resolution engine — fetching one
// raw record row by rid, resolving a hash prefix to a rid, and a raw
// query passthrough — and nothing about table layout leaks past it.
//
// The database is opened through a zombiezen.com/go/sqlite connection
// pool in read-only mode with read-tuned pragmas. Repositories are
// never created or mutated: opening a path that does not exist is an
// error, and every connection carries PRAGMA query_only as a
// backstop.
//
// The raw query passthrough sits explicitly outside the engine's
// integrity guarantees: results are not cached, not hash-verified,
// and failures surface as ErrStore rather than the resolution error
// kinds.
package repodb
