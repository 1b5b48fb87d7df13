// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve is the artifact resolution engine: given a record
// id, it reconstructs the exact original byte content by following
// delta chains, decompressing payloads, and optionally verifying the
// result against the record's content hash. A bounded LRU cache
// keyed by rid amortizes repeated resolution; delta bases resolve
// through the same cache, so shared ancestry is reconstructed once.
//
// Resolution is a pure function of a record id and the store's
// content. The store is read-only for the engine's lifetime, so the
// only invalidation is capacity-based eviction. Failed resolutions —
// corrupt records, cyclic chains, integrity mismatches — are never
// cached.
//
// Concurrent callers of the same id share one in-flight resolution
// (singleflight); the shared resolution runs detached from any single
// caller's cancellation, so an abandoning caller does not starve the
// others or prevent the cache from being populated.
package resolve
