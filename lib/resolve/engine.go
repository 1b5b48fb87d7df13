// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/relic-scm/relic/lib/blob"
)

// DefaultCacheCapacity is the cache size used by DefaultOptions.
const DefaultCacheCapacity = 64

// DefaultMaxDeltaDepth bounds delta chain recursion. Real
// repositories stay well under this; only damage produces deeper
// chains.
const DefaultMaxDeltaDepth = 1000

// Source is the record store the engine resolves against. Implemented
// by repodb.DB; tests substitute counting doubles.
type Source interface {
	// FetchRecord reads the raw record row for a rid. Missing records
	// fail with blob.ErrNotFound.
	FetchRecord(ctx context.Context, rid int64) (blob.RawRecord, error)

	// LookupPrefix resolves a hash string or unique prefix to a rid
	// and the full hash.
	LookupPrefix(ctx context.Context, prefix string) (int64, string, error)
}

// Options configures an Engine. The zero value disables caching; use
// DefaultOptions for the standard configuration.
type Options struct {
	// CacheCapacity is the maximum number of resolved artifacts held
	// in the LRU cache. Zero or negative disables caching entirely —
	// every request resolves fresh. Useful for low-memory operation
	// and for tests that must observe store traffic.
	CacheCapacity int

	// VerifyContent enables hashing every first-time resolution with
	// the algorithm matching its digest length and comparing against
	// the record's content hash. Costs one hash computation per
	// identifier per cache lifetime; cached hits are not re-verified.
	// It also enables the delta trailing-checksum validation.
	VerifyContent bool

	// MaxDeltaDepth caps delta chain recursion. Defaults to
	// DefaultMaxDeltaDepth if zero or negative.
	MaxDeltaDepth int

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// DefaultOptions returns the standard engine configuration: a
// 64-entry cache, verification off.
func DefaultOptions() Options {
	return Options{CacheCapacity: DefaultCacheCapacity}
}

// Stats is a snapshot of engine counters.
type Stats struct {
	// CacheHits counts resolutions served from the cache.
	CacheHits uint64

	// CacheMisses counts resolutions that had to reconstruct content.
	CacheMisses uint64

	// StoreFetches counts raw record rows read from the store. Higher
	// than CacheMisses when delta chains fetch base records.
	StoreFetches uint64

	// CacheLen is the current number of cached artifacts.
	CacheLen int
}

// Engine resolves record ids to reconstructed artifact content.
// Safe for concurrent use. Returned byte slices are shared with the
// cache and must be treated as read-only.
type Engine struct {
	source   Source
	cache    *lru.Cache[int64, []byte] // nil when caching is disabled
	group    singleflight.Group
	verify   bool
	maxDepth int
	logger   *slog.Logger

	hits    atomic.Uint64
	misses  atomic.Uint64
	fetches atomic.Uint64
}

// New creates an Engine over the given record source.
func New(source Source, opts Options) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("resolve: source is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	maxDepth := opts.MaxDeltaDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDeltaDepth
	}

	engine := &Engine{
		source:   source,
		verify:   opts.VerifyContent,
		maxDepth: maxDepth,
		logger:   logger,
	}

	if opts.CacheCapacity > 0 {
		cache, err := lru.New[int64, []byte](opts.CacheCapacity)
		if err != nil {
			return nil, fmt.Errorf("resolve: creating cache: %w", err)
		}
		engine.cache = cache
	}

	logger.Info("resolution engine ready",
		"cache_capacity", opts.CacheCapacity,
		"verify_content", opts.VerifyContent,
	)

	return engine, nil
}

// Resolve reconstructs the content of the record with the given rid.
// The returned slice is shared with the cache: read-only.
func (e *Engine) Resolve(ctx context.Context, rid int64) ([]byte, error) {
	if e.cache != nil {
		if content, ok := e.cache.Get(rid); ok {
			e.hits.Add(1)
			return content, nil
		}
	}
	e.misses.Add(1)

	// One in-flight resolution per rid. The flight runs detached from
	// this caller's cancellation so that a caller abandoning the
	// result does not fail the resolution for concurrent waiters or
	// leave the cache unpopulated.
	flightCtx := context.WithoutCancel(ctx)
	content, err, _ := e.group.Do(strconv.FormatInt(rid, 10), func() (any, error) {
		return e.resolve(flightCtx, rid, make(map[int64]struct{}), 0)
	})
	if err != nil {
		return nil, err
	}
	return content.([]byte), nil
}

// ResolveHash resolves a full hash or unique prefix to content.
func (e *Engine) ResolveHash(ctx context.Context, prefix string) ([]byte, error) {
	rid, _, err := e.source.LookupPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return e.Resolve(ctx, rid)
}

// resolve reconstructs one record, recursing through delta bases.
// stack holds the rids on the active resolution path for cycle
// detection.
func (e *Engine) resolve(ctx context.Context, rid int64, stack map[int64]struct{}, depth int) ([]byte, error) {
	// Base records reached through a delta chain are served from the
	// cache like any other lookup.
	if e.cache != nil && depth > 0 {
		if content, ok := e.cache.Get(rid); ok {
			e.hits.Add(1)
			return content, nil
		}
	}

	if _, onStack := stack[rid]; onStack {
		return nil, fmt.Errorf("record %d is its own delta ancestor: %w", rid, blob.ErrCyclicDelta)
	}
	if depth > e.maxDepth {
		return nil, fmt.Errorf("delta chain deeper than %d at record %d: %w",
			e.maxDepth, rid, blob.ErrCyclicDelta)
	}
	stack[rid] = struct{}{}
	defer delete(stack, rid)

	record, err := e.source.FetchRecord(ctx, rid)
	if err != nil {
		return nil, err
	}
	e.fetches.Add(1)

	payload := record.Payload
	if record.Encoding != blob.EncodingPlain {
		payload, err = blob.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rid, err)
		}
	}

	content := payload
	if record.Encoding == blob.EncodingDelta {
		base, err := e.resolve(ctx, record.DeltaBase, stack, depth+1)
		if err != nil {
			return nil, fmt.Errorf("delta base %d of record %d: %w", record.DeltaBase, rid, err)
		}
		content, err = blob.ApplyDelta(base, payload, e.verify)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", rid, err)
		}
	}

	if e.verify && len(record.ContentHash) > 0 {
		if err := blob.Verify(content, record.ContentHash); err != nil {
			// A poisoned result must never enter the cache.
			return nil, fmt.Errorf("record %d: %w", rid, err)
		}
	}

	if e.cache != nil {
		e.cache.Add(rid, content)
	}

	return content, nil
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	stats := Stats{
		CacheHits:    e.hits.Load(),
		CacheMisses:  e.misses.Load(),
		StoreFetches: e.fetches.Load(),
	}
	if e.cache != nil {
		stats.CacheLen = e.cache.Len()
	}
	return stats
}
