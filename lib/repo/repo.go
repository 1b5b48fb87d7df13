// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

// Package repo is the user-facing handle on a Fossil repository. It
// ties the record-store adapter, the resolution engine, and the
// structural-artifact parser together behind a small API: open a
// repository file, read artifacts by rid or hash, parse manifests,
// walk the timeline, run raw queries, close.
package repo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relic-scm/relic/lib/julian"
	"github.com/relic-scm/relic/lib/manifest"
	"github.com/relic-scm/relic/lib/repodb"
	"github.com/relic-scm/relic/lib/resolve"
)

// Options configures an opened repository.
type Options struct {
	// CacheCapacity is the resolved-artifact cache size. Zero or
	// negative disables caching. DefaultOptions uses 64 entries.
	CacheCapacity int

	// VerifyContent enables content-hash verification on every
	// first-time resolution.
	VerifyContent bool

	// PrefixPolicy selects ambiguous hash-prefix handling.
	PrefixPolicy repodb.PrefixPolicy

	// PoolSize is the SQLite connection pool size. Defaults to 4.
	PoolSize int

	// Logger receives operational messages from the store and the
	// engine. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// DefaultOptions returns the standard configuration: 64-entry cache,
// verification off, strict prefix policy.
func DefaultOptions() Options {
	return Options{CacheCapacity: resolve.DefaultCacheCapacity}
}

// Repo is an open repository. Safe for concurrent use. Close releases
// the database connections.
type Repo struct {
	db     *repodb.DB
	engine *resolve.Engine
}

// Artifact is one resolved artifact: content plus its store identity.
// Content is shared with the resolution cache — read-only.
type Artifact struct {
	RID     int64
	Hash    string
	Content []byte
}

// Open opens the repository SQLite file at path. The file must exist;
// repositories are never created or modified.
func Open(path string, opts Options) (*Repo, error) {
	db, err := repodb.Open(repodb.Config{
		Path:         path,
		PoolSize:     opts.PoolSize,
		PrefixPolicy: opts.PrefixPolicy,
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	engine, err := resolve.New(db, resolve.Options{
		CacheCapacity: opts.CacheCapacity,
		VerifyContent: opts.VerifyContent,
		Logger:        opts.Logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Repo{db: db, engine: engine}, nil
}

// Close releases the underlying database connections.
func (r *Repo) Close() error {
	return r.db.Close()
}

// ArtifactByRID resolves an artifact by its store-local rid.
func (r *Repo) ArtifactByRID(ctx context.Context, rid int64) (*Artifact, error) {
	content, err := r.engine.Resolve(ctx, rid)
	if err != nil {
		return nil, err
	}
	hash, err := r.db.HashForRID(ctx, rid)
	if err != nil {
		return nil, err
	}
	return &Artifact{RID: rid, Hash: hash, Content: content}, nil
}

// ArtifactByHash resolves an artifact by full hash or unique prefix.
func (r *Repo) ArtifactByHash(ctx context.Context, prefix string) (*Artifact, error) {
	rid, hash, err := r.db.LookupPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	content, err := r.engine.Resolve(ctx, rid)
	if err != nil {
		return nil, err
	}
	return &Artifact{RID: rid, Hash: hash, Content: content}, nil
}

// Manifest resolves an artifact by hash or unique prefix and parses
// it as a structural artifact.
func (r *Repo) Manifest(ctx context.Context, prefix string) (*manifest.Manifest, error) {
	artifact, err := r.ArtifactByHash(ctx, prefix)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(artifact.Content)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", artifact.Hash, err)
	}
	m.RID = artifact.RID
	m.Hash = artifact.Hash
	return m, nil
}

// ManifestByRID resolves an artifact by rid and parses it as a
// structural artifact.
func (r *Repo) ManifestByRID(ctx context.Context, rid int64) (*manifest.Manifest, error) {
	artifact, err := r.ArtifactByRID(ctx, rid)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(artifact.Content)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", artifact.Hash, err)
	}
	m.RID = artifact.RID
	m.Hash = artifact.Hash
	return m, nil
}

// RIDForHash maps a full hash or unique prefix to its rid.
func (r *Repo) RIDForHash(ctx context.Context, prefix string) (int64, error) {
	rid, _, err := r.db.LookupPrefix(ctx, prefix)
	return rid, err
}

// HashForRID maps a rid to its full content hash.
func (r *Repo) HashForRID(ctx context.Context, rid int64) (string, error) {
	return r.db.HashForRID(ctx, rid)
}

// Query is the raw SQL passthrough. Results bypass the cache and are
// never hash-verified.
func (r *Repo) Query(ctx context.Context, query string, args ...any) ([]repodb.Row, error) {
	return r.db.Query(ctx, query, args...)
}

// Stats returns the resolution engine's counters.
func (r *Repo) Stats() resolve.Stats {
	return r.engine.Stats()
}

// Path returns the repository's filesystem path.
func (r *Repo) Path() string {
	return r.db.Path()
}

// TimelineEntry is one event from the repository timeline.
type TimelineEntry struct {
	RID     int64
	Hash    string
	Type    string // ci, w, t, e, g, f
	Time    time.Time
	Comment string
	User    string
}

// Timeline returns the most recent events, newest first. Event times
// are converted from the stored Julian day numbers. Limit caps the
// result; non-positive means 20.
func (r *Repo) Timeline(ctx context.Context, limit int) ([]TimelineEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT blob.rid, blob.uuid, event.type, event.mtime,
		        coalesce(event.ecomment, event.comment),
		        coalesce(event.euser, event.user)
		 FROM event JOIN blob ON blob.rid = event.objid
		 ORDER BY event.mtime DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]TimelineEntry, 0, len(rows))
	for _, row := range rows {
		entry := TimelineEntry{}
		if rid, ok := row[0].(int64); ok {
			entry.RID = rid
		}
		if hash, ok := row[1].(string); ok {
			entry.Hash = hash
		}
		if eventType, ok := row[2].(string); ok {
			entry.Type = eventType
		}
		if mtime, ok := row[3].(float64); ok {
			entry.Time = julian.ToTime(mtime)
		}
		if comment, ok := row[4].(string); ok {
			entry.Comment = comment
		}
		if user, ok := row[5].(string); ok {
			entry.User = user
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
