// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package repodb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/relic-scm/relic/lib/blob"
)

// ErrStore marks failures of the raw query passthrough: malformed
// SQL, missing tables, backing-store I/O errors. Deliberately
// distinct from the resolution error kinds in lib/blob.
var ErrStore = errors.New("store query failed")

// MinPrefixLength is the shortest hash prefix LookupPrefix accepts.
// Shorter prefixes are almost always ambiguous and force wide scans.
const MinPrefixLength = 4

// PrefixPolicy selects how LookupPrefix treats a prefix that matches
// more than one record.
type PrefixPolicy int

const (
	// PrefixStrict fails with blob.ErrAmbiguousPrefix on multiple
	// matches. The default: a prefix that stops being unique as the
	// repository grows should be noticed, not silently re-bound.
	PrefixStrict PrefixPolicy = iota

	// PrefixFirst deterministically returns the lexicographically
	// first matching hash.
	PrefixFirst
)

// String returns the configuration name of the policy.
func (p PrefixPolicy) String() string {
	switch p {
	case PrefixStrict:
		return "strict"
	case PrefixFirst:
		return "first"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePrefixPolicy parses a policy from its configuration name.
func ParsePrefixPolicy(name string) (PrefixPolicy, error) {
	switch name {
	case "strict", "":
		return PrefixStrict, nil
	case "first":
		return PrefixFirst, nil
	default:
		return 0, fmt.Errorf("unknown prefix policy %q (want strict or first)", name)
	}
}

// Config holds the parameters for opening a repository database.
// Path is required; all other fields have defaults.
type Config struct {
	// Path is the filesystem path to the repository SQLite file. The
	// file must already exist — repositories are never created here.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative. The store is read-only, so extra
	// connections only help concurrent readers.
	PoolSize int

	// PrefixPolicy selects the ambiguous-prefix behavior for
	// LookupPrefix. Defaults to PrefixStrict.
	PrefixPolicy PrefixPolicy

	// Logger receives operational messages (open/close). If nil, a
	// no-op logger is used.
	Logger *slog.Logger
}

// DB is a read-only handle on a repository database. Safe for
// concurrent use; individual connections are not shared.
type DB struct {
	pool   *sqlitex.Pool
	policy PrefixPolicy
	logger *slog.Logger
	path   string
}

// Open opens the repository database read-only and applies read-tuned
// pragmas to every connection. The caller must Close the handle when
// done.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("repodb: Path is required")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("repodb: repository %s: %w", cfg.Path, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: poolSize,
		Flags:    sqlite.OpenReadOnly,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repodb: opening %s: %w", cfg.Path, err)
	}

	logger.Info("repository opened",
		"path", cfg.Path,
		"pool_size", poolSize,
		"prefix_policy", cfg.PrefixPolicy.String(),
	)

	return &DB{
		pool:   pool,
		policy: cfg.PrefixPolicy,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// prepareConnection applies read pragmas. query_only is a backstop on
// top of the read-only open flags; case_sensitive_like makes the
// prefix LIKE scan use the uuid index.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA query_only=ON",
		"PRAGMA case_sensitive_like=ON",
		"PRAGMA cache_size=-8192",
		"PRAGMA mmap_size=268435456",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("repodb: %s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes all connections in the pool. Blocks until borrowed
// connections are returned.
func (db *DB) Close() error {
	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("repodb: closing %s: %w", db.path, err)
	}
	db.logger.Info("repository closed", "path", db.path)
	return nil
}

// Path returns the filesystem path of the repository.
func (db *DB) Path() string {
	return db.path
}

// FetchRecord reads the raw record row for a rid. Missing rows and
// phantoms (rows whose content has not been received) fail with
// blob.ErrNotFound.
func (db *DB) FetchRecord(ctx context.Context, rid int64) (blob.RawRecord, error) {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return blob.RawRecord{}, fmt.Errorf("repodb: take connection: %w", err)
	}
	defer db.pool.Put(conn)

	record := blob.RawRecord{RID: rid}
	found := false

	err = sqlitex.Execute(conn,
		`SELECT blob.uuid, blob.size, blob.content, delta.srcid
		 FROM blob LEFT JOIN delta ON delta.rid = blob.rid
		 WHERE blob.rid = ?`,
		&sqlitex.ExecOptions{
			Args: []any{rid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true

				hash, err := blob.ParseHash(stmt.ColumnText(0))
				if err != nil {
					return fmt.Errorf("record %d: %w", rid, err)
				}
				record.ContentHash = hash

				// Negative size marks a phantom: the record is known
				// by hash but its content was never received.
				if stmt.ColumnInt64(1) < 0 || stmt.ColumnIsNull(2) {
					return fmt.Errorf("record %d is a phantom: %w", rid, blob.ErrNotFound)
				}

				payload := make([]byte, stmt.ColumnLen(2))
				stmt.ColumnBytes(2, payload)
				record.Payload = payload

				if stmt.ColumnIsNull(3) {
					record.Encoding = blob.EncodingCompressed
				} else {
					record.Encoding = blob.EncodingDelta
					record.DeltaBase = stmt.ColumnInt64(3)
				}
				return nil
			},
		})
	if err != nil {
		return blob.RawRecord{}, err
	}
	if !found {
		return blob.RawRecord{}, fmt.Errorf("record %d: %w", rid, blob.ErrNotFound)
	}

	return record, nil
}

// LookupPrefix resolves a hash string or unique prefix to a rid and
// the full hash. Full-length hashes (40 or 64 characters) try an
// exact match first; a 40-character string that matches nothing is
// retried as a prefix of the longer hash form. Prefixes must be
// lowercase hex of at least MinPrefixLength characters. Ambiguity
// handling follows the configured PrefixPolicy.
func (db *DB) LookupPrefix(ctx context.Context, prefix string) (int64, string, error) {
	if !blob.ValidHashPrefix(prefix) {
		return 0, "", fmt.Errorf("hash prefix %q is not lowercase hex: %w", prefix, blob.ErrNotFound)
	}

	conn, err := db.pool.Take(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("repodb: take connection: %w", err)
	}
	defer db.pool.Put(conn)

	type match struct {
		rid  int64
		uuid string
	}
	var matches []match

	collect := func(stmt *sqlite.Stmt) error {
		matches = append(matches, match{
			rid:  stmt.ColumnInt64(0),
			uuid: stmt.ColumnText(1),
		})
		return nil
	}

	if len(prefix) == 40 || len(prefix) == 64 {
		err = sqlitex.Execute(conn,
			`SELECT rid, uuid FROM blob WHERE uuid = ?`,
			&sqlitex.ExecOptions{Args: []any{prefix}, ResultFunc: collect})
		// A 40-character string is a full first-generation hash but
		// also a possible prefix of a 64-character hash. An exact
		// match wins; otherwise fall through to the prefix query.
		if err == nil && len(matches) == 0 && len(prefix) == 40 {
			err = sqlitex.Execute(conn,
				`SELECT rid, uuid FROM blob WHERE uuid LIKE ? ORDER BY uuid LIMIT 2`,
				&sqlitex.ExecOptions{Args: []any{prefix + "%"}, ResultFunc: collect})
		}
	} else {
		if len(prefix) < MinPrefixLength {
			return 0, "", fmt.Errorf("hash prefix %q shorter than %d characters: %w",
				prefix, MinPrefixLength, blob.ErrNotFound)
		}
		// The hex alphabet contains no LIKE metacharacters, so the
		// validated prefix is safe to splice into the pattern.
		err = sqlitex.Execute(conn,
			`SELECT rid, uuid FROM blob WHERE uuid LIKE ? ORDER BY uuid LIMIT 2`,
			&sqlitex.ExecOptions{Args: []any{prefix + "%"}, ResultFunc: collect})
	}
	if err != nil {
		return 0, "", fmt.Errorf("repodb: prefix lookup %q: %w", prefix, err)
	}

	switch {
	case len(matches) == 0:
		return 0, "", fmt.Errorf("no record with hash prefix %q: %w", prefix, blob.ErrNotFound)
	case len(matches) > 1 && db.policy == PrefixStrict:
		return 0, "", fmt.Errorf("hash prefix %q matches %s and %s: %w",
			prefix, matches[0].uuid, matches[1].uuid, blob.ErrAmbiguousPrefix)
	default:
		return matches[0].rid, matches[0].uuid, nil
	}
}

// HashForRID maps a rid to its full content hash.
func (db *DB) HashForRID(ctx context.Context, rid int64) (string, error) {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("repodb: take connection: %w", err)
	}
	defer db.pool.Put(conn)

	var uuid string
	err = sqlitex.Execute(conn,
		`SELECT uuid FROM blob WHERE rid = ?`,
		&sqlitex.ExecOptions{
			Args: []any{rid},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				uuid = stmt.ColumnText(0)
				return nil
			},
		})
	if err != nil {
		return "", fmt.Errorf("repodb: hash for rid %d: %w", rid, err)
	}
	if uuid == "" {
		return "", fmt.Errorf("record %d: %w", rid, blob.ErrNotFound)
	}
	return uuid, nil
}

// Row is one result row of the raw query passthrough: typed scalars
// (int64, float64, string, []byte) with nil for SQL NULL.
type Row []any

// Query runs an arbitrary SQL statement with positional arguments and
// returns all rows. This is the documented escape hatch for
// store-specific introspection — results bypass the cache and are
// never hash-verified. Failures wrap ErrStore.
func (db *DB) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("repodb: take connection: %w", err)
	}
	defer db.pool.Put(conn)

	var rows []Row
	err = sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			row := make(Row, stmt.ColumnCount())
			for i := range row {
				switch stmt.ColumnType(i) {
				case sqlite.TypeInteger:
					row[i] = stmt.ColumnInt64(i)
				case sqlite.TypeFloat:
					row[i] = stmt.ColumnFloat(i)
				case sqlite.TypeText:
					row[i] = stmt.ColumnText(i)
				case sqlite.TypeBlob:
					value := make([]byte, stmt.ColumnLen(i))
					stmt.ColumnBytes(i, value)
					row[i] = value
				default:
					row[i] = nil
				}
			}
			rows = append(rows, row)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return rows, nil
}
