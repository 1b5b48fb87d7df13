// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package repodb

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/relic-scm/relic/lib/blob"
)

// fixtureRecord describes one row for the test repository.
type fixtureRecord struct {
	rid     int64
	content []byte // nil marks a phantom
	srcid   int64  // non-zero marks a delta record
}

// createFixture writes a minimal repository database and returns its
// path plus the hex hash of each record, keyed by rid.
func createFixture(t *testing.T, records []fixtureRecord) (string, map[int64]string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.fossil")

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		t.Fatalf("creating fixture database: %v", err)
	}
	defer conn.Close()

	schema := `
		CREATE TABLE blob(
			rid INTEGER PRIMARY KEY,
			size INTEGER,
			uuid TEXT UNIQUE NOT NULL,
			content BLOB
		);
		CREATE TABLE delta(
			rid INTEGER PRIMARY KEY,
			srcid INTEGER NOT NULL
		);
	`
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		t.Fatalf("creating fixture schema: %v", err)
	}

	hashes := make(map[int64]string)
	for _, record := range records {
		digest, err := blob.ContentDigest(record.content, blob.SHA3Size)
		if err != nil {
			t.Fatalf("hashing fixture content: %v", err)
		}
		uuid := blob.FormatHash(digest)
		hashes[record.rid] = uuid

		if record.content == nil {
			err = sqlitex.Execute(conn,
				`INSERT INTO blob(rid, size, uuid, content) VALUES (?, -1, ?, NULL)`,
				&sqlitex.ExecOptions{Args: []any{record.rid, uuid}})
		} else {
			err = sqlitex.Execute(conn,
				`INSERT INTO blob(rid, size, uuid, content) VALUES (?, ?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{
					record.rid, len(record.content), uuid, blob.Compress(record.content),
				}})
		}
		if err != nil {
			t.Fatalf("inserting fixture record %d: %v", record.rid, err)
		}

		if record.srcid != 0 {
			err = sqlitex.Execute(conn,
				`INSERT INTO delta(rid, srcid) VALUES (?, ?)`,
				&sqlitex.ExecOptions{Args: []any{record.rid, record.srcid}})
			if err != nil {
				t.Fatalf("inserting fixture delta %d: %v", record.rid, err)
			}
		}
	}

	return path, hashes
}

func openFixture(t *testing.T, cfg Config, records []fixtureRecord) (*DB, map[int64]string) {
	t.Helper()
	path, hashes := createFixture(t, records)
	cfg.Path = path
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, hashes
}

func TestOpenMissingRepository(t *testing.T) {
	_, err := Open(Config{Path: filepath.Join(t.TempDir(), "absent.fossil")})
	if err == nil {
		t.Fatal("Open should fail for a repository that does not exist")
	}
}

func TestFetchRecord(t *testing.T) {
	content := []byte("stored artifact")
	db, hashes := openFixture(t, Config{}, []fixtureRecord{
		{rid: 1, content: content},
		{rid: 2, content: []byte("delta payload"), srcid: 1},
		{rid: 3, content: nil}, // phantom
	})
	ctx := context.Background()

	t.Run("compressed", func(t *testing.T) {
		record, err := db.FetchRecord(ctx, 1)
		if err != nil {
			t.Fatalf("FetchRecord failed: %v", err)
		}
		if record.Encoding != blob.EncodingCompressed {
			t.Errorf("Encoding = %v, want compressed", record.Encoding)
		}
		if blob.FormatHash(record.ContentHash) != hashes[1] {
			t.Error("ContentHash does not match the stored uuid")
		}
		decoded, err := blob.Decompress(record.Payload)
		if err != nil {
			t.Fatalf("payload does not decompress: %v", err)
		}
		if !bytes.Equal(decoded, content) {
			t.Errorf("payload = %q, want %q", decoded, content)
		}
	})

	t.Run("delta", func(t *testing.T) {
		record, err := db.FetchRecord(ctx, 2)
		if err != nil {
			t.Fatalf("FetchRecord failed: %v", err)
		}
		if record.Encoding != blob.EncodingDelta {
			t.Errorf("Encoding = %v, want delta", record.Encoding)
		}
		if record.DeltaBase != 1 {
			t.Errorf("DeltaBase = %d, want 1", record.DeltaBase)
		}
	})

	t.Run("phantom", func(t *testing.T) {
		_, err := db.FetchRecord(ctx, 3)
		if !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("FetchRecord(phantom) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := db.FetchRecord(ctx, 999)
		if !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("FetchRecord(missing) error = %v, want ErrNotFound", err)
		}
	})
}

func TestLookupPrefix(t *testing.T) {
	db, hashes := openFixture(t, Config{}, []fixtureRecord{
		{rid: 1, content: []byte("first")},
		{rid: 2, content: []byte("second")},
	})
	ctx := context.Background()

	t.Run("unique prefix", func(t *testing.T) {
		rid, uuid, err := db.LookupPrefix(ctx, hashes[1][:8])
		if err != nil {
			t.Fatalf("LookupPrefix failed: %v", err)
		}
		if rid != 1 || uuid != hashes[1] {
			t.Errorf("LookupPrefix = (%d, %s), want (1, %s)", rid, uuid, hashes[1])
		}
	})

	t.Run("full hash", func(t *testing.T) {
		rid, _, err := db.LookupPrefix(ctx, hashes[2])
		if err != nil || rid != 2 {
			t.Errorf("LookupPrefix(full) = (%d, %v), want rid 2", rid, err)
		}
	})

	t.Run("sha1-length prefix of longer hash", func(t *testing.T) {
		// 40 characters is a full hash in the older generation but a
		// prefix here; the exact-match miss must fall back to the
		// prefix query.
		rid, uuid, err := db.LookupPrefix(ctx, hashes[1][:40])
		if err != nil {
			t.Fatalf("LookupPrefix failed: %v", err)
		}
		if rid != 1 || uuid != hashes[1] {
			t.Errorf("LookupPrefix = (%d, %s), want (1, %s)", rid, uuid, hashes[1])
		}
	})

	t.Run("no match", func(t *testing.T) {
		// Pick a prefix that differs from both fixture hashes.
		miss := "0000"
		if hashes[1][:4] == miss || hashes[2][:4] == miss {
			miss = "1111"
		}
		_, _, err := db.LookupPrefix(ctx, miss)
		if !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("LookupPrefix(miss) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("too short", func(t *testing.T) {
		_, _, err := db.LookupPrefix(ctx, hashes[1][:2])
		if !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("LookupPrefix(short) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("invalid alphabet", func(t *testing.T) {
		_, _, err := db.LookupPrefix(ctx, "not-hex!")
		if !errors.Is(err, blob.ErrNotFound) {
			t.Errorf("LookupPrefix(invalid) error = %v, want ErrNotFound", err)
		}
	})
}

func TestLookupPrefixAmbiguity(t *testing.T) {
	// Shared-prefix hashes require control over the uuid column, so
	// this fixture bypasses the content-hash helper.
	path := filepath.Join(t.TempDir(), "ambiguous.fossil")
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		t.Fatalf("creating fixture: %v", err)
	}
	script := `
		CREATE TABLE blob(rid INTEGER PRIMARY KEY, size INTEGER, uuid TEXT UNIQUE NOT NULL, content BLOB);
		CREATE TABLE delta(rid INTEGER PRIMARY KEY, srcid INTEGER NOT NULL);
		INSERT INTO blob VALUES (1, 3, 'deadbeef11111111111111111111111111111111', x'00');
		INSERT INTO blob VALUES (2, 3, 'deadbeef22222222222222222222222222222222', x'00');
	`
	if err := sqlitex.ExecuteScript(conn, script, nil); err != nil {
		t.Fatalf("fixture script: %v", err)
	}
	conn.Close()

	t.Run("strict", func(t *testing.T) {
		db, err := Open(Config{Path: path, PrefixPolicy: PrefixStrict})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer db.Close()

		_, _, err = db.LookupPrefix(context.Background(), "deadbeef")
		if !errors.Is(err, blob.ErrAmbiguousPrefix) {
			t.Errorf("LookupPrefix error = %v, want ErrAmbiguousPrefix", err)
		}
	})

	t.Run("first", func(t *testing.T) {
		db, err := Open(Config{Path: path, PrefixPolicy: PrefixFirst})
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer db.Close()

		rid, uuid, err := db.LookupPrefix(context.Background(), "deadbeef")
		if err != nil {
			t.Fatalf("LookupPrefix failed: %v", err)
		}
		if rid != 1 || uuid != "deadbeef11111111111111111111111111111111" {
			t.Errorf("LookupPrefix = (%d, %s), want the lexicographically first match", rid, uuid)
		}
	})
}

func TestHashForRID(t *testing.T) {
	db, hashes := openFixture(t, Config{}, []fixtureRecord{
		{rid: 1, content: []byte("content")},
	})
	ctx := context.Background()

	uuid, err := db.HashForRID(ctx, 1)
	if err != nil || uuid != hashes[1] {
		t.Errorf("HashForRID = (%q, %v), want %q", uuid, err, hashes[1])
	}

	if _, err := db.HashForRID(ctx, 42); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("HashForRID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestQueryPassthrough(t *testing.T) {
	db, _ := openFixture(t, Config{}, []fixtureRecord{
		{rid: 1, content: []byte("a")},
		{rid: 2, content: []byte("bc")},
	})
	ctx := context.Background()

	rows, err := db.Query(ctx, `SELECT rid, size, uuid FROM blob WHERE size >= ? ORDER BY rid`, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rid, ok := rows[0][0].(int64); !ok || rid != 1 {
		t.Errorf("rows[0][0] = %v (%T), want int64 1", rows[0][0], rows[0][0])
	}
	if _, ok := rows[0][2].(string); !ok {
		t.Errorf("rows[0][2] = %T, want string", rows[0][2])
	}

	_, err = db.Query(ctx, `SELECT * FROM no_such_table`)
	if !errors.Is(err, ErrStore) {
		t.Errorf("Query(bad) error = %v, want ErrStore", err)
	}
}

func TestQueryIsReadOnly(t *testing.T) {
	db, _ := openFixture(t, Config{}, []fixtureRecord{
		{rid: 1, content: []byte("protected")},
	})

	_, err := db.Query(context.Background(), `DELETE FROM blob`)
	if !errors.Is(err, ErrStore) {
		t.Errorf("write through passthrough error = %v, want ErrStore", err)
	}
}
