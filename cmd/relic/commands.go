// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/relic-scm/relic/lib/manifest"
	"github.com/relic-scm/relic/lib/repo"
)

// lookupArtifact resolves a positional argument that is either a
// decimal rid or a hash prefix.
func lookupArtifact(ctx context.Context, r *repo.Repo, key string) (*repo.Artifact, error) {
	if rid, err := strconv.ParseInt(key, 10, 64); err == nil {
		return r.ArtifactByRID(ctx, rid)
	}
	return r.ArtifactByHash(ctx, key)
}

func cmdCat(ctx context.Context, r *repo.Repo, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: relic cat <hash|rid>")
	}
	artifact, err := lookupArtifact(ctx, r, args[0])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(artifact.Content)
	return err
}

func cmdManifest(ctx context.Context, r *repo.Repo, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: relic manifest <hash|rid>")
	}

	var (
		parsed *manifest.Manifest
		err    error
	)
	if rid, ridErr := strconv.ParseInt(args[0], 10, 64); ridErr == nil {
		parsed, err = r.ManifestByRID(ctx, rid)
	} else {
		parsed, err = r.Manifest(ctx, args[0])
	}
	if err != nil {
		return err
	}
	return printManifest(parsed)
}

func cmdTimeline(ctx context.Context, r *repo.Repo, limit int) error {
	entries, err := r.Timeline(ctx, limit)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, entry := range entries {
		comment := entry.Comment
		if idx := strings.IndexByte(comment, '\n'); idx >= 0 {
			comment = comment[:idx]
		}
		fmt.Fprintf(writer, "%s\t%s\t%.10s\t%s\t(%s)\n",
			entry.Time.Format("2006-01-02 15:04:05"),
			entry.Type, entry.Hash, comment, entry.User)
	}
	return writer.Flush()
}

func cmdInfo(ctx context.Context, r *repo.Repo) error {
	name := "(unnamed)"
	if rows, err := r.Query(ctx, `SELECT value FROM config WHERE name = 'project-name'`); err == nil && len(rows) == 1 {
		if value, ok := rows[0][0].(string); ok && value != "" {
			name = value
		}
	}

	counts, err := r.Query(ctx,
		`SELECT count(*),
		        sum(CASE WHEN size < 0 THEN 1 ELSE 0 END),
		        (SELECT count(*) FROM delta)
		 FROM blob`)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "project:\t%s\n", name)
	fmt.Fprintf(writer, "repository:\t%s\n", r.Path())
	if len(counts) == 1 {
		row := counts[0]
		fmt.Fprintf(writer, "artifacts:\t%v\n", row[0])
		fmt.Fprintf(writer, "phantoms:\t%v\n", orZero(row[1]))
		fmt.Fprintf(writer, "delta-stored:\t%v\n", row[2])
	}
	stats := r.Stats()
	fmt.Fprintf(writer, "cache:\t%d hits, %d misses, %d fetches, %d resident\n",
		stats.CacheHits, stats.CacheMisses, stats.StoreFetches, stats.CacheLen)
	return writer.Flush()
}

// orZero renders NULL aggregate results as 0.
func orZero(value any) any {
	if value == nil {
		return int64(0)
	}
	return value
}

func cmdSQL(ctx context.Context, r *repo.Repo, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: relic sql <query>")
	}
	rows, err := r.Query(ctx, args[0])
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, row := range rows {
		fields := make([]string, len(row))
		for i, value := range row {
			switch v := value.(type) {
			case nil:
				fields[i] = "NULL"
			case []byte:
				fields[i] = hex.EncodeToString(v)
			default:
				fields[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(writer, strings.Join(fields, "\t"))
	}
	return writer.Flush()
}

func printManifest(m *manifest.Manifest) error {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintf(writer, "artifact:\t%s\n", m.Hash)
	if m.User != "" {
		fmt.Fprintf(writer, "user:\t%s\n", m.User)
	}
	if !m.Date.IsZero() {
		fmt.Fprintf(writer, "date:\t%s\n", m.Date.Format("2006-01-02 15:04:05"))
	}
	if m.Comment != "" {
		fmt.Fprintf(writer, "comment:\t%s\n", strings.ReplaceAll(m.Comment, "\n", " "))
	}
	for _, parent := range m.Parents {
		fmt.Fprintf(writer, "parent:\t%s\n", parent)
	}
	if m.Baseline != "" {
		fmt.Fprintf(writer, "baseline:\t%s\n", m.Baseline)
	}
	for _, file := range m.Files {
		line := file.Name
		if file.Perm != "" {
			line += " [" + file.Perm + "]"
		}
		fmt.Fprintf(writer, "file:\t%s\t%.10s\n", line, file.Hash)
	}
	for _, tag := range m.Tags {
		fmt.Fprintf(writer, "tag:\t%s\n", tag.Name)
	}
	if m.WikiTitle != "" {
		fmt.Fprintf(writer, "wiki:\t%s\n", m.WikiTitle)
	}
	if m.TicketID != "" {
		fmt.Fprintf(writer, "ticket:\t%s\n", m.TicketID)
	}
	for _, change := range m.TicketChanges {
		fmt.Fprintf(writer, "change:\t%s\t%s\n", change.Field, change.Value)
	}
	return writer.Flush()
}
