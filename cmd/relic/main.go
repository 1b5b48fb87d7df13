// Copyright 2026 The Relic Authors
// SPDX-License-Identifier: Apache-2.0

// relic is a read-only command-line reader for Fossil SCM
// repositories. It resolves artifacts by rid or hash prefix through
// the resolution engine, parses structural artifacts, walks the
// timeline, and passes raw SQL through to the backing store.
//
// Usage:
//
//	relic --repo project.fossil cat a1b2c3d4
//	relic --repo project.fossil manifest trunk-tip-hash
//	relic --repo project.fossil timeline -n 30
//	relic --repo project.fossil info
//	relic --repo project.fossil sql "SELECT count(*) FROM blob"
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/relic-scm/relic/lib/repo"
	"github.com/relic-scm/relic/lib/repodb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relic: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		repoPath     string
		configPath   string
		cacheSize    int
		verify       bool
		prefixPolicy string
		logLevel     string
		limit        int
	)

	flagSet := pflag.NewFlagSet("relic", pflag.ContinueOnError)
	flagSet.StringVar(&repoPath, "repo", "", "path to the repository file (or set in config)")
	flagSet.StringVar(&configPath, "config", "", "path to YAML config (or RELIC_CONFIG)")
	flagSet.IntVar(&cacheSize, "cache-size", 0, "resolved-artifact cache capacity (0 disables)")
	flagSet.BoolVar(&verify, "verify", false, "verify content hashes on resolution")
	flagSet.StringVar(&prefixPolicy, "prefix-policy", "", "ambiguous prefix handling: strict or first")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.IntVarP(&limit, "limit", "n", 0, "entry limit for timeline")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: relic [flags] <cat|manifest|timeline|info|sql> [args]\n\nFlags:\n%s",
			flagSet.FlagUsages())
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Flags override file values only when set explicitly.
	if flagSet.Changed("repo") {
		cfg.Repository = repoPath
	}
	if flagSet.Changed("cache-size") {
		cfg.CacheCapacity = cacheSize
	}
	if flagSet.Changed("verify") {
		cfg.VerifyIntegrity = verify
	}
	if flagSet.Changed("prefix-policy") {
		cfg.PrefixPolicy = prefixPolicy
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	args := flagSet.Args()
	if len(args) == 0 {
		flagSet.Usage()
		return fmt.Errorf("subcommand required")
	}

	if cfg.Repository == "" {
		return fmt.Errorf("no repository: pass --repo or set repository in the config file")
	}

	policy, err := repodb.ParsePrefixPolicy(cfg.PrefixPolicy)
	if err != nil {
		return err
	}

	r, err := repo.Open(cfg.Repository, repo.Options{
		CacheCapacity: cfg.CacheCapacity,
		VerifyContent: cfg.VerifyIntegrity,
		PrefixPolicy:  policy,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := context.Background()

	switch command, rest := args[0], args[1:]; command {
	case "cat":
		return cmdCat(ctx, r, rest)
	case "manifest":
		return cmdManifest(ctx, r, rest)
	case "timeline":
		return cmdTimeline(ctx, r, limit)
	case "info":
		return cmdInfo(ctx, r)
	case "sql":
		return cmdSQL(ctx, r, rest)
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}
