// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps a BadgerDB instance behind a small transactional API.
// The DB is opened once in main and injected into the stores that need it;
// no package-level singleton exists.
package badger

import (
	"context"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the database is opened.
//
// # Description
//
// Dir is the on-disk location of the value log and LSM tree. InMemory
// replaces both with heap-backed storage — used by tests and by deployments
// that run without a cache directory.
type Config struct {
	// Dir is the storage directory. Ignored when InMemory is true.
	Dir string

	// InMemory opens a heap-backed database with no files on disk.
	InMemory bool

	// Logger receives open/close diagnostics. May be nil.
	Logger *slog.Logger
}

// DefaultConfig returns an on-disk configuration rooted at dir.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir}
}

// InMemoryConfig returns a configuration for a heap-backed database.
// Intended for tests and persistence-disabled deployments.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is an opened BadgerDB handle.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type DB struct {
	db     *dgbadger.DB
	logger *slog.Logger
}

// OpenDB opens a BadgerDB instance from the given configuration.
//
// # Description
//
// Badger's own logger is silenced; open/close events are reported through
// the injected slog.Logger instead. The caller owns the returned DB and
// must Close it on shutdown.
//
// # Inputs
//
//   - cfg: Open configuration. Dir must be non-empty unless InMemory is set.
//
// # Outputs
//
//   - *DB: Opened handle. Nil on error.
//   - error: Non-nil if the database cannot be opened.
func OpenDB(cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("badger: Dir must be set for on-disk mode")
		}
		opts = dgbadger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithLogger(nil)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", cfg.Dir, err)
	}

	logger.Debug("badger: opened",
		slog.String("dir", cfg.Dir),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return &DB{db: db, logger: logger}, nil
}

// WithReadTxn runs fn inside a read-only transaction.
//
// # Inputs
//
//   - ctx: Checked before the transaction starts; Badger itself does not
//     observe cancellation mid-transaction.
//   - fn: Transaction body. Errors propagate unchanged.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// WithWriteTxn runs fn inside a read-write transaction.
func (d *DB) WithWriteTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// Close flushes and closes the underlying database.
func (d *DB) Close() error {
	d.logger.Debug("badger: closing")
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("badger: close: %w", err)
	}
	return nil
}
