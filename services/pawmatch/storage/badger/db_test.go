// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"errors"
	"testing"

	dgbadger "github.com/dgraph-io/badger/v4"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(InMemoryConfig())
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestOpenDBRequiresDir(t *testing.T) {
	if _, err := OpenDB(Config{}); err == nil {
		t.Error("OpenDB() with no Dir and no InMemory succeeded, want error")
	}
}

func TestWriteAndReadTxn(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithWriteTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("WithWriteTxn() error = %v", err)
	}

	var got []byte
	err = db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		got, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		t.Fatalf("WithReadTxn() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("read %q, want %q", got, "v")
	}
}

func TestReadTxnMissingKey(t *testing.T) {
	db := openTestDB(t)

	err := db.WithReadTxn(context.Background(), func(txn *dgbadger.Txn) error {
		_, err := txn.Get([]byte("absent"))
		return err
	})
	if !errors.Is(err, dgbadger.ErrKeyNotFound) {
		t.Errorf("error = %v, want ErrKeyNotFound", err)
	}
}

func TestTxnCancelledContext(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := db.WithReadTxn(ctx, func(*dgbadger.Txn) error { return nil }); err == nil {
		t.Error("WithReadTxn() with cancelled context succeeded, want error")
	}
	if err := db.WithWriteTxn(ctx, func(*dgbadger.Txn) error { return nil }); err == nil {
		t.Error("WithWriteTxn() with cancelled context succeeded, want error")
	}
}
