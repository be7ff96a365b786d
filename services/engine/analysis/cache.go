// Copyright (C) 2025 Inkwell AI (dev@inkwell.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/inkwell-ai/inkwell/services/engine/datatypes"
)

// ErrCacheMiss is returned by Store.Get when no entry exists for the
// document.
var ErrCacheMiss = errors.New("no cached analysis for document")

// Store persists the last computed analysis result set per document.
//
// Entries are replaced wholesale on every analysis run. Concurrent
// upserts for the same document resolve last-write-wins; there is no
// partially-written state to observe.
type Store interface {
	// Get loads the cached entry for docID, or ErrCacheMiss.
	Get(ctx context.Context, docID string) (*datatypes.CacheEntry, error)

	// Upsert atomically replaces the entry for docID.
	Upsert(ctx context.Context, docID string, entry *datatypes.CacheEntry) error

	// Close releases the underlying storage.
	Close() error
}

// cacheKeyPrefix namespaces analysis entries inside the shared Badger
// keyspace. Keys are always scoped by document id; identical sentences
// in different documents never share a cache slot.
const cacheKeyPrefix = "analysis/"

// BadgerStore is an embedded Store backed by BadgerDB.
//
// Badger gives local, low-latency persistence without an external
// service, and a single Set inside one transaction is exactly the
// whole-entry atomic replace the cache contract requires.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// OpenBadgerStore opens (or creates) a Badger-backed store at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// OpenInMemoryStore opens an in-memory store, for tests.
func OpenInMemoryStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, docID string) (*datatypes.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry datatypes.CacheEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + docID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("load cache entry for %s: %w", docID, err)
	}
	return &entry, nil
}

// Upsert implements Store. The entry is written with a single Set in
// one transaction: either the old or the new entry is visible, never a
// mix.
func (s *BadgerStore) Upsert(ctx context.Context, docID string, entry *datatypes.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry for %s: %w", docID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(cacheKeyPrefix+docID), data)
	})
	if err != nil {
		return fmt.Errorf("write cache entry for %s: %w", docID, err)
	}
	return nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
