// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"iter"
	"sync"

	"rsc.io/omap"
)

// A memDB is an in-memory DB implementation backed by an ordered map.
type memDB struct {
	mu   sync.RWMutex
	data omap.Map[string, []byte]
}

// MemDB returns an in-memory DB implementation, for use in tests.
func MemDB() DB {
	return new(memDB)
}

func (db *memDB) Set(key, val []byte) {
	if len(key) == 0 {
		panic("memDB.Set: empty key")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.Set(string(key), bytes.Clone(val))
}

func (db *memDB) Get(key []byte) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	val, ok := db.data.Get(string(key))
	if !ok {
		return nil, false
	}
	return bytes.Clone(val), true
}

func (db *memDB) Delete(key []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.Delete(string(key))
}

// Scan snapshots the matching entries under the read lock and then
// yields from the snapshot, so the caller may mutate the DB freely
// during the iteration.
func (db *memDB) Scan(lo, hi []byte) iter.Seq2[[]byte, func() []byte] {
	return func(yield func([]byte, func() []byte) bool) {
		type entry struct {
			key string
			val []byte
		}
		db.mu.RLock()
		var entries []entry
		for k, v := range db.data.Scan(string(lo), string(hi)) {
			entries = append(entries, entry{k, v})
		}
		db.mu.RUnlock()
		for _, e := range entries {
			val := e.val
			if !yield([]byte(e.key), func() []byte { return bytes.Clone(val) }) {
				return
			}
		}
	}
}

func (db *memDB) Flush() {}

func (db *memDB) Close() {}
