// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage defines the ordered key-value interface the change
// mirror persists into, along with an in-memory implementation for
// tests. The interface is deliberately small: the mirror only ever
// sets, gets, deletes, and scans ordered keys.
package storage

import (
	"encoding/json"
	"fmt"
	"iter"

	"rsc.io/ordered"
)

// A DB is an ordered key-value database.
//
// DB operations never fail: failure of the underlying storage is
// treated by the implementation as fatal, so callers do not check
// errors, the same contract a program has with its own memory.
// Implementations must be safe for concurrent use.
type DB interface {
	// Set sets the value associated with key.
	Set(key, val []byte)

	// Get looks up the value associated with key.
	// If there is no entry for key, Get returns nil, false.
	Get(key []byte) (val []byte, ok bool)

	// Delete deletes any entry with the given key.
	// It is not an error to delete a nonexistent key.
	Delete(key []byte)

	// Scan returns an iterator over all key-value pairs with
	// lo ≤ key ≤ hi, in key order. The second iteration value is
	// a function returning the entry's value, so scans that skip
	// most entries need not load them. The returned value must
	// be retrieved before the iteration advances.
	Scan(lo, hi []byte) iter.Seq2[[]byte, func() []byte]

	// Flush flushes pending changes to permanent storage.
	Flush()

	// Close flushes and closes the database.
	// No other methods may be called after Close.
	Close()
}

// JSON returns the JSON encoding of v, for storing in a DB value.
// It panics if v cannot be encoded.
func JSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("storage.JSON: %v", err))
	}
	return data
}

// Fmt formats data for display, decoding the rsc.io/ordered encoding
// used for DB keys when possible.
func Fmt(data []byte) string {
	if s, err := ordered.DecodeFmt(data); err == nil {
		return s
	}
	return fmt.Sprintf("%q", data)
}
