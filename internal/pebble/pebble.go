// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pebble implements the [storage.DB] interface on top of
// Pebble, a production-quality key-value database.
package pebble

import (
	"bytes"
	"fmt"
	"iter"
	"log/slog"

	"github.com/cockroachdb/pebble"

	"github.com/gerritkit/gert/internal/storage"
)

// A db is a storage.DB backed by an on-disk Pebble database.
type db struct {
	slog *slog.Logger
	p    *pebble.DB
	path string
}

// Open opens the existing Pebble database in the named directory.
func Open(lg *slog.Logger, dir string) (storage.DB, error) {
	return open(lg, dir, &pebble.Options{ErrorIfNotExists: true})
}

// Create creates a new Pebble database in the named directory.
// It is an error if the database already exists.
func Create(lg *slog.Logger, dir string) (storage.DB, error) {
	return open(lg, dir, &pebble.Options{ErrorIfExists: true})
}

func open(lg *slog.Logger, dir string, opts *pebble.Options) (storage.DB, error) {
	opts.Logger = slogAdapter{lg}
	p, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &db{slog: lg, p: p, path: dir}, nil
}

// panicf logs the formatted message and panics.
// The storage.DB contract makes storage failures fatal.
func (d *db) panicf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.slog.Error(msg, "db", d.path)
	panic("pebble: " + msg)
}

func (d *db) Set(key, val []byte) {
	if len(key) == 0 {
		d.panicf("Set: empty key")
	}
	if err := d.p.Set(key, val, pebble.Sync); err != nil {
		d.panicf("Set %s: %v", storage.Fmt(key), err)
	}
}

func (d *db) Get(key []byte) ([]byte, bool) {
	val, closer, err := d.p.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false
	}
	if err != nil {
		d.panicf("Get %s: %v", storage.Fmt(key), err)
	}
	val = bytes.Clone(val)
	if err := closer.Close(); err != nil {
		d.panicf("Get %s: close: %v", storage.Fmt(key), err)
	}
	return val, true
}

func (d *db) Delete(key []byte) {
	if err := d.p.Delete(key, pebble.Sync); err != nil {
		d.panicf("Delete %s: %v", storage.Fmt(key), err)
	}
}

func (d *db) Scan(lo, hi []byte) iter.Seq2[[]byte, func() []byte] {
	return func(yield func([]byte, func() []byte) bool) {
		// Pebble's upper bound is exclusive; storage.DB's hi is
		// inclusive. hi followed by a zero byte is the smallest
		// key greater than hi.
		it, err := d.p.NewIter(&pebble.IterOptions{
			LowerBound: lo,
			UpperBound: append(bytes.Clone(hi), 0),
		})
		if err != nil {
			d.panicf("Scan [%s, %s]: %v", storage.Fmt(lo), storage.Fmt(hi), err)
		}
		defer it.Close()
		for it.First(); it.Valid(); it.Next() {
			key := bytes.Clone(it.Key())
			val := func() []byte {
				v, err := it.ValueAndErr()
				if err != nil {
					d.panicf("Scan value %s: %v", storage.Fmt(key), err)
				}
				return bytes.Clone(v)
			}
			if !yield(key, val) {
				return
			}
		}
		if err := it.Error(); err != nil {
			d.panicf("Scan [%s, %s]: %v", storage.Fmt(lo), storage.Fmt(hi), err)
		}
	}
}

func (d *db) Flush() {
	if err := d.p.Flush(); err != nil {
		d.panicf("Flush: %v", err)
	}
}

func (d *db) Close() {
	d.Flush()
	if err := d.p.Close(); err != nil {
		d.panicf("Close: %v", err)
	}
}

// A slogAdapter feeds Pebble's own log output into slog at debug
// level.
type slogAdapter struct {
	slog *slog.Logger
}

func (s slogAdapter) Infof(format string, args ...any) {
	s.slog.Debug(fmt.Sprintf(format, args...))
}

func (s slogAdapter) Errorf(format string, args ...any) {
	s.slog.Error(fmt.Sprintf(format, args...))
}

func (s slogAdapter) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.slog.Error(msg)
	panic("pebble: " + msg)
}
