// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pebble

import (
	"path/filepath"
	"testing"

	"github.com/gerritkit/gert/internal/storage"
	"github.com/gerritkit/gert/internal/testutil"
)

func TestDB(t *testing.T) {
	lg := testutil.Slogger(t)
	dir := t.TempDir()
	dbname := filepath.Join(dir, "db1")

	db, err := Open(lg, dbname)
	if err == nil {
		t.Fatal("Open nonexistent succeeded")
	}

	db, err = Create(lg, dbname)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = Create(lg, dbname)
	if err == nil {
		t.Fatal("Create already-existing succeeded")
	}

	db, err = Open(lg, dbname)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	storage.TestDB(t, db)
}

func TestPersistence(t *testing.T) {
	lg := testutil.Slogger(t)
	dbname := filepath.Join(t.TempDir(), "db")

	db, err := Create(lg, dbname)
	if err != nil {
		t.Fatal(err)
	}
	db.Set([]byte("key"), []byte("value"))
	db.Close()

	db, err = Open(lg, dbname)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if val, ok := db.Get([]byte("key")); !ok || string(val) != "value" {
		t.Errorf("Get(key) after reopen = %q, %v, want %q, true", val, ok, "value")
	}
}
