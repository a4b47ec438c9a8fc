// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mirror keeps a local copy of Gerrit query results in an
// ordered key-value database, so dashboards and offline tooling can
// read review state without a server round trip per view.
//
// The mirror stores the shared [gerrit.Change] model verbatim as JSON
// and is never consulted by the transport layer itself; it is a
// caller of the Dispatcher like any other.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"rsc.io/ordered"

	"github.com/gerritkit/gert/internal/gerrit"
	"github.com/gerritkit/gert/internal/storage"
)

// Key kinds. Changes are stored under (changeKind, project, number);
// per-project sync marks under (markKind, project).
const (
	changeKind = "mirror.Change"
	markKind   = "mirror.Sync"
)

// o is short for ordered.Encode.
func o(list ...any) []byte { return ordered.Encode(list...) }

// A Mirror stores the most recent query results per project.
// It is safe for concurrent use if its DB is.
type Mirror struct {
	slog *slog.Logger
	db   storage.DB
}

// New returns a Mirror storing into db.
func New(lg *slog.Logger, db storage.DB) *Mirror {
	return &Mirror{slog: lg, db: db}
}

// A Mark records how fresh a project's mirrored changes are.
type Mark struct {
	// Project is the Gerrit project name.
	Project string `json:"project"`

	// Count is the number of changes stored for the project.
	Count int `json:"count"`

	// Updated is the largest change-update timestamp seen for the
	// project. Opaque, like the model's timestamps; it only ever
	// moves forward by string comparison.
	Updated string `json:"updated,omitempty"`

	// SyncTime is the wall-clock time of the last Store, RFC 3339.
	SyncTime string `json:"sync_time"`
}

// Store upserts changes under their (project, number) keys and
// refreshes the project's sync mark. Changes already stored keep
// their entries; Store never removes anything.
func (m *Mirror) Store(project string, changes []*gerrit.Change) error {
	mark, _ := m.Mark(project)
	mark.Project = project
	for _, ch := range changes {
		if ch.Number <= 0 {
			return fmt.Errorf("mirror: change %q in project %s has no number", ch.ChangeID, project)
		}
		m.db.Set(o(changeKind, project, ch.Number), storage.JSON(ch))
		if ch.Updated > mark.Updated {
			mark.Updated = ch.Updated
		}
	}

	// Recount the stored keys rather than trusting arithmetic on
	// upserts. The values are not loaded.
	n := 0
	for range m.db.Scan(o(changeKind, project), o(changeKind, project, ordered.Inf)) {
		n++
	}
	mark.Count = n
	mark.SyncTime = time.Now().UTC().Format(time.RFC3339)

	m.db.Set(o(markKind, project), storage.JSON(mark))
	m.db.Flush()
	m.slog.Info("mirror store", "project", project, "stored", len(changes), "total", n)
	return nil
}

// Mark returns the sync mark for a project.
func (m *Mirror) Mark(project string) (Mark, bool) {
	val, ok := m.db.Get(o(markKind, project))
	if !ok {
		return Mark{}, false
	}
	var mark Mark
	if err := json.Unmarshal(val, &mark); err != nil {
		// unreachable except for db corruption
		panic(fmt.Sprintf("mirror: decoding sync mark for %s: %v", project, err))
	}
	return mark, true
}

// Change returns the stored change, or nil if the mirror has no entry
// for it.
func (m *Mirror) Change(project string, number int) *gerrit.Change {
	val, ok := m.db.Get(o(changeKind, project, number))
	if !ok {
		return nil
	}
	return decodeChange(project, number, val)
}

// Changes returns an iterator over the mirrored changes of a project
// in ascending change-number order. The second iteration value
// decodes the change when called, so scans that only need numbers
// skip the decoding.
func (m *Mirror) Changes(project string) iter.Seq2[int, func() *gerrit.Change] {
	return func(yield func(int, func() *gerrit.Change) bool) {
		for key, fn := range m.db.Scan(o(changeKind, project), o(changeKind, project, ordered.Inf)) {
			var number int
			if err := ordered.Decode(key, nil, nil, &number); err != nil {
				// unreachable except for db corruption
				panic(fmt.Sprintf("mirror: malformed change key %s: %v", storage.Fmt(key), err))
			}
			val := fn()
			cfn := func() *gerrit.Change {
				return decodeChange(project, number, val)
			}
			if !yield(number, cfn) {
				return
			}
		}
	}
}

// decodeChange unpacks a stored change value. The value was written
// by Store through [storage.JSON], so failure means the database was
// corrupted, not that a server misbehaved.
func decodeChange(project string, number int, val []byte) *gerrit.Change {
	var ch gerrit.Change
	if err := json.Unmarshal(val, &ch); err != nil {
		// unreachable except for db corruption
		panic(fmt.Sprintf("mirror: decoding change %s/%d: %v", project, number, err))
	}
	return &ch
}

// Refresh queries the open changes of a project through d and stores
// the result.
func (m *Mirror) Refresh(ctx context.Context, d *gerrit.Dispatcher, project, branch string) error {
	query := "status:open project:" + project
	if branch != "" {
		query += " branch:" + branch
	}
	changes, err := d.QueryChanges(ctx, query)
	if err != nil {
		return fmt.Errorf("refreshing mirror for %s: %w", project, err)
	}
	return m.Store(project, changes)
}
