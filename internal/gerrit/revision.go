// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import "fmt"

// FindTargetRevision picks the revision a user asked to work with.
//
// A positive patchset selects the revision with that patchset number.
// Zero or negative selects the change's current revision. The
// returned hash is the commit ID keying ch.Revisions.
//
// A change with an empty revision map yields [ErrNoRevisionData]
// whatever was asked for. A patchset number that matches nothing
// yields a [RevisionNotFoundError] naming it, so callers can tell a
// bad patchset from a badly populated change.
func FindTargetRevision(ch *Change, patchset int) (string, *Revision, error) {
	if len(ch.Revisions) == 0 {
		return "", nil, ErrNoRevisionData
	}
	if patchset > 0 {
		for hash, rev := range ch.Revisions {
			if rev.Number == patchset {
				return hash, rev, nil
			}
		}
		return "", nil, &RevisionNotFoundError{Patchset: patchset}
	}
	if ch.CurrentRevision == "" {
		return "", nil, ErrNoCurrentRevision
	}
	rev, ok := ch.Revisions[ch.CurrentRevision]
	if !ok {
		return "", nil, fmt.Errorf("current revision %s not found in revision map", ch.CurrentRevision)
	}
	return ch.CurrentRevision, rev, nil
}
