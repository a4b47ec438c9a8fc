// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gerrit provides a transport-independent client for a Gerrit
// code-review server.
//
// Gerrit speaks two incompatible protocols: an HTTPS REST API returning
// XSSI-prefixed JSON, and a legacy SSH command protocol returning one
// loosely-typed JSON object per line. Both are normalized here into one
// shared data model, so callers never see transport-specific field names
// or typing. [Dispatcher] is the entry point that routes an operation to
// the right transport for a resolved remote URL.
package gerrit

import (
	"cmp"
	"slices"
)

// The shared data model. Both the REST client and the SSH backend
// produce these types; neither wire shape leaks past its decoder.

// A Change is one Gerrit change under review.
// The JSON field names follow the Gerrit REST API.
type Change struct {
	// ID of the change. The REST API reports a triplet of the
	// form <project>~<branch>~<Change-Id>; the SSH protocol has
	// no such identifier and reports the Change-Id here too.
	ID string `json:"id,omitempty"`

	// The name of the project.
	Project string `json:"project,omitempty"`

	// The name of the target branch.
	// The refs/heads/ prefix is omitted.
	Branch string `json:"branch,omitempty"`

	// The topic to which this change belongs.
	Topic string `json:"topic,omitempty"`

	// The Change-Id of the change, the stable I... trailer value.
	ChangeID string `json:"change_id"`

	// The subject of the change (header line of the commit message).
	Subject string `json:"subject"`

	// The status of the change. Usually one of NEW, MERGED or
	// ABANDONED, but servers may report other values; unknown
	// statuses are carried through as opaque strings.
	Status string `json:"status"`

	// The timestamp of when the change was created.
	// An opaque string: the two transports use different formats,
	// and nothing here ever parses it as a date.
	Created string `json:"created,omitempty"`

	// The timestamp of when the change was last updated.
	// Opaque, like Created.
	Updated string `json:"updated,omitempty"`

	// Number of inserted lines.
	Insertions int `json:"insertions,omitempty"`

	// Number of deleted lines.
	Deletions int `json:"deletions,omitempty"`

	// The change number.
	Number int `json:"_number"`

	// The owner of the change.
	Owner *Account `json:"owner,omitempty"`

	// Messages associated with the change, in chronological order.
	Messages []Message `json:"messages,omitempty"`

	// The commit ID of the current patchset of this change.
	// When Revisions is non-empty and CurrentRevision is set,
	// CurrentRevision is a key of Revisions.
	CurrentRevision string `json:"current_revision,omitempty"`

	// All patchsets of this change as a map that maps the commit
	// ID of the patchset to a Revision entity. May hold only the
	// current revision, depending on the query options used.
	Revisions map[string]*Revision `json:"revisions,omitempty"`
}

// RevisionHashes returns the keys of Revisions ordered by ascending
// patchset number, breaking ties by hash.
func (c *Change) RevisionHashes() []string {
	hashes := make([]string, 0, len(c.Revisions))
	for h := range c.Revisions {
		hashes = append(hashes, h)
	}
	slices.SortFunc(hashes, func(a, b string) int {
		if n := cmp.Compare(c.Revisions[a].Number, c.Revisions[b].Number); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})
	return hashes
}

// A Revision describes one patchset of a change.
// Revisions are immutable once created by Gerrit; this package only
// indexes them, by commit ID or by patchset number.
type Revision struct {
	// The patchset number, counting from 1 within a change.
	Number int `json:"_number"`

	// The git ref of the patchset, refs/changes/AA/CHANGE/PS.
	Ref string `json:"ref,omitempty"`

	// The timestamp of when the patchset was created. Opaque.
	Created string `json:"created,omitempty"`

	// The uploader of the patchset.
	Uploader *Account `json:"uploader,omitempty"`

	// The commit of the patchset. Optional metadata; not all
	// queries populate it.
	Commit *Commit `json:"commit,omitempty"`
}

// A Commit holds the commit metadata of a revision.
type Commit struct {
	// The subject of the commit (header line of the commit message).
	Subject string `json:"subject,omitempty"`

	// The full commit message.
	Message string `json:"message,omitempty"`

	// The author of the commit.
	Author *GitPerson `json:"author,omitempty"`

	// The committer of the commit.
	Committer *GitPerson `json:"committer,omitempty"`
}

// A GitPerson is the author or committer recorded in a commit.
type GitPerson struct {
	// The name of the author/committer.
	Name string `json:"name,omitempty"`

	// The email address of the author/committer.
	Email string `json:"email,omitempty"`

	// The timestamp of when this identity was constructed. Opaque.
	Date string `json:"date,omitempty"`
}

// An Account is a reviewer or owner identity.
type Account struct {
	// The numeric ID of the account. Only the REST API reports
	// it; SSH results leave it zero.
	AccountID int `json:"_account_id,omitempty"`

	// The full name of the user.
	Name string `json:"name,omitempty"`

	// The display name of the user.
	DisplayName string `json:"display_name,omitempty"`

	// The email address the user prefers to be contacted through.
	Email string `json:"email,omitempty"`

	// The username of the user.
	Username string `json:"username,omitempty"`
}

// SameAs reports whether a and b plausibly identify the same user.
// Either side may be missing fields, depending on which transport
// produced it: two accounts match on the strongest field both carry,
// trying account ID, then email, then username.
func (a *Account) SameAs(b *Account) bool {
	if a == nil || b == nil {
		return false
	}
	if a.AccountID != 0 && b.AccountID != 0 {
		return a.AccountID == b.AccountID
	}
	if a.Email != "" && b.Email != "" {
		return a.Email == b.Email
	}
	if a.Username != "" && b.Username != "" {
		return a.Username == b.Username
	}
	return false
}

// A Message is one review message on a change, such as a vote or a
// comment summary posted on a patchset.
type Message struct {
	// The ID of the message.
	ID string `json:"id,omitempty"`

	// The author of the message. Unset for messages generated by
	// the server.
	Author *Account `json:"author,omitempty"`

	// The timestamp this message was posted. Opaque.
	Date string `json:"date,omitempty"`

	// The text of the message.
	Message string `json:"message,omitempty"`

	// Which patchset (if any) generated this message.
	RevisionNumber int `json:"_revision_number,omitempty"`
}

// A Comment is a single inline or file-level review note.
type Comment struct {
	// The opaque ID of the comment.
	ID string `json:"id"`

	// The file path the comment applies to. The REST API keys
	// comments by path and omits the field from each entry; the
	// decoder fills it in from the map key.
	Path string `json:"path,omitempty"`

	// The patchset number the comment was left on.
	PatchSet int `json:"patch_set,omitempty"`

	// The line of the file the comment applies to.
	// Zero means the comment is file-level.
	Line int `json:"line,omitempty"`

	// The range of the comment, if it spans more than a point.
	Range *CommentRange `json:"range,omitempty"`

	// The ID of the comment this one is a reply to, if any.
	InReplyTo string `json:"in_reply_to,omitempty"`

	// The text of the comment.
	Message string `json:"message,omitempty"`

	// The timestamp this comment was last updated. An opaque
	// string, used only for ordering comments within a thread.
	Updated string `json:"updated"`

	// The author of the comment.
	Author *Account `json:"author,omitempty"`

	// Whether the comment is unresolved. Absence of the field
	// means unresolved: a server omission is never treated as
	// resolved.
	Unresolved *bool `json:"unresolved,omitempty"`
}

// A CommentRange describes the file region a comment covers.
// Lines count from 1, character positions from 0, and the end
// position is exclusive.
type CommentRange struct {
	// The start line of the range.
	StartLine int `json:"start_line"`

	// The character position in the start line.
	StartCharacter int `json:"start_character"`

	// The end line of the range.
	EndLine int `json:"end_line"`

	// The character position in the end line.
	EndCharacter int `json:"end_character"`
}

// A CommentThread is one reconstructed reply chain: a root comment
// and every transitive reply to it, flattened depth-first. Threads
// are derived by [BuildThreads]; they are never stored or sent.
type CommentThread struct {
	// The file the thread applies to.
	Path string

	// The line the thread starts on; zero for file-level threads.
	Line int

	// Whether the thread is resolved: true iff the chronologically
	// last comment in the thread has Unresolved explicitly false.
	Resolved bool

	// The comments of the thread. The root comes first; replies
	// follow depth-first, each branch ordered by update time.
	Comments []*Comment
}
