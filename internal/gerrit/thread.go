// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"cmp"
	"maps"
	"slices"
)

// BuildThreads reconstructs reply threads from the flat per-file
// comment lists the API returns.
//
// Comments name their parent by ID in InReplyTo. Each comment with no
// parent, or whose parent is absent from the input, roots a thread of
// its own; replies are flattened depth-first under their root, with
// siblings ordered by Updated timestamp (stable on ties). A thread is
// resolved when its last comment says Unresolved false explicitly; a
// comment that omits the field counts as unresolved.
//
// Threads come back sorted by file path, then by line, with
// file-level threads (line 0) first within their file. The input maps
// and slices are not modified, and equal inputs produce identical
// output.
func BuildThreads(comments map[string][]*Comment) []*CommentThread {
	var all []*Comment
	for _, path := range slices.Sorted(maps.Keys(comments)) {
		all = append(all, comments[path]...)
	}

	byID := make(map[string]*Comment, len(all))
	for _, c := range all {
		if c.ID != "" {
			byID[c.ID] = c
		}
	}

	children := make(map[string][]*Comment)
	var roots []*Comment
	for _, c := range all {
		if c.InReplyTo == "" || byID[c.InReplyTo] == nil || c.InReplyTo == c.ID {
			roots = append(roots, c)
			continue
		}
		children[c.InReplyTo] = append(children[c.InReplyTo], c)
	}

	var threads []*CommentThread
	for _, root := range roots {
		var flat []*Comment
		var walk func(c *Comment)
		walk = func(c *Comment) {
			flat = append(flat, c)
			kids := children[c.ID]
			slices.SortStableFunc(kids, func(a, b *Comment) int {
				return cmp.Compare(a.Updated, b.Updated)
			})
			for _, k := range kids {
				walk(k)
			}
		}
		walk(root)

		last := flat[len(flat)-1]
		threads = append(threads, &CommentThread{
			Path:     root.Path,
			Line:     root.Line,
			Resolved: last.Unresolved != nil && !*last.Unresolved,
			Comments: flat,
		})
	}

	slices.SortStableFunc(threads, func(a, b *CommentThread) int {
		if n := cmp.Compare(a.Path, b.Path); n != 0 {
			return n
		}
		return cmp.Compare(a.Line, b.Line)
	})
	return threads
}
