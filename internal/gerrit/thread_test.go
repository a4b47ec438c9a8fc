// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func unres(b bool) *bool { return &b }

func comment(id, path string, line int, inReplyTo, updated string, unresolved *bool) *Comment {
	return &Comment{
		ID:         id,
		Path:       path,
		Line:       line,
		InReplyTo:  inReplyTo,
		Updated:    updated,
		Unresolved: unresolved,
		Message:    "message " + id,
	}
}

func commentIDs(th *CommentThread) []string {
	ids := make([]string, len(th.Comments))
	for i, c := range th.Comments {
		ids[i] = c.ID
	}
	return ids
}

func TestBuildThreadsReplyChain(t *testing.T) {
	input := map[string][]*Comment{
		"a.go": {
			comment("c1", "a.go", 5, "", "2024-07-01 10:00:00.000000000", unres(true)),
			comment("c2", "a.go", 5, "c1", "2024-07-01 11:00:00.000000000", unres(false)),
		},
	}
	threads := BuildThreads(input)
	if len(threads) != 1 {
		t.Fatalf("got %d threads, want 1", len(threads))
	}
	th := threads[0]
	if diff := cmp.Diff([]string{"c1", "c2"}, commentIDs(th)); diff != "" {
		t.Errorf("comment order mismatch (-want, +got):\n%s", diff)
	}
	if !th.Resolved {
		t.Error("thread not resolved, want resolved")
	}
	if th.Path != "a.go" || th.Line != 5 {
		t.Errorf("got thread at %s:%d, want a.go:5", th.Path, th.Line)
	}
}

func TestBuildThreadsDanglingReply(t *testing.T) {
	input := map[string][]*Comment{
		"a.go": {
			comment("c9", "a.go", 3, "gone", "2024-07-01 10:00:00.000000000", unres(true)),
		},
	}
	threads := BuildThreads(input)
	if len(threads) != 1 {
		t.Fatalf("got %d threads, want 1", len(threads))
	}
	if diff := cmp.Diff([]string{"c9"}, commentIDs(threads[0])); diff != "" {
		t.Errorf("thread mismatch (-want, +got):\n%s", diff)
	}
}

func TestBuildThreadsResolution(t *testing.T) {
	tests := []struct {
		name string
		last *bool
		want bool
	}{
		{"explicitly resolved", unres(false), true},
		{"explicitly unresolved", unres(true), false},
		{"absent means unresolved", nil, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			input := map[string][]*Comment{
				"a.go": {
					comment("c1", "a.go", 5, "", "2024-07-01 10:00:00.000000000", unres(true)),
					comment("c2", "a.go", 5, "c1", "2024-07-01 11:00:00.000000000", test.last),
				},
			}
			threads := BuildThreads(input)
			if got := threads[0].Resolved; got != test.want {
				t.Errorf("Resolved = %v, want %v", got, test.want)
			}
		})
	}
}

func TestBuildThreadsSiblingOrder(t *testing.T) {
	// Replies arrive out of timestamp order; flattening must order
	// siblings by Updated, keeping input order on equal stamps.
	input := map[string][]*Comment{
		"a.go": {
			comment("root", "a.go", 5, "", "2024-07-01 10:00:00.000000000", unres(true)),
			comment("late", "a.go", 5, "root", "2024-07-01 12:00:00.000000000", nil),
			comment("early", "a.go", 5, "root", "2024-07-01 11:00:00.000000000", nil),
			comment("tie1", "a.go", 5, "root", "2024-07-01 12:00:00.000000000", nil),
		},
	}
	threads := BuildThreads(input)
	want := []string{"root", "early", "late", "tie1"}
	if diff := cmp.Diff(want, commentIDs(threads[0])); diff != "" {
		t.Errorf("sibling order mismatch (-want, +got):\n%s", diff)
	}
}

func TestBuildThreadsNestedReplies(t *testing.T) {
	input := map[string][]*Comment{
		"a.go": {
			comment("r", "a.go", 5, "", "2024-07-01 10:00:00.000000000", unres(true)),
			comment("r1", "a.go", 5, "r", "2024-07-01 11:00:00.000000000", unres(true)),
			comment("r1a", "a.go", 5, "r1", "2024-07-01 12:00:00.000000000", unres(true)),
			comment("r2", "a.go", 5, "r", "2024-07-01 13:00:00.000000000", unres(false)),
		},
	}
	threads := BuildThreads(input)
	want := []string{"r", "r1", "r1a", "r2"}
	if diff := cmp.Diff(want, commentIDs(threads[0])); diff != "" {
		t.Errorf("depth-first order mismatch (-want, +got):\n%s", diff)
	}
	if !threads[0].Resolved {
		t.Error("last comment resolves the thread, got unresolved")
	}
}

func TestBuildThreadsSorting(t *testing.T) {
	input := map[string][]*Comment{
		"b.go": {
			comment("b20", "b.go", 20, "", "2024-07-01 10:00:00.000000000", nil),
			comment("b3", "b.go", 3, "", "2024-07-01 10:01:00.000000000", nil),
		},
		"a.go": {
			comment("a7", "a.go", 7, "", "2024-07-01 10:02:00.000000000", nil),
			comment("afile", "a.go", 0, "", "2024-07-01 10:03:00.000000000", nil),
		},
	}
	threads := BuildThreads(input)
	var got []string
	for _, th := range threads {
		got = append(got, th.Comments[0].ID)
	}
	// File-level threads (line 0) come first within their file.
	want := []string{"afile", "a7", "b3", "b20"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("thread order mismatch (-want, +got):\n%s", diff)
	}
}

func TestBuildThreadsDeterministic(t *testing.T) {
	input := map[string][]*Comment{
		"z.go": {
			comment("z1", "z.go", 1, "", "2024-07-01 10:00:00.000000000", nil),
			comment("z2", "z.go", 1, "z1", "2024-07-01 11:00:00.000000000", nil),
		},
		"m.go": {
			comment("m1", "m.go", 9, "", "2024-07-01 10:30:00.000000000", unres(false)),
		},
		"a.go": {
			comment("a1", "a.go", 2, "", "2024-07-01 10:15:00.000000000", nil),
		},
	}
	first := BuildThreads(input)
	second := BuildThreads(input)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("two runs disagree (-first, +second):\n%s", diff)
	}
	if len(first) != 3 || first[0].Path != "a.go" || first[2].Path != "z.go" {
		t.Errorf("got thread paths %v", []string{first[0].Path, first[1].Path, first[2].Path})
	}
}

func TestBuildThreadsEmpty(t *testing.T) {
	if threads := BuildThreads(nil); len(threads) != 0 {
		t.Errorf("got %d threads from nil input", len(threads))
	}
	if threads := BuildThreads(map[string][]*Comment{}); len(threads) != 0 {
		t.Errorf("got %d threads from empty input", len(threads))
	}
}
