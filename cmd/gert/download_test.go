// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/gerritkit/gert/internal/gerrit"
)

func TestParseChangeArg(t *testing.T) {
	tests := []struct {
		arg      string
		change   string
		patchset int
		wantErr  bool
	}{
		{"12345", "12345", 0, false},
		{"12345,3", "12345", 3, false},
		{"I0123456789012345678901234567890123456789", "I0123456789012345678901234567890123456789", 0, false},
		{"https://review.example.com/12345", "12345", 0, false},
		{"https://review.example.com/12345/2", "12345", 2, false},
		{"https://review.example.com/#/c/12345", "12345", 0, false},
		{"https://review.example.com/#/c/12345/3", "12345", 3, false},
		{"https://review.example.com/c/tools/+/12345/1", "12345", 1, false},
		{"https://review.example.com/c/tools/+/12345/", "12345", 0, false},
		{"https://review.example.com/c/tools/+/12345/1/COMMIT_MSG", "12345", 1, false},
		{"https://review.example.com/about", "https://review.example.com/about", 0, false},
		{"12345,", "", 0, true},
		{"12345,x", "", 0, true},
		{"12345,0", "", 0, true},
		{"12345,-1", "", 0, true},
		{",3", "", 0, true},
	}
	for _, test := range tests {
		change, patchset, err := parseChangeArg(test.arg)
		if (err != nil) != test.wantErr {
			t.Errorf("parseChangeArg(%q) err = %v, wantErr %v", test.arg, err, test.wantErr)
			continue
		}
		if change != test.change || patchset != test.patchset {
			t.Errorf("parseChangeArg(%q) = %q, %d, want %q, %d",
				test.arg, change, patchset, test.change, test.patchset)
		}
	}
}

func TestReviewBranchName(t *testing.T) {
	rev := &gerrit.Revision{Number: 4}
	ch := &gerrit.Change{
		Number: 12345,
		Topic:  "cleanup",
		Owner:  &gerrit.Account{Username: "alice"},
	}
	if got, want := reviewBranchName(ch, rev), "review/alice/cleanup"; got != want {
		t.Errorf("reviewBranchName = %q, want %q", got, want)
	}

	ch.Topic = ""
	if got, want := reviewBranchName(ch, rev), "review/12345/4"; got != want {
		t.Errorf("reviewBranchName without topic = %q, want %q", got, want)
	}

	ch.Topic = "cleanup"
	ch.Owner = nil
	if got, want := reviewBranchName(ch, rev), "review/12345/4"; got != want {
		t.Errorf("reviewBranchName without owner = %q, want %q", got, want)
	}
}

func TestNormalizeChangeArgNonURL(t *testing.T) {
	for _, arg := range []string{
		"12345",
		"12345,3",
		"I0123456789012345678901234567890123456789",
		"ssh://gerrit.example.com:29418/tools",
	} {
		if got := normalizeChangeArg(arg); got != arg {
			t.Errorf("normalizeChangeArg(%q) = %q, want unchanged", arg, got)
		}
	}
}
