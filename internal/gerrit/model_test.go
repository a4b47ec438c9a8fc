// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAccountSameAs(t *testing.T) {
	tests := []struct {
		name string
		a, b *Account
		want bool
	}{
		{
			"nil accounts",
			nil, &Account{Username: "alice"},
			false,
		},
		{
			"matching ids",
			&Account{AccountID: 1000001, Email: "old@example.com"},
			&Account{AccountID: 1000001, Email: "new@example.com"},
			true,
		},
		{
			"differing ids",
			&Account{AccountID: 1000001, Email: "a@example.com"},
			&Account{AccountID: 1000002, Email: "a@example.com"},
			false,
		},
		{
			"email fallback",
			&Account{Email: "alice@example.com"},
			&Account{Email: "alice@example.com", Username: "someone-else"},
			true,
		},
		{
			"username fallback",
			&Account{Username: "alice"},
			&Account{Username: "alice"},
			true,
		},
		{
			"nothing shared",
			&Account{Name: "Alice"},
			&Account{Name: "Alice"},
			false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.a.SameAs(test.b); got != test.want {
				t.Errorf("SameAs = %v, want %v", got, test.want)
			}
			if got := test.b.SameAs(test.a); got != test.want {
				t.Errorf("SameAs reversed = %v, want %v", got, test.want)
			}
		})
	}
}

func TestRevisionHashes(t *testing.T) {
	ch := &Change{
		Revisions: map[string]*Revision{
			"cccc": {Number: 3},
			"aaaa": {Number: 1},
			"bbbb": {Number: 2},
		},
	}
	want := []string{"aaaa", "bbbb", "cccc"}
	if diff := cmp.Diff(want, ch.RevisionHashes()); diff != "" {
		t.Errorf("order mismatch (-want, +got):\n%s", diff)
	}

	if got := (&Change{}).RevisionHashes(); len(got) != 0 {
		t.Errorf("got %v from empty change", got)
	}
}
