// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/gerritkit/gert/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/tools/txtar"
)

func TestParseSSHRemote(t *testing.T) {
	tests := []struct {
		remote  string
		addr    SSHAddr
		project string
	}{
		{
			"ssh://alice@gerrit.example.com:29418/tools.git",
			SSHAddr{User: "alice", Host: "gerrit.example.com", Port: 29418},
			"tools",
		},
		{
			"ssh://gerrit.example.com/plugins/replication",
			SSHAddr{Host: "gerrit.example.com", Port: 29418},
			"plugins/replication",
		},
		{
			"ssh://alice@gerrit.example.com:2222/tools/",
			SSHAddr{User: "alice", Host: "gerrit.example.com", Port: 2222},
			"tools",
		},
		{
			"alice@gerrit.example.com:tools.git",
			SSHAddr{User: "alice", Host: "gerrit.example.com", Port: 29418},
			"tools",
		},
		{
			"gerrit.example.com:a/b.git",
			SSHAddr{Host: "gerrit.example.com", Port: 29418},
			"a/b",
		},
	}
	for _, test := range tests {
		t.Run(test.remote, func(t *testing.T) {
			addr, project, err := ParseSSHRemote(test.remote)
			testutil.Check(t, err)
			if addr != test.addr {
				t.Errorf("addr = %+v, want %+v", addr, test.addr)
			}
			if project != test.project {
				t.Errorf("project = %q, want %q", project, test.project)
			}
		})
	}

	for _, bad := range []string{
		"https://gerrit.example.com/tools",
		"ssh://:29418/tools",
		"ssh://alice@gerrit.example.com:badport/tools",
		"just-a-host",
		"/local/path/repo",
	} {
		if _, _, err := ParseSSHRemote(bad); err == nil {
			t.Errorf("ParseSSHRemote(%q) succeeded, want error", bad)
		}
	}
}

// fakeRun is a canned subprocess result that records how it was
// invoked.
type fakeRun struct {
	stdout []byte
	stderr []byte
	err    error

	cmdline []string
	env     []string
}

func (f *fakeRun) run(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	f.cmdline = append([]string{name}, args...)
	f.env = env
	return f.stdout, f.stderr, f.err
}

func sshTestClient(t *testing.T, f *fakeRun) *SSHClient {
	t.Helper()
	c := NewSSHClient(SSHAddr{User: "alice", Host: "gerrit.example.com", Port: 29418}, testutil.Slogger(t))
	c.run = f.run
	return c
}

// queryFixtures loads the captured SSH query outputs by name.
func queryFixtures(t *testing.T) map[string][]byte {
	t.Helper()
	ar, err := txtar.ParseFile("testdata/sshquery.txt")
	testutil.Check(t, err)
	m := make(map[string][]byte)
	for _, f := range ar.Files {
		m[f.Name] = f.Data
	}
	return m
}

func TestSSHCommandLine(t *testing.T) {
	f := &fakeRun{stdout: queryFixtures(t)["two-changes"]}
	c := sshTestClient(t, f)

	_, err := c.QueryChanges(context.Background(), "project:tools status:open")
	testutil.Check(t, err)

	want := []string{
		"ssh", "-x", "-p", "29418", "alice@gerrit.example.com",
		"gerrit", "query", "--format=JSON", "--current-patch-set",
		"project:tools", "status:open",
	}
	if diff := cmp.Diff(want, f.cmdline); diff != "" {
		t.Errorf("command line mismatch (-want, +got):\n%s", diff)
	}
	for _, kv := range []string{"LANG=C", "LANGUAGE=C"} {
		if !slices.Contains(f.env, kv) {
			t.Errorf("environment is missing %s", kv)
		}
	}
}

func TestSSHQueryChanges(t *testing.T) {
	fixtures := queryFixtures(t)

	t.Run("current-only", func(t *testing.T) {
		c := sshTestClient(t, &fakeRun{stdout: fixtures["current-only"]})
		changes, err := c.QueryChanges(context.Background(), "project:tools status:open")
		testutil.Check(t, err)
		if len(changes) != 1 {
			t.Fatalf("got %d changes, want 1", len(changes))
		}
		ch := changes[0]
		if ch.Number != 54321 || ch.Project != "tools" || ch.Branch != "main" {
			t.Errorf("got change %+v", ch)
		}
		if ch.ID != "I6f1f4b9bceb2b653e9b561398a7be57f1b6f4f71" || ch.ChangeID != ch.ID {
			t.Errorf("got ids %q / %q", ch.ID, ch.ChangeID)
		}
		if got, want := ch.Updated, "2024-07-02 11:40:00.000000000"; got != want {
			t.Errorf("Updated = %q, want %q", got, want)
		}
		if len(ch.Revisions) != 1 {
			t.Fatalf("got %d revisions, want 1", len(ch.Revisions))
		}
		rev := ch.Revisions[ch.CurrentRevision]
		if rev == nil {
			t.Fatalf("current revision %q not in map", ch.CurrentRevision)
		}
		if rev.Number != 2 || rev.Ref != "refs/changes/21/54321/2" {
			t.Errorf("got revision %+v", rev)
		}
		if rev.Commit == nil || !strings.Contains(rev.Commit.Message, "Change-Id:") {
			t.Errorf("commit message not attached: %+v", rev.Commit)
		}
		if ch.Owner == nil || ch.Owner.Email != "alice@example.com" {
			t.Errorf("got owner %+v", ch.Owner)
		}
	})

	t.Run("two-changes", func(t *testing.T) {
		c := sshTestClient(t, &fakeRun{stdout: fixtures["two-changes"]})
		changes, err := c.QueryChanges(context.Background(), "project:tools")
		testutil.Check(t, err)
		if len(changes) != 2 {
			t.Fatalf("got %d changes, want 2", len(changes))
		}
		if changes[0].Number != 101 || changes[1].Number != 102 {
			t.Errorf("got numbers %d, %d", changes[0].Number, changes[1].Number)
		}
		if changes[1].Status != "MERGED" {
			t.Errorf("got status %q", changes[1].Status)
		}
	})

	t.Run("empty", func(t *testing.T) {
		c := sshTestClient(t, &fakeRun{stdout: fixtures["empty"]})
		changes, err := c.QueryChanges(context.Background(), "project:nothing")
		testutil.Check(t, err)
		if len(changes) != 0 {
			t.Errorf("got %d changes, want 0", len(changes))
		}
	})
}

func TestSSHAllRevisions(t *testing.T) {
	fixtures := queryFixtures(t)

	f := &fakeRun{stdout: fixtures["all-patchsets"]}
	c := sshTestClient(t, f)
	ch, err := c.ChangeAllRevisions(context.Background(), "54321")
	testutil.Check(t, err)

	wantCmd := []string{
		"ssh", "-x", "-p", "29418", "alice@gerrit.example.com",
		"gerrit", "query", "--format=JSON", "--current-patch-set", "--patch-sets",
		"change:54321",
	}
	if diff := cmp.Diff(wantCmd, f.cmdline); diff != "" {
		t.Errorf("command line mismatch (-want, +got):\n%s", diff)
	}

	if len(ch.Revisions) != 2 {
		t.Fatalf("got %d revisions, want 2", len(ch.Revisions))
	}
	if got, want := ch.CurrentRevision, "89e6c98d92887913cadf06b2adb97f26cde4849b"; got != want {
		t.Errorf("CurrentRevision = %q, want %q", got, want)
	}
	if got := ch.RevisionHashes(); len(got) != 2 || ch.Revisions[got[0]].Number != 1 || ch.Revisions[got[1]].Number != 2 {
		t.Errorf("RevisionHashes order wrong: %v", got)
	}
}

func TestSSHCurrentRevisionFallbacks(t *testing.T) {
	fixtures := queryFixtures(t)

	t.Run("synthesized from currentPatchSet", func(t *testing.T) {
		c := sshTestClient(t, &fakeRun{stdout: fixtures["missing-current"]})
		ch, err := c.ChangeAllRevisions(context.Background(), "54321")
		testutil.Check(t, err)
		if got, want := ch.CurrentRevision, "9c1185a5c5e9fc54612808977ee8f548b2258d31"; got != want {
			t.Errorf("CurrentRevision = %q, want %q", got, want)
		}
		rev := ch.Revisions[ch.CurrentRevision]
		if rev == nil || rev.Number != 3 {
			t.Fatalf("synthesized revision missing or wrong: %+v", rev)
		}
		if len(ch.Revisions) != 3 {
			t.Errorf("got %d revisions, want 3", len(ch.Revisions))
		}
	})

	t.Run("highest patchset wins", func(t *testing.T) {
		c := sshTestClient(t, &fakeRun{stdout: fixtures["no-current"]})
		ch, err := c.ChangeAllRevisions(context.Background(), "54321")
		testutil.Check(t, err)
		if got, want := ch.CurrentRevision, "2b66fd261ee5c6cfc8de7fa466bab600bcfe4f69"; got != want {
			t.Errorf("CurrentRevision = %q, want %q", got, want)
		}
	})

	t.Run("quoted numbers", func(t *testing.T) {
		c := sshTestClient(t, &fakeRun{stdout: fixtures["string-numbers"]})
		changes, err := c.QueryChanges(context.Background(), "change:54321")
		testutil.Check(t, err)
		ch := changes[0]
		if ch.Number != 54321 {
			t.Errorf("Number = %d, want 54321", ch.Number)
		}
		if got, want := ch.Created, "2024-07-01 11:40:00.000000000"; got != want {
			t.Errorf("Created = %q, want %q", got, want)
		}
		if rev := ch.Revisions[ch.CurrentRevision]; rev == nil || rev.Number != 2 {
			t.Errorf("got revision %+v", rev)
		}
	})
}

func TestSSHNotFound(t *testing.T) {
	c := sshTestClient(t, &fakeRun{stdout: queryFixtures(t)["empty"]})
	_, err := c.ChangeAllRevisions(context.Background(), "99999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got error %v, want ErrNotFound", err)
	}
}

func TestSSHMalformedOutput(t *testing.T) {
	c := sshTestClient(t, &fakeRun{stdout: queryFixtures(t)["malformed"]})
	_, err := c.QueryChanges(context.Background(), "project:tools")
	var me *MalformedOutputError
	if !errors.As(err, &me) {
		t.Errorf("got error %v, want MalformedOutputError", err)
	}
}

func TestSSHSubprocessError(t *testing.T) {
	c := sshTestClient(t, &fakeRun{
		stderr: []byte("Permission denied (publickey).\n"),
		err:    fmt.Errorf("exit status 255"),
	})
	_, err := c.QueryChanges(context.Background(), "project:tools")
	var se *SubprocessError
	if !errors.As(err, &se) {
		t.Fatalf("got error %v, want SubprocessError", err)
	}
	if se.Stderr != "Permission denied (publickey)." {
		t.Errorf("Stderr = %q, not trimmed", se.Stderr)
	}
	if !strings.Contains(err.Error(), "Permission denied") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

func TestSSHVersion(t *testing.T) {
	c := sshTestClient(t, &fakeRun{stdout: []byte("gerrit version 3.9.1\n")})
	v, err := c.Version(context.Background())
	testutil.Check(t, err)
	if v != "3.9.1" {
		t.Errorf("Version = %q, want 3.9.1", v)
	}
}
