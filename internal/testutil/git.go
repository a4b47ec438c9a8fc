// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// NeedsGit skips t if no git binary is available on PATH.
func NeedsGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("skipping: git not found on PATH")
	}
}

// GitRepo creates a new git repository in a temporary directory
// and returns its path. The repository has user.name and user.email
// configured so commits work without global git config.
func GitRepo(t *testing.T) string {
	t.Helper()
	NeedsGit(t)
	dir := t.TempDir()
	runGit(t, dir, "init", "-q")
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "config", "user.email", "test@example.com")
	return dir
}

// GitConfig sets a config key in the repository at dir.
func GitConfig(t *testing.T, dir, key, value string) {
	t.Helper()
	runGit(t, dir, "config", key, value)
}

// GitCommit writes files into the repository at dir and commits them.
func GitCommit(t *testing.T, dir, message string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		if err := os.WriteFile(dir+"/"+name, []byte(content), 0o666); err != nil {
			t.Fatal(err)
		}
		runGit(t, dir, "add", name)
	}
	runGit(t, dir, "commit", "-q", "-m", message)
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_SYSTEM=/dev/null",
		"GIT_CONFIG_GLOBAL=/dev/null",
		"LANG=C",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}
