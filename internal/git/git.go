// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package git drives the git working copy gert operates in: locating
// the enclosing repository, reading its configuration, and running
// the fetch, push and branch plumbing around review uploads and
// downloads.
package git

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"

	gogit "github.com/go-git/go-git/v5"
)

// An Executor is used to execute a command.
type Executor interface {
	// Execute runs the cmd, with args, in dir.
	// It returns the standard output,
	// and an error that may be [*os/exec.ExitError].
	Execute(ctx context.Context, lg *slog.Logger, dir string, cmd string, args ...string) ([]byte, error)

	// LookPath searches for an executable in the PATH.
	LookPath(file string) (string, error)
}

// A streamExecutor can additionally run a command with its combined
// output streamed to a writer as it happens, for long-running
// commands whose progress the user should see.
type streamExecutor interface {
	ExecuteStream(ctx context.Context, lg *slog.Logger, dir string, out io.Writer, cmd string, args ...string) error
}

// osExecutor implements [Executor] by running programs locally, with
// the locale forced to C so output stays parseable.
type osExecutor struct{}

func gitEnv() []string {
	return append(os.Environ(), "LANG=C", "LANGUAGE=C")
}

// Execute implements [Executor.Execute].
func (osExecutor) Execute(ctx context.Context, lg *slog.Logger, dir string, command string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	cmd.Env = gitEnv()
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			lg.Error("command failed", "cmd", cmd.String(), "err", err, "stderr", ee.Stderr)
			return nil, fmt.Errorf("%s %q failed: %s (%w)", command, args, strings.TrimSpace(string(ee.Stderr)), err)
		}
		lg.Error("command failed", "cmd", cmd.String(), "err", err)
		return nil, fmt.Errorf("%s %q failed: %w", command, args, err)
	}
	lg.Debug("command succeeded", "cmd", cmd.String(), "dir", cmd.Dir)
	return out, nil
}

// ExecuteStream implements [streamExecutor].
func (osExecutor) ExecuteStream(ctx context.Context, lg *slog.Logger, dir string, out io.Writer, command string, args ...string) error {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	cmd.Env = gitEnv()
	cmd.Stdout = out
	cmd.Stderr = out
	lg.Debug("streaming command", "cmd", cmd.String(), "dir", dir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %q failed: %w", command, args, err)
	}
	return nil
}

// LookPath implements [Executor.LookPath].
func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// A Repo is a local git working copy.
type Repo struct {
	root string
	lg   *slog.Logger
	exec Executor
	gg   *gogit.Repository
}

// Discover finds the repository enclosing dir, walking upward the way
// git itself does.
func Discover(dir string, lg *slog.Logger) (*Repo, error) {
	gg, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("no git repository found from %s: %w", dir, err)
	}
	wt, err := gg.Worktree()
	if err != nil {
		return nil, fmt.Errorf("repository at %s has no work tree: %w", dir, err)
	}
	return &Repo{
		root: wt.Filesystem.Root(),
		lg:   lg,
		exec: osExecutor{},
		gg:   gg,
	}, nil
}

// New returns a Repo rooted at root without discovery. A nil exec
// selects the real local executor; tests pass a stub.
func New(root string, lg *slog.Logger, exec Executor) *Repo {
	if exec == nil {
		exec = osExecutor{}
	}
	return &Repo{root: root, lg: lg, exec: exec}
}

// Root returns the top of the working copy.
func (r *Repo) Root() string { return r.root }

// git runs a git command in the repository root and returns its
// stdout with trailing whitespace dropped.
func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	out, err := r.exec.Execute(ctx, r.lg, r.root, "git", args...)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), " \t\r\n"), nil
}

// Head returns the name of the currently checked out branch, or the
// commit hash when HEAD is detached.
func (r *Repo) Head() (string, error) {
	gg := r.gg
	if gg == nil {
		var err error
		gg, err = gogit.PlainOpenWithOptions(r.root, &gogit.PlainOpenOptions{DetectDotGit: true})
		if err != nil {
			return "", fmt.Errorf("opening repository at %s: %w", r.root, err)
		}
		r.gg = gg
	}
	ref, err := gg.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if ref.Name().IsBranch() {
		return ref.Name().Short(), nil
	}
	return ref.Hash().String(), nil
}

// CommitMessage returns the full commit message of rev.
func (r *Repo) CommitMessage(ctx context.Context, rev string) (string, error) {
	return r.git(ctx, "log", "-1", "--format=%B", rev)
}

// HeadCommitMessage returns the full commit message of HEAD.
func (r *Repo) HeadCommitMessage(ctx context.Context) (string, error) {
	return r.CommitMessage(ctx, "HEAD")
}

// HooksDir returns the directory git runs hooks from, honoring
// core.hooksPath.
func (r *Repo) HooksDir(ctx context.Context) (string, error) {
	return r.git(ctx, "rev-parse", "--path-format=absolute", "--git-path", "hooks")
}

// Fetch fetches one ref from a remote.
func (r *Repo) Fetch(ctx context.Context, remote, ref string) error {
	_, err := r.git(ctx, "fetch", remote, ref)
	return err
}

// FetchSHA fetches one ref from a remote and returns the commit it
// resolved to.
func (r *Repo) FetchSHA(ctx context.Context, remote, ref string) (string, error) {
	if err := r.Fetch(ctx, remote, ref); err != nil {
		return "", err
	}
	return r.git(ctx, "rev-parse", "FETCH_HEAD")
}

// CheckoutBranch checks out branch at start, creating it if needed.
// An existing branch is checked out and moved to start with the
// working tree kept intact.
func (r *Repo) CheckoutBranch(ctx context.Context, branch, start string) error {
	if _, err := r.git(ctx, "checkout", "-b", branch, start); err == nil {
		return nil
	}
	if _, err := r.git(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("checking out existing branch %s: %w", branch, err)
	}
	if _, err := r.git(ctx, "reset", "--keep", start); err != nil {
		return fmt.Errorf("resetting branch %s to %s: %w", branch, start, err)
	}
	return nil
}

// CherryPick applies commit onto the current branch. indicate records
// a "(cherry picked from commit ...)" line in the message; noCommit
// applies the diff to the working tree without committing.
func (r *Repo) CherryPick(ctx context.Context, commit string, indicate, noCommit bool) error {
	args := []string{"cherry-pick"}
	if indicate {
		args = append(args, "-x")
	}
	if noCommit {
		args = append(args, "--no-commit")
	}
	_, err := r.git(ctx, append(args, commit)...)
	return err
}

// Push uploads a refspec to a remote. Output is streamed to out when
// possible so the server's messages (including the change URL Gerrit
// prints) reach the user as they arrive.
func (r *Repo) Push(ctx context.Context, remote, refspec string, out io.Writer) error {
	if s, ok := r.exec.(streamExecutor); ok && out != nil {
		return s.ExecuteStream(ctx, r.lg, r.root, out, "git", "push", remote, refspec)
	}
	b, err := r.exec.Execute(ctx, r.lg, r.root, "git", "push", remote, refspec)
	if out != nil && len(b) > 0 {
		out.Write(b)
	}
	return err
}

// Unpushed lists the one-line summaries of commits on HEAD that are
// not on the remote tracking branch. A missing tracking branch makes
// every commit unpushed.
func (r *Repo) Unpushed(ctx context.Context, remote, branch string) ([]string, error) {
	out, err := r.git(ctx, "log", "--oneline", "--decorate", "HEAD", "--not", "remotes/"+remote+"/"+branch)
	if err != nil {
		out, err = r.git(ctx, "log", "--oneline", "--decorate")
		if err != nil {
			return nil, err
		}
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// WorktreeClean reports whether the working tree has no staged or
// unstaged changes to tracked files. Untracked files do not count:
// they survive a branch switch.
func (r *Repo) WorktreeClean(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "status", "--porcelain", "--untracked-files=no", "--ignore-submodules")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

// ConfigURLMatch returns the value of a path-valued config key as git
// resolves it for a destination URL, so per-URL settings like
// http.<url>.cookiefile are honored.
func (r *Repo) ConfigURLMatch(ctx context.Context, key, url string) (string, error) {
	return r.git(ctx, "config", "--path", "--get-urlmatch", key, url)
}

// Credential invokes the git credential machinery: `git credential
// fill` resolves stored credentials for the description in kv, and
// approve/reject report how they worked out. The description and
// response are both key=value maps per git-credential(1).
func (r *Repo) Credential(ctx context.Context, action string, kv map[string]string) (map[string]string, error) {
	cmd := exec.CommandContext(ctx, "git", "credential", action)
	cmd.Dir = r.root
	cmd.Env = gitEnv()
	cmd.Stdin = strings.NewReader(credentialInput(kv))
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git credential %s failed: %w", action, err)
	}
	resp := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		if key, value, ok := strings.Cut(line, "="); ok {
			resp[key] = value
		}
	}
	return resp, nil
}

// credentialInput serializes kv in the order git documents, with a
// terminating blank line.
func credentialInput(kv map[string]string) string {
	var sb strings.Builder
	write := func(key string) {
		if v, ok := kv[key]; ok && v != "" {
			sb.WriteString(key)
			sb.WriteString("=")
			sb.WriteString(v)
			sb.WriteString("\n")
		}
	}
	first := []string{"protocol", "host", "path", "username", "password"}
	for _, key := range first {
		write(key)
	}
	var rest []string
	for key := range kv {
		if !slices.Contains(first, key) {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	for _, key := range rest {
		write(key)
	}
	sb.WriteString("\n")
	return sb.String()
}

// HaveGit reports whether a git binary is available at all.
func (r *Repo) HaveGit() bool {
	_, err := r.exec.LookPath("git")
	return err == nil
}
