// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultSSHPort is the port Gerrit's SSH daemon listens on unless
// the remote URL says otherwise.
const DefaultSSHPort = 29418

// An SSHAddr identifies a Gerrit SSH endpoint.
type SSHAddr struct {
	// User is the SSH login name, or "" for the local default.
	User string

	// Host is the server hostname.
	Host string

	// Port is the SSH port, always non-zero after parsing.
	Port int
}

// String renders the address as [user@]host:port.
func (a SSHAddr) String() string {
	s := a.Host + ":" + strconv.Itoa(a.Port)
	if a.User != "" {
		s = a.User + "@" + s
	}
	return s
}

// userHost renders the address the way the ssh command line wants it,
// without the port.
func (a SSHAddr) userHost() string {
	if a.User != "" {
		return a.User + "@" + a.Host
	}
	return a.Host
}

// ParseSSHRemote extracts the SSH endpoint and project name from a
// git remote URL in either ssh://[user@]host[:port]/project form or
// scp-like user@host:project form. A trailing .git on the project is
// dropped. The port defaults to [DefaultSSHPort].
func ParseSSHRemote(remote string) (SSHAddr, string, error) {
	addr := SSHAddr{Port: DefaultSSHPort}
	var project string
	if strings.Contains(remote, "://") {
		u, err := url.Parse(remote)
		if err != nil {
			return SSHAddr{}, "", fmt.Errorf("invalid SSH remote %q: %w", remote, err)
		}
		if u.Scheme != "ssh" {
			return SSHAddr{}, "", fmt.Errorf("invalid SSH remote %q: scheme %q is not ssh", remote, u.Scheme)
		}
		addr.Host = u.Hostname()
		if u.User != nil {
			addr.User = u.User.Username()
		}
		if p := u.Port(); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				return SSHAddr{}, "", fmt.Errorf("invalid SSH remote %q: bad port %q", remote, p)
			}
			addr.Port = n
		}
		project = u.Path
	} else {
		// scp-like: [user@]host:path, with the colon before any slash.
		colon := strings.Index(remote, ":")
		slash := strings.Index(remote, "/")
		if colon < 0 || (slash >= 0 && slash < colon) {
			return SSHAddr{}, "", fmt.Errorf("invalid SSH remote %q: missing host:path separator", remote)
		}
		hostPart := remote[:colon]
		project = remote[colon+1:]
		if at := strings.LastIndex(hostPart, "@"); at >= 0 {
			addr.User = hostPart[:at]
			hostPart = hostPart[at+1:]
		}
		addr.Host = hostPart
	}
	if addr.Host == "" {
		return SSHAddr{}, "", fmt.Errorf("invalid SSH remote %q: missing host", remote)
	}
	project = strings.Trim(project, "/")
	project = strings.TrimSuffix(project, ".git")
	return addr, project, nil
}

// An SSHClient runs Gerrit queries through the server's SSH command
// interface by spawning the local ssh binary.
//
// The SSH interface predates the REST API and exposes less: it can
// list changes and patch sets but not inline comments. An SSHClient
// is safe for concurrent use.
type SSHClient struct {
	addr SSHAddr
	slog *slog.Logger

	// run spawns a command and returns its stdout and stderr.
	// Tests substitute a fake.
	run runCmdFunc
}

type runCmdFunc func(ctx context.Context, env []string, name string, args ...string) (stdout, stderr []byte, err error)

// NewSSHClient returns a client for the Gerrit SSH daemon at addr.
func NewSSHClient(addr SSHAddr, lg *slog.Logger) *SSHClient {
	return &SSHClient{addr: addr, slog: lg, run: runCmd}
}

// runCmd executes name with args, waiting for it to finish and
// draining both output streams.
func runCmd(ctx context.Context, env []string, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// gerritCommand runs `gerrit <args>` on the remote server and returns
// its stdout.
func (c *SSHClient) gerritCommand(ctx context.Context, args ...string) ([]byte, error) {
	sshArgs := []string{"-x", "-p", strconv.Itoa(c.addr.Port), c.addr.userHost(), "gerrit"}
	sshArgs = append(sshArgs, args...)
	// Force untranslated output so error text stays parseable.
	env := append(os.Environ(), "LANG=C", "LANGUAGE=C")
	c.slog.Debug("gerrit ssh", "addr", c.addr.String(), "args", args)
	stdout, stderr, err := c.run(ctx, env, "ssh", sshArgs...)
	if err != nil {
		return nil, &SubprocessError{
			Stderr: strings.TrimSpace(string(stderr)),
			Err:    err,
		}
	}
	return stdout, nil
}

// Version returns the server version reported by `gerrit version`.
func (c *SSHClient) Version(ctx context.Context) (string, error) {
	out, err := c.gerritCommand(ctx, "version")
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(out))
	v = strings.TrimPrefix(v, "gerrit version ")
	if v == "" {
		return "", &MalformedOutputError{Description: "empty version output"}
	}
	return v, nil
}

// QueryChanges runs a Gerrit query-language query and returns the
// matching changes, each with its current patch set as the single
// entry in Revisions.
func (c *SSHClient) QueryChanges(ctx context.Context, query string) ([]*Change, error) {
	args := []string{"query", "--format=JSON", "--current-patch-set"}
	args = append(args, strings.Fields(query)...)
	out, err := c.gerritCommand(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseQueryOutput(out)
}

// ChangeAllRevisions returns one change with every patch set
// populated as a revision. changeID may be a change number or a
// Change-Id.
func (c *SSHClient) ChangeAllRevisions(ctx context.Context, changeID string) (*Change, error) {
	out, err := c.gerritCommand(ctx, "query", "--format=JSON",
		"--current-patch-set", "--patch-sets", "change:"+changeID)
	if err != nil {
		return nil, err
	}
	changes, err := parseQueryOutput(out)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, ErrNotFound
	}
	return changes[0], nil
}

// sshTimeLayout matches the REST API's timestamp rendering, so
// timestamps from either transport order the same way as strings.
const sshTimeLayout = "2006-01-02 15:04:05.000000000"

// A flexInt decodes a JSON number that some Gerrit versions emit as a
// quoted string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("malformed number %s", data)
	}
	*f = flexInt(n)
	return nil
}

// A flexTime decodes a timestamp that arrives either as epoch seconds
// (quoted or not) or as an already-formatted string, normalizing
// epochs to [sshTimeLayout] in UTC.
type flexTime string

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		*f = flexTime(time.Unix(sec, 0).UTC().Format(sshTimeLayout))
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		*f = flexTime(s)
		return nil
	}
	return fmt.Errorf("malformed timestamp %s", data)
}

// Raw shapes of `gerrit query --format=JSON` rows.
type (
	sshChange struct {
		Type            string `json:"type"`
		Project         string
		Branch          string
		Topic           string
		ID              string
		Number          flexInt
		Subject         string
		Status          string
		Owner           *sshAccount
		CommitMessage   string
		CreatedOn       flexTime
		LastUpdated     flexTime
		CurrentPatchSet *sshPatchSet
		PatchSets       []*sshPatchSet
	}

	sshPatchSet struct {
		Number    flexInt
		Revision  string
		Ref       string
		Uploader  *sshAccount
		CreatedOn flexTime
	}

	sshAccount struct {
		Name     string
		Email    string
		Username string
	}
)

// parseQueryOutput decodes the line-oriented JSON stream the query
// command prints. Lines that are not JSON objects are skipped, as is
// the trailing stats row (any object carrying a "type" field).
func parseQueryOutput(out []byte) ([]*Change, error) {
	var changes []*Change
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var raw sshChange
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, &MalformedOutputError{Description: err.Error()}
		}
		if raw.Type != "" {
			continue
		}
		changes = append(changes, raw.change())
	}
	return changes, nil
}

// change converts one raw query row into the shared model.
func (raw *sshChange) change() *Change {
	ch := &Change{
		// The SSH schema has no separate numeric-triplet id, so the
		// Change-Id serves as both identifiers.
		ID:       raw.ID,
		ChangeID: raw.ID,
		Project:  raw.Project,
		Branch:   raw.Branch,
		Topic:    raw.Topic,
		Subject:  raw.Subject,
		Status:   raw.Status,
		Number:   int(raw.Number),
		Owner:    raw.Owner.account(),
		Created:  string(raw.CreatedOn),
		Updated:  string(raw.LastUpdated),
	}

	for _, ps := range raw.PatchSets {
		ch.addRevision(ps)
	}

	cur := raw.CurrentPatchSet
	switch {
	case cur != nil && raw.findByNumber(int(cur.Number)) != nil:
		ch.CurrentRevision = raw.findByNumber(int(cur.Number)).Revision
		ch.addRevision(cur)
	case cur != nil && cur.Revision != "":
		ch.CurrentRevision = cur.Revision
		ch.addRevision(cur)
	default:
		// No usable currentPatchSet; fall back to the highest
		// numbered patch set, if any.
		var best *sshPatchSet
		for _, ps := range raw.PatchSets {
			if best == nil || int(ps.Number) > int(best.Number) {
				best = ps
			}
		}
		if best != nil {
			ch.CurrentRevision = best.Revision
		}
	}

	if ch.CurrentRevision != "" {
		if rev := ch.Revisions[ch.CurrentRevision]; rev != nil && rev.Commit == nil {
			rev.Commit = &Commit{
				Subject: raw.Subject,
				Message: raw.CommitMessage,
			}
		}
	}
	return ch
}

// addRevision records ps in the Revisions map unless an entry with
// its hash already exists.
func (ch *Change) addRevision(ps *sshPatchSet) {
	if ps == nil || ps.Revision == "" {
		return
	}
	if ch.Revisions == nil {
		ch.Revisions = make(map[string]*Revision)
	}
	if _, ok := ch.Revisions[ps.Revision]; ok {
		return
	}
	ch.Revisions[ps.Revision] = &Revision{
		Number:   int(ps.Number),
		Ref:      ps.Ref,
		Created:  string(ps.CreatedOn),
		Uploader: ps.Uploader.account(),
	}
}

// findByNumber returns the patch set with the given number, or nil.
func (raw *sshChange) findByNumber(n int) *sshPatchSet {
	for _, ps := range raw.PatchSets {
		if int(ps.Number) == n {
			return ps
		}
	}
	return nil
}

func (a *sshAccount) account() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Name:     a.Name,
		Email:    a.Email,
		Username: a.Username,
	}
}
