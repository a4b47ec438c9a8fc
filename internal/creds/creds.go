// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package creds resolves Gerrit credentials from the places users
// actually keep them: a gert credentials file, ~/.netrc, the git
// cookie file, the git credential helpers, and as a last resort an
// interactive prompt.
//
// Secrets never reach the log. Debug messages name hosts and sources
// only.
package creds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gerritkit/gert/internal/gerrit"
)

// Git is the slice of the git layer the loader needs. It is nil when
// gert runs outside a repository, which skips the cookie file and
// credential helper sources.
type Git interface {
	// ConfigURLMatch resolves a path-valued config key for a URL,
	// per `git config --get-urlmatch`.
	ConfigURLMatch(ctx context.Context, key, url string) (string, error)

	// Credential runs `git credential <action>` with the key=value
	// description kv and returns the response map.
	Credential(ctx context.Context, action string, kv map[string]string) (map[string]string, error)
}

// A Source names where credentials were found.
type Source int

const (
	SourceNone Source = iota
	SourceFile
	SourceNetrc
	SourceCookies
	SourceGitCredential
	SourcePrompt
)

func (s Source) String() string {
	switch s {
	case SourceFile:
		return "credentials file"
	case SourceNetrc:
		return ".netrc"
	case SourceCookies:
		return "git cookie file"
	case SourceGitCredential:
		return "git credential"
	case SourcePrompt:
		return "prompt"
	}
	return "none"
}

// A Loader walks the credential sources for a Gerrit host.
type Loader struct {
	slog *slog.Logger
	git  Git

	// AllowPrompt permits an interactive username/password prompt
	// when every stored source comes up empty. The prompt only runs
	// when stdin is a terminal.
	AllowPrompt bool

	// Home overrides the user's home directory in tests.
	Home string

	source Source
}

// NewLoader returns a Loader reading the standard sources. g may be
// nil outside a git repository.
func NewLoader(lg *slog.Logger, g Git) *Loader {
	return &Loader{slog: lg, git: g}
}

// Source reports where the most recent Load found credentials.
func (l *Loader) Source() Source { return l.source }

// Load resolves credentials for baseURL. A nil result with a nil
// error means no source had anything and the caller should proceed
// anonymously.
func (l *Loader) Load(ctx context.Context, baseURL string) (*gerrit.Credentials, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Gerrit URL: %w", err)
	}
	l.source = SourceNone

	creds, err := l.fromFile(u)
	if err != nil {
		return nil, err
	}
	if creds != nil {
		return l.found(SourceFile, u, creds), nil
	}

	if creds := l.fromNetrc(u); creds != nil {
		return l.found(SourceNetrc, u, creds), nil
	}

	if creds := l.fromCookies(ctx, u); creds != nil {
		return l.found(SourceCookies, u, creds), nil
	}

	if creds := l.fromGitCredential(ctx, u); creds != nil {
		return l.found(SourceGitCredential, u, creds), nil
	}

	if l.AllowPrompt {
		creds, err := l.prompt(u)
		if err != nil {
			return nil, err
		}
		if creds != nil {
			return l.found(SourcePrompt, u, creds), nil
		}
	}

	l.slog.Debug("creds: nothing found, proceeding anonymously", "host", u.Host)
	return nil, nil
}

func (l *Loader) found(s Source, u *url.URL, creds *gerrit.Credentials) *gerrit.Credentials {
	l.source = s
	l.slog.Debug("creds: loaded", "source", s.String(), "host", u.Host)
	return creds
}

// Approve tells the git credential helpers that helper-sourced
// credentials worked, so they can be cached. Other sources are left
// alone.
func (l *Loader) Approve(ctx context.Context, baseURL string, creds *gerrit.Credentials) {
	l.report(ctx, "approve", baseURL, creds)
}

// Reject tells the git credential helpers that helper-sourced
// credentials were refused by the server, so cached copies get
// dropped.
func (l *Loader) Reject(ctx context.Context, baseURL string, creds *gerrit.Credentials) {
	l.report(ctx, "reject", baseURL, creds)
}

func (l *Loader) report(ctx context.Context, action, baseURL string, creds *gerrit.Credentials) {
	if l.source != SourceGitCredential || l.git == nil || creds == nil {
		return
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return
	}
	_, err = l.git.Credential(ctx, action, map[string]string{
		"protocol": u.Scheme,
		"host":     u.Host,
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		l.slog.Debug("creds: git credential "+action+" failed", "err", err)
	}
}

// credsFile is the on-disk shape of credentials.yaml.
type credsFile struct {
	Servers []credsEntry `yaml:"servers"`
}

type credsEntry struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Type     string `yaml:"type"`
}

// credsPath returns the credentials file location,
// <user config dir>/gert/credentials.yaml.
func (l *Loader) credsPath() (string, error) {
	if l.Home != "" {
		return filepath.Join(l.Home, ".config", "gert", "credentials.yaml"), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gert", "credentials.yaml"), nil
}

// fromFile reads the gert credentials file. A missing file is not an
// error; a file with loose permissions is, so a secret never sits
// world-readable unnoticed.
func (l *Loader) fromFile(u *url.URL) (*gerrit.Credentials, error) {
	path, err := l.credsPath()
	if err != nil {
		return nil, nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", path, err)
	}
	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode != 0o600 {
			return nil, fmt.Errorf("%s has permissions %04o, expected 0600; fix with: chmod 600 %s", path, mode, path)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var file credsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, e := range file.Servers {
		if e.Host != u.Host && e.Host != u.Hostname() {
			continue
		}
		typ := gerrit.AuthBasic
		if strings.EqualFold(e.Type, string(gerrit.AuthBearer)) {
			typ = gerrit.AuthBearer
		}
		return &gerrit.Credentials{Username: e.Username, Password: e.Password, Type: typ}, nil
	}
	return nil, nil
}

// netrcName is the conventional netrc file name; Windows git looks
// for _netrc instead.
func netrcName() string {
	if runtime.GOOS == "windows" {
		return "_netrc"
	}
	return ".netrc"
}

func (l *Loader) homeDir() (string, error) {
	if l.Home != "" {
		return l.Home, nil
	}
	return os.UserHomeDir()
}

// fromNetrc scans ~/.netrc for a single-line
// `machine <host> login <user> password <pass>` entry. Read failures
// mean trying the next source, not failing the load.
func (l *Loader) fromNetrc(u *url.URL) *gerrit.Credentials {
	home, err := l.homeDir()
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(home, netrcName()))
	if err != nil {
		return nil
	}
	host := u.Hostname()
	for _, line := range strings.Split(string(data), "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		f := strings.Fields(line)
		if len(f) >= 6 && f[0] == "machine" && f[1] == host && f[2] == "login" && f[4] == "password" {
			return &gerrit.Credentials{Username: f[3], Password: f[5], Type: gerrit.AuthBasic}
		}
	}
	return nil
}

// fromCookies reads the cookie file git would use for u and picks the
// cookie whose domain matches the host most specifically. A domain
// with a leading dot matches any suffix of the host, as in curl's
// cookie format.
func (l *Loader) fromCookies(ctx context.Context, u *url.URL) *gerrit.Credentials {
	if l.git == nil {
		return nil
	}
	cookieFile, err := l.git.ConfigURLMatch(ctx, "http.cookiefile", u.String())
	if err != nil || cookieFile == "" {
		return nil
	}
	data, err := os.ReadFile(cookieFile)
	if err != nil {
		l.slog.Debug("creds: cookie file unreadable", "path", cookieFile, "err", err)
		return nil
	}
	host := u.Hostname()
	var creds *gerrit.Credentials
	maxMatch := -1
	for _, line := range strings.Split(string(data), "\n") {
		f := strings.Split(line, "\t")
		if len(f) < 7 {
			continue
		}
		domain := f[0]
		if domain != host && !(strings.HasPrefix(domain, ".") && strings.HasSuffix(host, domain)) {
			continue
		}
		if len(domain) > maxMatch {
			creds = &gerrit.Credentials{Username: f[5], Password: f[6], Type: gerrit.AuthCookie}
			maxMatch = len(domain)
		}
	}
	return creds
}

// fromGitCredential asks the configured git credential helpers.
// Helper failures fall through to the next source; git may run its
// own prompt here, which is the behavior users configured.
func (l *Loader) fromGitCredential(ctx context.Context, u *url.URL) *gerrit.Credentials {
	if l.git == nil {
		return nil
	}
	resp, err := l.git.Credential(ctx, "fill", map[string]string{
		"protocol": u.Scheme,
		"host":     u.Host,
	})
	if err != nil {
		l.slog.Debug("creds: git credential fill failed", "err", err)
		return nil
	}
	if resp["username"] == "" || resp["password"] == "" {
		return nil
	}
	return &gerrit.Credentials{Username: resp["username"], Password: resp["password"], Type: gerrit.AuthBasic}
}

// prompt asks the user directly. It declines to run when stdin is not
// a terminal, and an empty username means the user declined.
func (l *Loader) prompt(u *url.URL) (*gerrit.Credentials, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil
	}
	fmt.Fprintf(os.Stderr, "Username for %s: ", u.Host)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return nil, scanner.Err()
	}
	username := strings.TrimSpace(scanner.Text())
	if username == "" {
		return nil, nil
	}
	fmt.Fprintf(os.Stderr, "Password or token for %s@%s: ", username, u.Host)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return &gerrit.Credentials{Username: username, Password: string(password), Type: gerrit.AuthBasic}, nil
}
