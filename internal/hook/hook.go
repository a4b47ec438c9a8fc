// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hook installs Gerrit's commit-msg hook, the script that
// adds Change-Id trailers to commit messages.
package hook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gerritkit/gert/internal/gerrit"
	"github.com/gerritkit/gert/internal/giturl"
)

// An Installer fetches the commit-msg hook from a Gerrit server and
// writes it into a repository's hooks directory.
type Installer struct {
	slog *slog.Logger
	http *http.Client

	// run spawns scp for SSH remotes. Tests substitute a fake.
	run runCmdFunc
}

type runCmdFunc func(ctx context.Context, name string, args ...string) (stderr []byte, err error)

// NewInstaller returns an Installer downloading over hc.
// A nil hc uses http.DefaultClient.
func NewInstaller(lg *slog.Logger, hc *http.Client) *Installer {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Installer{slog: lg, http: hc, run: runCmd}
}

func runCmd(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

// Install puts the commit-msg hook into hooksDir. An already-present
// hook is left alone, whatever its content. HTTP remotes download
// <base>/tools/hooks/commit-msg; SSH remotes copy the server's copy
// with scp.
func (ins *Installer) Install(ctx context.Context, hooksDir string, res giturl.Resolved) error {
	dest := filepath.Join(hooksDir, "commit-msg")
	if _, err := os.Stat(dest); err == nil {
		ins.slog.Debug("commit-msg hook already installed", "path", dest)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("installing commit-msg hook: %w", err)
	}
	if err := os.MkdirAll(hooksDir, 0o777); err != nil {
		return fmt.Errorf("installing commit-msg hook: %w", err)
	}

	var err error
	switch res.Transport {
	case giturl.TransportHTTP:
		err = ins.download(ctx, res.URL, dest)
	case giturl.TransportSSH:
		err = ins.scp(ctx, res.URL, dest)
	default:
		err = fmt.Errorf("unsupported transport %v", res.Transport)
	}
	if err != nil {
		return fmt.Errorf("installing commit-msg hook: %w", err)
	}

	if err := makeExecutable(dest); err != nil {
		return fmt.Errorf("installing commit-msg hook: %w", err)
	}
	ins.slog.Info("installed commit-msg hook", "path", dest)
	return nil
}

func (ins *Installer) download(ctx context.Context, baseURL, dest string) error {
	hookURL := strings.TrimRight(baseURL, "/") + "/tools/hooks/commit-msg"
	req, err := http.NewRequestWithContext(ctx, "GET", hookURL, nil)
	if err != nil {
		return err
	}
	resp, err := ins.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: status %s", hookURL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", hookURL, err)
	}
	return os.WriteFile(dest, body, 0o666)
}

func (ins *Installer) scp(ctx context.Context, remote, dest string) error {
	addr, _, err := gerrit.ParseSSHRemote(remote)
	if err != nil {
		return err
	}
	src := addr.Host + ":hooks/commit-msg"
	if addr.User != "" {
		src = addr.User + "@" + src
	}
	stderr, err := ins.run(ctx, "scp", "-p", "-P", strconv.Itoa(addr.Port), src, dest)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return fmt.Errorf("scp %s: %s: %w", src, msg, err)
		}
		return fmt.Errorf("scp %s: %w", src, err)
	}
	return nil
}

// makeExecutable adds an execute bit for every set read bit, the way
// a umask-respecting install does.
func makeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode()
	return os.Chmod(path, mode|(mode&0o444)>>2)
}
