// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/gerritkit/gert/internal/giturl"
	"github.com/gerritkit/gert/internal/testutil"
)

const hookScript = "#!/bin/sh\n# add Change-Id\n"

func TestInstallHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools/hooks/commit-msg" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(hookScript))
	}))
	defer srv.Close()

	hooks := filepath.Join(t.TempDir(), "hooks")
	ins := NewInstaller(testutil.Slogger(t), nil)
	res := giturl.Resolved{Remote: "origin", URL: srv.URL, Transport: giturl.TransportHTTP}
	testutil.Check(t, ins.Install(context.Background(), hooks, res))

	dest := filepath.Join(hooks, "commit-msg")
	body, err := os.ReadFile(dest)
	testutil.Check(t, err)
	if string(body) != hookScript {
		t.Errorf("hook content = %q, want %q", body, hookScript)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(dest)
		testutil.Check(t, err)
		if info.Mode()&0o100 == 0 {
			t.Errorf("hook mode %v lacks owner execute bit", info.Mode())
		}
	}
}

func TestInstallHTTPServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer srv.Close()

	ins := NewInstaller(testutil.Slogger(t), nil)
	res := giturl.Resolved{Remote: "origin", URL: srv.URL, Transport: giturl.TransportHTTP}
	err := ins.Install(context.Background(), t.TempDir(), res)
	if err == nil {
		t.Fatal("Install with 404 server succeeded")
	}
}

func TestInstallKeepsExisting(t *testing.T) {
	hooks := t.TempDir()
	dest := filepath.Join(hooks, "commit-msg")
	testutil.Check(t, os.WriteFile(dest, []byte("original"), 0o755))

	// No server: any fetch attempt would fail loudly.
	ins := NewInstaller(testutil.Slogger(t), nil)
	res := giturl.Resolved{Remote: "origin", URL: "http://127.0.0.1:0", Transport: giturl.TransportHTTP}
	testutil.Check(t, ins.Install(context.Background(), hooks, res))

	body, err := os.ReadFile(dest)
	testutil.Check(t, err)
	if string(body) != "original" {
		t.Errorf("existing hook was overwritten: %q", body)
	}
}

func TestInstallSSH(t *testing.T) {
	hooks := t.TempDir()
	var gotArgs []string
	ins := NewInstaller(testutil.Slogger(t), nil)
	ins.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		// scp writes the destination file itself.
		return nil, os.WriteFile(args[len(args)-1], []byte(hookScript), 0o666)
	}

	res := giturl.Resolved{
		Remote:    "gerrit",
		URL:       "ssh://alice@gerrit.example.com:29419/tools",
		Transport: giturl.TransportSSH,
	}
	testutil.Check(t, ins.Install(context.Background(), hooks, res))

	want := []string{
		"scp", "-p", "-P", "29419",
		"alice@gerrit.example.com:hooks/commit-msg",
		filepath.Join(hooks, "commit-msg"),
	}
	if !slices.Equal(gotArgs, want) {
		t.Errorf("scp argv = %q, want %q", gotArgs, want)
	}
}

func TestInstallSSHFailure(t *testing.T) {
	ins := NewInstaller(testutil.Slogger(t), nil)
	ins.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Permission denied (publickey).\n"), os.ErrPermission
	}
	res := giturl.Resolved{
		Remote:    "gerrit",
		URL:       "ssh://gerrit.example.com/tools",
		Transport: giturl.TransportSSH,
	}
	err := ins.Install(context.Background(), t.TempDir(), res)
	if err == nil {
		t.Fatal("Install with failing scp succeeded")
	}
	if want := "Permission denied"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not mention %q", err, want)
	}
}
