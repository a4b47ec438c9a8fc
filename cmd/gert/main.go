// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Gert is a Gerrit code-review client. It talks to a Gerrit server
// over its REST API or its SSH query protocol, whichever the
// repository's remote calls for, and presents one view of changes,
// revisions, and review comments either way.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/config"
	"github.com/gerritkit/gert/internal/creds"
	"github.com/gerritkit/gert/internal/gerrit"
	"github.com/gerritkit/gert/internal/git"
	"github.com/gerritkit/gert/internal/giturl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "gert:", err)
		os.Exit(1)
	}
}

// An app carries the per-invocation wiring: the enclosing repository
// (if any), the layered review configuration, and the flags shared by
// every subcommand. Nothing here outlives one command run.
type app struct {
	lg *slog.Logger

	debug    bool
	insecure bool
	login    bool
	remote   string
	format   string

	repo *git.Repo   // nil outside a git repository
	gcfg *git.Config // nil outside a git repository
	cfg  *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "gert",
		Short:         "gert is a Gerrit code-review client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.insecure, "insecure", false, "allow sending credentials over plain http")
	root.PersistentFlags().BoolVar(&a.login, "login", false, "prompt for credentials when no stored source has any")
	root.PersistentFlags().StringVar(&a.remote, "remote", "", "git remote pointing at Gerrit (default from configuration)")
	root.PersistentFlags().StringVar(&a.format, "format", "text", "output format: text, json, or yaml")

	root.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newCommentsCmd(a),
		newDownloadCmd(a),
		newPushCmd(a),
		newSetupCmd(a),
		newVersionCmd(a),
		newDashCmd(a),
	)
	return root
}

// init builds the shared state: logger, repository, configuration.
// Running outside a git repository is fine; commands that need the
// worktree check for themselves.
func (a *app) init(ctx context.Context) error {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	a.lg = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := wd
	if repo, err := git.Discover(wd, a.lg); err == nil {
		a.repo = repo
		root = repo.Root()
		gcfg, err := repo.Config(ctx)
		if err != nil {
			return err
		}
		a.gcfg = gcfg
	} else {
		a.lg.Debug("not inside a git repository", "dir", wd)
	}

	var gitCfg config.GitConfig
	if a.gcfg != nil {
		gitCfg = a.gcfg
	}
	cfg, err := config.Load(root, "", gitCfg, a.lg)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// remoteName returns the git remote to resolve, --remote beating the
// configured default.
func (a *app) remoteName() string {
	if a.remote != "" {
		return a.remote
	}
	return a.cfg.DefaultRemote
}

// resolveRemote computes the effective Gerrit URL for the remote,
// applying the repository's insteadOf rewrite rules, with the
// configured host as fallback for repositories that have no such
// remote yet.
func (a *app) resolveRemote() (giturl.Resolved, error) {
	remote := a.remoteName()
	var urls giturl.RemoteURLs
	rules := &giturl.Rules{}
	if a.gcfg != nil {
		urls = a.gcfg.RemoteURLs(remote)
		rules = a.gcfg.Rules()
	}
	fallback := ""
	if a.cfg.Host != "" {
		fallback = a.cfg.RemoteURL()
	}
	res, ok := rules.ResolveRemote(remote, urls, fallback)
	if !ok {
		return giturl.Resolved{}, fmt.Errorf("remote %q is not configured and no Gerrit host is set; add a .gitreview file or a gitreview.host git config entry", remote)
	}
	a.lg.Debug("resolved remote", "remote", remote, "url", res.URL, "transport", res.Transport)
	return res, nil
}

// dispatcher resolves the remote and builds the matching transport
// client. On REST remotes it loads credentials first; --login lets an
// interactive prompt be the source of last resort.
func (a *app) dispatcher(ctx context.Context) (*gerrit.Dispatcher, giturl.Resolved, error) {
	res, err := a.resolveRemote()
	if err != nil {
		return nil, giturl.Resolved{}, err
	}

	var cr *gerrit.Credentials
	if res.Transport == giturl.TransportHTTP {
		loader := creds.NewLoader(a.lg, a.credsGit())
		loader.AllowPrompt = a.login
		cr, err = loader.Load(ctx, res.URL)
		if err != nil {
			return nil, giturl.Resolved{}, err
		}
		if cr != nil && strings.HasPrefix(res.URL, "http://") && !a.insecure {
			return nil, giturl.Resolved{}, fmt.Errorf("refusing to send credentials to %s over plain http (use --insecure to override)", res.URL)
		}
	}

	d, err := gerrit.NewDispatcher(res, cr, a.lg, nil, nil)
	if err != nil {
		return nil, giturl.Resolved{}, err
	}
	return d, res, nil
}

// credsGit adapts the repository for the credential loader, nil when
// there is no repository.
func (a *app) credsGit() creds.Git {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

// pushTarget is what git fetch/push is pointed at: the remote name
// when the repository defines it, else the resolved URL.
func (a *app) pushTarget(res giturl.Resolved) string {
	if a.gcfg != nil {
		if urls := a.gcfg.RemoteURLs(res.Remote); urls.URL != "" || urls.PushURL != "" {
			return res.Remote
		}
	}
	return res.URL
}

// needRepo fails commands that only make sense inside a worktree.
func (a *app) needRepo() error {
	if a.repo == nil {
		return fmt.Errorf("not inside a git repository")
	}
	return nil
}
