// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/gerrit"
)

func newDownloadCmd(a *app) *cobra.Command {
	var (
		cherrypick bool
		indicate   bool
		noCommit   bool
	)
	cmd := &cobra.Command{
		Use:   "download <change>[,<patchset>]",
		Short: "Fetch a change's patchset and check it out on a review branch",
		Long: `Download fetches a patchset from Gerrit and checks it out on a
review/ branch. The change may be given as a number, a Change-Id, or a
Gerrit web URL. With --cherrypick (or --indicate or --no-commit) the
patchset is applied onto the current branch instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.needRepo(); err != nil {
				return err
			}
			ctx := cmd.Context()
			changeID, patchset, err := parseChangeArg(args[0])
			if err != nil {
				return err
			}

			d, res, err := a.dispatcher(ctx)
			if err != nil {
				return err
			}
			ch, err := d.ChangeAllRevisions(ctx, changeID)
			if err != nil {
				return err
			}
			_, rev, err := gerrit.FindTargetRevision(ch, patchset)
			if err != nil {
				return err
			}
			if rev.Ref == "" {
				return fmt.Errorf("change %d patchset %d has no fetch ref", ch.Number, rev.Number)
			}

			target := a.pushTarget(res)
			sha, err := a.repo.FetchSHA(ctx, target, rev.Ref)
			if err != nil {
				return err
			}

			if cherrypick || indicate || noCommit {
				if err := a.repo.CherryPick(ctx, sha, indicate, noCommit); err != nil {
					return err
				}
				if noCommit {
					fmt.Printf("Applied change %d patchset %d to the working tree\n", ch.Number, rev.Number)
				} else {
					fmt.Printf("Cherry-picked change %d patchset %d\n", ch.Number, rev.Number)
				}
				return nil
			}

			branch := reviewBranchName(ch, rev)
			if err := a.repo.CheckoutBranch(ctx, branch, sha); err != nil {
				return err
			}
			fmt.Printf("Checked out change %d patchset %d on branch %s\n", ch.Number, rev.Number, branch)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&cherrypick, "cherrypick", "x", false, "cherry-pick the patchset onto the current branch")
	cmd.Flags().BoolVarP(&indicate, "indicate", "X", false, "cherry-pick recording the picked-from commit in the message")
	cmd.Flags().BoolVarP(&noCommit, "no-commit", "N", false, "apply the patchset to the working tree without committing")
	cmd.MarkFlagsMutuallyExclusive("cherrypick", "indicate", "no-commit")
	return cmd
}

// parseChangeArg splits the "N[,PS]" download argument. The change
// part may also be a Change-Id or a Gerrit web URL; the patchset,
// when present, must be a positive number.
func parseChangeArg(arg string) (change string, patchset int, err error) {
	change, ps, found := strings.Cut(normalizeChangeArg(arg), ",")
	if change == "" {
		return "", 0, fmt.Errorf("invalid change %q", arg)
	}
	if !found {
		return change, 0, nil
	}
	n, err := strconv.Atoi(ps)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("invalid patchset in %q", arg)
	}
	return change, n, nil
}

// normalizeChangeArg reduces a Gerrit web URL to the "N[,PS]" form.
// Anything that is not a recognized URL passes through unchanged.
//
// Recognized patterns:
//
//	https://host/12345            -> 12345
//	https://host/12345/2          -> 12345,2
//	https://host/#/c/12345        -> 12345
//	https://host/c/proj/+/12345/1 -> 12345,1
func normalizeChangeArg(arg string) string {
	u, err := url.Parse(arg)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return arg
	}

	// Old-UI fragment form: #/c/N[/PS].
	if rest, ok := strings.CutPrefix(strings.TrimPrefix(u.Fragment, "/"), "c/"); ok {
		if s, ok := leadingChange(rest); ok {
			return s
		}
	}

	path := strings.TrimSuffix(u.Path, "/")

	// PolyGerrit form: /c/PROJECT/+/N[/PS].
	if rest, ok := strings.CutPrefix(path, "/c/"); ok {
		if _, after, found := strings.Cut(rest, "/+/"); found {
			if s, ok := leadingChange(after); ok {
				return s
			}
		}
	}

	// Bare form: trailing /N or /N/PS segments.
	segs := splitSegments(path)
	if n := len(segs); n >= 2 && isNumeric(segs[n-2]) && isNumeric(segs[n-1]) {
		return segs[n-2] + "," + segs[n-1]
	} else if n >= 1 && isNumeric(segs[n-1]) {
		return segs[n-1]
	}
	return arg
}

// leadingChange reads the change number and optional patchset from
// the front of a path remainder, N[/PS/...].
func leadingChange(path string) (string, bool) {
	segs := splitSegments(path)
	switch {
	case len(segs) >= 2 && isNumeric(segs[0]) && isNumeric(segs[1]):
		return segs[0] + "," + segs[1], true
	case len(segs) >= 1 && isNumeric(segs[0]):
		return segs[0], true
	}
	return "", false
}

func splitSegments(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// reviewBranchName names the local branch for a downloaded patchset:
// review/<owner>/<topic> when both are known, else
// review/<number>/<patchset>.
func reviewBranchName(ch *gerrit.Change, rev *gerrit.Revision) string {
	if ch.Topic != "" && ch.Owner != nil && ch.Owner.Username != "" {
		return "review/" + ch.Owner.Username + "/" + ch.Topic
	}
	return fmt.Sprintf("review/%d/%d", ch.Number, rev.Number)
}
