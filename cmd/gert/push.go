// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/gerrit"
)

func newPushCmd(a *app) *cobra.Command {
	var opts gerrit.PushOptions
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push HEAD to Gerrit for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.needRepo(); err != nil {
				return err
			}
			ctx := cmd.Context()

			// Refuse to push commits Gerrit cannot track.
			msg, err := a.repo.HeadCommitMessage(ctx)
			if err != nil {
				return err
			}
			if _, ok := gerrit.ExtractChangeID(msg); !ok {
				return fmt.Errorf("HEAD commit has no Change-Id trailer; run gert setup and amend the commit")
			}

			if opts.Branch == "" {
				opts.Branch = a.cfg.DefaultBranch
			}
			refspec, err := gerrit.PushRefspec(opts)
			if err != nil {
				return err
			}

			res, err := a.resolveRemote()
			if err != nil {
				return err
			}
			target := a.pushTarget(res)
			a.lg.Debug("pushing", "target", target, "refspec", refspec)
			return a.repo.Push(ctx, target, refspec, os.Stdout)
		},
	}
	cmd.Flags().StringVarP(&opts.Branch, "branch", "b", "", "target branch (default from configuration)")
	cmd.Flags().StringVarP(&opts.Topic, "topic", "t", "", "topic to set on the change")
	cmd.Flags().BoolVar(&opts.WIP, "wip", false, "mark the change work-in-progress")
	cmd.Flags().BoolVar(&opts.Ready, "ready", false, "mark the change ready for review")
	cmd.Flags().BoolVar(&opts.Private, "private", false, "mark the change private")
	cmd.Flags().BoolVar(&opts.RemovePrivate, "remove-private", false, "remove the private mark")
	cmd.Flags().StringSliceVarP(&opts.Reviewers, "reviewer", "r", nil, "add a reviewer (repeatable)")
	cmd.Flags().StringSliceVar(&opts.CC, "cc", nil, "CC an account (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Hashtags, "hashtag", nil, "add a hashtag (repeatable)")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "patchset description")
	cmd.Flags().StringVar(&opts.Notify, "notify", "", "who to notify: NONE, OWNER, OWNER_REVIEWERS, or ALL")
	return cmd
}
