// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/gerrit"
	"github.com/gerritkit/gert/internal/render"
)

func newCommentsCmd(a *app) *cobra.Command {
	var unresolvedOnly bool
	cmd := &cobra.Command{
		Use:   "comments <change>",
		Short: "Show the review comment threads of a change",
		Long: `Comments fetches a change's inline comments and reconstructs the
reply threads. Comments are only available over the REST API; on an
SSH remote this command reports an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, _, err := a.dispatcher(ctx)
			if err != nil {
				return err
			}
			byFile, err := d.ChangeComments(ctx, args[0])
			if err != nil {
				return err
			}
			threads := gerrit.BuildThreads(byFile)
			if unresolvedOnly {
				kept := threads[:0]
				for _, th := range threads {
					if !th.Resolved {
						kept = append(kept, th)
					}
				}
				threads = kept
			}

			if a.format != "text" {
				return render.Structured(os.Stdout, a.format, threads)
			}
			if err := render.Threads(os.Stdout, threads); err != nil {
				return err
			}
			if len(threads) > 0 {
				os.Stdout.WriteString("\n")
			}
			return render.ThreadSummary(os.Stdout, threads)
		},
	}
	cmd.Flags().BoolVarP(&unresolvedOnly, "unresolved", "u", false, "show only unresolved threads")
	return cmd
}
