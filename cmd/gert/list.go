// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/render"
)

func newListCmd(a *app) *cobra.Command {
	var (
		verbose bool
		branch  string
		project string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open changes on the Gerrit server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, _, err := a.dispatcher(ctx)
			if err != nil {
				return err
			}

			if project == "" {
				project = a.cfg.Project
			}
			terms := []string{"status:open"}
			if project != "" {
				terms = append(terms, "project:"+project)
			}
			if branch != "" {
				terms = append(terms, "branch:"+branch)
			}
			changes, err := d.QueryChanges(ctx, strings.Join(terms, " "))
			if err != nil {
				return err
			}

			if a.format != "text" {
				return render.Structured(os.Stdout, a.format, changes)
			}
			return render.ChangeTable(os.Stdout, changes, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show project, topic, status, and owner columns")
	cmd.Flags().StringVar(&branch, "branch", "", "restrict to changes targeting this branch")
	cmd.Flags().StringVar(&project, "project", "", "query this project (default from configuration)")
	return cmd
}
