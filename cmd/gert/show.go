// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/gerrit"
	"github.com/gerritkit/gert/internal/giturl"
	"github.com/gerritkit/gert/internal/render"
)

func newShowCmd(a *app) *cobra.Command {
	var patchset int
	cmd := &cobra.Command{
		Use:   "show <change>",
		Short: "Show a change and its target revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, res, err := a.dispatcher(ctx)
			if err != nil {
				return err
			}
			ch, err := d.ChangeAllRevisions(ctx, args[0])
			if err != nil {
				return err
			}
			hash, rev, err := gerrit.FindTargetRevision(ch, patchset)
			if err != nil {
				return err
			}

			if a.format != "text" {
				return render.Structured(os.Stdout, a.format, ch)
			}

			baseURL := ""
			if res.Transport == giturl.TransportHTTP {
				baseURL = res.URL
			}
			if err := render.ChangeHeader(os.Stdout, ch, baseURL); err != nil {
				return err
			}
			fmt.Printf("Patchset %d: %s (%s)\n", rev.Number, hash, rev.Ref)
			if len(ch.Messages) > 0 {
				fmt.Println("\nReview messages:")
				fmt.Println()
				return render.Messages(os.Stdout, ch.Messages)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&patchset, "patchset", "p", 0, "show this patchset instead of the current one")
	return cmd
}
