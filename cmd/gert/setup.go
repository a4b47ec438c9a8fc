// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/hook"
)

func newSetupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Install Gerrit's commit-msg hook into the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.needRepo(); err != nil {
				return err
			}
			ctx := cmd.Context()
			res, err := a.resolveRemote()
			if err != nil {
				return err
			}
			hooksDir, err := a.repo.HooksDir(ctx)
			if err != nil {
				return err
			}
			ins := hook.NewInstaller(a.lg, nil)
			if err := ins.Install(ctx, hooksDir, res); err != nil {
				return err
			}
			fmt.Println("commit-msg hook installed")
			return nil
		},
	}
	return cmd
}
