// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// clientVersion reads the module version stamped into the binary.
func clientVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func newVersionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the gert and Gerrit server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("gert", clientVersion())

			// The server half needs a resolvable remote; without
			// one, the client version alone is still useful.
			d, _, err := a.dispatcher(cmd.Context())
			if err != nil {
				a.lg.Debug("skipping server version", "err", err)
				return nil
			}
			v, err := d.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("gerrit %s (%s)\n", v, d.Transport())
			return nil
		},
	}
	return cmd
}
