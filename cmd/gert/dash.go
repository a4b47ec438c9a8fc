// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/gerritkit/gert/internal/dash"
	"github.com/gerritkit/gert/internal/giturl"
	"github.com/gerritkit/gert/internal/mirror"
	"github.com/gerritkit/gert/internal/pebble"
	"github.com/gerritkit/gert/internal/storage"
)

func newDashCmd(a *app) *cobra.Command {
	var (
		addr     string
		dbPath   string
		projects []string
		branch   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Serve a local dashboard of open changes",
		Long: `Dash mirrors the open changes of one or more projects into a local
database and serves them as an HTML table. With --interval the mirror
refreshes itself periodically; it always refreshes once at startup and
on POST /refresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, res, err := a.dispatcher(ctx)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				if a.cfg.Project == "" {
					return fmt.Errorf("no project configured; pass --project")
				}
				projects = []string{a.cfg.Project}
			}

			var db storage.DB
			if dbPath == "" {
				db = storage.MemDB()
			} else {
				db, err = pebble.Open(a.lg, dbPath)
				if err != nil {
					db, err = pebble.Create(a.lg, dbPath)
				}
				if err != nil {
					return err
				}
			}
			defer db.Close()

			m := mirror.New(a.lg, db)
			refresh := func(ctx context.Context, project string) error {
				return m.Refresh(ctx, d, project, branch)
			}
			for _, project := range projects {
				if err := refresh(ctx, project); err != nil {
					return err
				}
			}

			s := dash.New(a.lg, m, projects, refresh, nil)
			if res.Transport == giturl.TransportHTTP {
				s.BaseURL = res.URL
			} else if a.cfg.Host != "" {
				s.BaseURL = a.cfg.BaseURL()
			}

			if interval > 0 {
				go func() {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
							for _, project := range projects {
								if err := refresh(ctx, project); err != nil {
									a.lg.Error("periodic refresh failed", "project", project, "err", err)
								}
							}
						}
					}
				}()
			}

			srv := &http.Server{Addr: addr, Handler: s.Handler()}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			a.lg.Info("dashboard listening", "addr", addr, "projects", projects)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8478", "listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "pebble database directory (default in-memory)")
	cmd.Flags().StringSliceVar(&projects, "project", nil, "project to mirror (repeatable; default from configuration)")
	cmd.Flags().StringVar(&branch, "branch", "", "restrict the mirror to changes targeting this branch")
	cmd.Flags().DurationVar(&interval, "interval", 0, "periodic refresh interval (0 disables)")
	return cmd
}
