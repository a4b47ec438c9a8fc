// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dash serves a small HTTP dashboard over the mirrored
// changes of one or more Gerrit projects. It reads only from the
// local mirror; the server is touched solely through the optional
// refresh callback.
package dash

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/safehtml/template"
	"go.opentelemetry.io/otel"
	ometric "go.opentelemetry.io/otel/metric"

	"github.com/gerritkit/gert/internal/gerrit"
	"github.com/gerritkit/gert/internal/mirror"
	"github.com/gerritkit/gert/internal/render"
)

// Embed the template into the binary. The FS form makes it trusted
// with the github.com/google/safehtml/template API.
//
//go:embed tmpl/*.tmpl
var tmplFS embed.FS

var dashTmpl = template.Must(template.New("dash.tmpl").
	ParseFS(template.TrustedFSFromEmbed(tmplFS), "tmpl/dash.tmpl"))

// A Server renders mirrored open changes as an HTML table.
type Server struct {
	slog     *slog.Logger
	mirror   *mirror.Mirror
	projects []string

	// BaseURL, when set, turns change numbers into links to the
	// Gerrit web UI.
	BaseURL string

	// refresh re-syncs one project. Nil disables POST /refresh.
	refresh func(ctx context.Context, project string) error

	indexCounter   ometric.Int64Counter
	refreshCounter ometric.Int64Counter
}

// New returns a dashboard Server over m. A nil meter uses the global
// OpenTelemetry meter provider, which is a no-op unless the process
// configured one.
func New(lg *slog.Logger, m *mirror.Mirror, projects []string, refresh func(ctx context.Context, project string) error, meter ometric.Meter) *Server {
	if meter == nil {
		meter = otel.Meter("gert/dash")
	}
	s := &Server{
		slog:     lg,
		mirror:   m,
		projects: projects,
		refresh:  refresh,
	}
	s.indexCounter = s.newCounter(meter, "indexes", "number of / requests")
	s.refreshCounter = s.newCounter(meter, "refreshes", "number of /refresh requests")
	return s
}

// newCounter creates an integer counter instrument.
// It panics if the counter cannot be created.
func (s *Server) newCounter(meter ometric.Meter, name, description string) ometric.Int64Counter {
	c, err := meter.Int64Counter("gert/dash/"+name, ometric.WithDescription(description))
	if err != nil {
		s.slog.Error("counter creation failed", "name", name)
		panic(err)
	}
	return c
}

// Handler returns the dashboard's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.serveIndex)
	mux.HandleFunc("POST /refresh", s.serveRefresh)
	return mux
}

// Template data.
type (
	page struct {
		Sections   []section
		CanRefresh bool
	}
	section struct {
		Project string
		Mark    string
		Rows    []row
	}
	row struct {
		Number  int
		URL     string
		Branch  string
		Subject string
		Owner   string
		Updated string
	}
)

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	s.indexCounter.Add(r.Context(), 1)

	data := page{CanRefresh: s.refresh != nil}
	for _, project := range s.projects {
		sec := section{Project: project}
		if mark, ok := s.mirror.Mark(project); ok {
			sec.Mark = fmt.Sprintf("%d changes mirrored, synced %s", mark.Count, mark.SyncTime)
		} else {
			sec.Mark = "not synced yet"
		}
		for _, fn := range s.mirror.Changes(project) {
			ch := fn()
			if ch.Status != "NEW" {
				continue
			}
			rw := row{
				Number:  ch.Number,
				Branch:  ch.Branch,
				Subject: ch.Subject,
				Owner:   ownerName(ch.Owner),
				Updated: ch.Updated,
			}
			if s.BaseURL != "" {
				rw.URL = render.ChangeURL(s.BaseURL, project, ch.Number)
			}
			sec.Rows = append(sec.Rows, rw)
		}
		data.Sections = append(data.Sections, sec)
	}

	if err := dashTmpl.Execute(w, data); err != nil {
		s.slog.Error("dash template execution failed", "err", err)
	}
}

func (s *Server) serveRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCounter.Add(r.Context(), 1)

	if s.refresh == nil {
		http.Error(w, "refresh not configured", http.StatusNotFound)
		return
	}
	for _, project := range s.projects {
		if err := s.refresh(r.Context(), project); err != nil {
			s.slog.Error("dash refresh failed", "project", project, "err", err)
			http.Error(w, fmt.Sprintf("refreshing %s: %v", project, err), http.StatusBadGateway)
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func ownerName(a *gerrit.Account) string {
	switch {
	case a == nil:
		return ""
	case a.Name != "":
		return a.Name
	case a.DisplayName != "":
		return a.DisplayName
	case a.Username != "":
		return a.Username
	}
	return a.Email
}
