// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ometric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/gerritkit/gert/internal/giturl"
	"github.com/gerritkit/gert/internal/testutil"
)

func TestNewDispatcher(t *testing.T) {
	lg := testutil.Slogger(t)

	d, err := NewDispatcher(giturl.Resolved{
		Remote:    "origin",
		URL:       "https://gerrit.example.com/tools",
		Transport: giturl.TransportHTTP,
	}, nil, lg, nil, nil)
	testutil.Check(t, err)
	if d.Transport() != "REST" {
		t.Errorf("Transport = %q, want REST", d.Transport())
	}

	d, err = NewDispatcher(giturl.Resolved{
		Remote:    "origin",
		URL:       "ssh://alice@gerrit.example.com:29418/tools",
		Transport: giturl.TransportSSH,
	}, nil, lg, nil, nil)
	testutil.Check(t, err)
	if d.Transport() != "SSH" {
		t.Errorf("Transport = %q, want SSH", d.Transport())
	}

	if _, err := NewDispatcher(giturl.Resolved{
		Remote:    "origin",
		URL:       "https://gerrit.example.com/tools",
		Transport: giturl.TransportSSH,
	}, nil, lg, nil, nil); err == nil {
		t.Error("SSH dispatcher built from an https URL, want error")
	}
}

func TestDispatcherRoutesToREST(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(")]}'\n[]"))
	}))
	t.Cleanup(srv.Close)

	d, err := NewDispatcher(giturl.Resolved{
		Remote:    "origin",
		URL:       srv.URL,
		Transport: giturl.TransportHTTP,
	}, nil, testutil.Slogger(t), nil, nil)
	testutil.Check(t, err)

	_, err = d.QueryChanges(context.Background(), "status:open")
	testutil.Check(t, err)
	if gotPath != "/changes/" {
		t.Errorf("got path %q, want /changes/", gotPath)
	}
}

func TestDispatcherCommentsOverSSH(t *testing.T) {
	d := &Dispatcher{
		ssh:  sshTestClient(t, &fakeRun{}),
		slog: testutil.Slogger(t),
	}
	d.instrument(nil)
	_, err := d.ChangeComments(context.Background(), "12345")
	if !errors.Is(err, ErrSSHComments) {
		t.Fatalf("got error %v, want ErrSSHComments", err)
	}
	if !strings.Contains(err.Error(), "fetching comments for change 12345") {
		t.Errorf("error %q does not name the operation", err)
	}
}

func TestDispatcherErrorContext(t *testing.T) {
	d := &Dispatcher{
		ssh: sshTestClient(t, &fakeRun{
			stderr: []byte("fatal: remote error\n"),
			err:    fmt.Errorf("exit status 1"),
		}),
		slog: testutil.Slogger(t),
	}
	d.instrument(nil)
	_, err := d.ChangeAllRevisions(context.Background(), "12345")
	if err == nil {
		t.Fatal("ChangeAllRevisions succeeded, want error")
	}
	want := "fetching change 12345 via SSH: subprocess failed: fatal: remote error"
	if got := err.Error(); got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
	var se *SubprocessError
	if !errors.As(err, &se) {
		t.Errorf("SubprocessError not reachable through %v", err)
	}
}

func TestDispatcherVersion(t *testing.T) {
	t.Run("ssh", func(t *testing.T) {
		d := &Dispatcher{
			ssh:  sshTestClient(t, &fakeRun{stdout: []byte("gerrit version 3.9.1\n")}),
			slog: testutil.Slogger(t),
		}
		d.instrument(nil)
		v, err := d.Version(context.Background())
		testutil.Check(t, err)
		if v != "3.9.1" {
			t.Errorf("Version = %q, want 3.9.1", v)
		}
	})

	t.Run("rest", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(")]}'\n\"3.10.0\""))
		}))
		t.Cleanup(srv.Close)
		d, err := NewDispatcher(giturl.Resolved{
			Remote:    "origin",
			URL:       srv.URL,
			Transport: giturl.TransportHTTP,
		}, nil, testutil.Slogger(t), nil, nil)
		testutil.Check(t, err)
		v, err := d.Version(context.Background())
		testutil.Check(t, err)
		if v != "3.10.0" {
			t.Errorf("Version = %q, want 3.10.0", v)
		}
	})
}

// countingMeter hands out counters that record their total, so tests
// can observe dispatcher instrumentation without a metrics pipeline.
type countingMeter struct {
	noop.Meter
	totals map[string]*int64
}

func newCountingMeter() *countingMeter {
	return &countingMeter{totals: map[string]*int64{}}
}

func (m *countingMeter) Int64Counter(name string, _ ...ometric.Int64CounterOption) (ometric.Int64Counter, error) {
	n := new(int64)
	m.totals[name] = n
	return &countingCounter{n: n}, nil
}

func (m *countingMeter) total(name string) int64 {
	if n, ok := m.totals[name]; ok {
		return *n
	}
	return 0
}

type countingCounter struct {
	noop.Int64Counter
	n *int64
}

func (c *countingCounter) Add(_ context.Context, incr int64, _ ...ometric.AddOption) {
	*c.n += incr
}

func TestDispatcherMetrics(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "q=status%3Aopen") {
			w.Write([]byte(")]}'\n[]"))
			return
		}
		http.Error(w, "Not Found", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	meter := newCountingMeter()
	d, err := NewDispatcher(giturl.Resolved{
		Remote:    "origin",
		URL:       srv.URL,
		Transport: giturl.TransportHTTP,
	}, nil, testutil.Slogger(t), nil, meter)
	testutil.Check(t, err)

	_, err = d.QueryChanges(ctx, "status:open")
	testutil.Check(t, err)
	if _, err := d.ChangeAllRevisions(ctx, "12345"); err == nil {
		t.Fatal("ChangeAllRevisions against a 404 server succeeded, want error")
	}

	want := map[string]int64{
		"gert/gerrit/queries":  1,
		"gert/gerrit/fetches":  1,
		"gert/gerrit/failures": 1,
	}
	for name, n := range want {
		if got := meter.total(name); got != n {
			t.Errorf("counter %s = %d, want %d", name, got, n)
		}
	}
}

func TestDispatcherMetricsCommentsOverSSH(t *testing.T) {
	meter := newCountingMeter()
	d := &Dispatcher{
		ssh:  sshTestClient(t, &fakeRun{}),
		slog: testutil.Slogger(t),
	}
	d.instrument(meter)
	if _, err := d.ChangeComments(context.Background(), "12345"); err == nil {
		t.Fatal("ChangeComments over SSH succeeded, want error")
	}
	if got := meter.total("gert/gerrit/fetches"); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	if got := meter.total("gert/gerrit/failures"); got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}
