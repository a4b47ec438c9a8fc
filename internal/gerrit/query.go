// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	ometric "go.opentelemetry.io/otel/metric"

	"github.com/gerritkit/gert/internal/giturl"
)

// A Dispatcher routes change operations to the transport a resolved
// remote calls for. It holds exactly one backing client, REST or SSH,
// and is the only path callers should fetch changes through: the
// transports disagree about what they can do (SSH cannot serve
// comments) and the Dispatcher is where that disagreement surfaces
// as a typed error instead of a silent gap.
//
// A Dispatcher is safe for concurrent use.
type Dispatcher struct {
	rest *Client
	ssh  *SSHClient
	slog *slog.Logger

	queries  ometric.Int64Counter
	fetches  ometric.Int64Counter
	failures ometric.Int64Counter
}

// NewDispatcher builds the client matching res's transport. creds and
// hc apply only to REST remotes; SSH remotes authenticate through the
// user's ssh setup. A nil meter uses the global OpenTelemetry meter
// provider, which is a no-op unless the process configured one.
func NewDispatcher(res giturl.Resolved, creds *Credentials, lg *slog.Logger, hc *http.Client, meter ometric.Meter) (*Dispatcher, error) {
	var d *Dispatcher
	switch res.Transport {
	case giturl.TransportHTTP:
		c, err := NewClient(res.URL, creds, lg, hc)
		if err != nil {
			return nil, err
		}
		d = &Dispatcher{rest: c, slog: lg}
	case giturl.TransportSSH:
		addr, _, err := ParseSSHRemote(res.URL)
		if err != nil {
			return nil, err
		}
		d = &Dispatcher{ssh: NewSSHClient(addr, lg), slog: lg}
	default:
		return nil, fmt.Errorf("remote %s: unsupported transport %v", res.Remote, res.Transport)
	}
	d.instrument(meter)
	return d, nil
}

// instrument creates the dispatcher's counter instruments on meter,
// defaulting to the global meter provider. It panics if a counter
// cannot be created.
func (d *Dispatcher) instrument(meter ometric.Meter) {
	if meter == nil {
		meter = otel.Meter("gert/gerrit")
	}
	d.queries = d.newCounter(meter, "queries", "number of change queries")
	d.fetches = d.newCounter(meter, "fetches", "number of change and comment fetches")
	d.failures = d.newCounter(meter, "failures", "number of failed server operations")
}

func (d *Dispatcher) newCounter(meter ometric.Meter, name, description string) ometric.Int64Counter {
	c, err := meter.Int64Counter("gert/gerrit/"+name, ometric.WithDescription(description))
	if err != nil {
		d.slog.Error("counter creation failed", "name", name)
		panic(err)
	}
	return c
}

// Transport names the backing transport, REST or SSH.
func (d *Dispatcher) Transport() string {
	if d.rest != nil {
		return "REST"
	}
	return "SSH"
}

// Version fetches the Gerrit server version.
func (d *Dispatcher) Version(ctx context.Context) (string, error) {
	d.fetches.Add(ctx, 1)
	var (
		v   string
		err error
	)
	if d.rest != nil {
		v, err = d.rest.Version(ctx)
	} else {
		v, err = d.ssh.Version(ctx)
	}
	if err != nil {
		d.failures.Add(ctx, 1)
		return "", fmt.Errorf("fetching server version via %s: %w", d.Transport(), err)
	}
	return v, nil
}

// QueryChanges runs a Gerrit query-language query and returns the
// matching changes with their current revisions.
func (d *Dispatcher) QueryChanges(ctx context.Context, query string) ([]*Change, error) {
	d.queries.Add(ctx, 1)
	var (
		changes []*Change
		err     error
	)
	if d.rest != nil {
		changes, err = d.rest.QueryChanges(ctx, query)
	} else {
		changes, err = d.ssh.QueryChanges(ctx, query)
	}
	if err != nil {
		d.failures.Add(ctx, 1)
		return nil, fmt.Errorf("querying changes via %s: %w", d.Transport(), err)
	}
	return changes, nil
}

// ChangeAllRevisions fetches one change with every revision populated.
func (d *Dispatcher) ChangeAllRevisions(ctx context.Context, changeID string) (*Change, error) {
	d.fetches.Add(ctx, 1)
	var (
		ch  *Change
		err error
	)
	if d.rest != nil {
		ch, err = d.rest.ChangeAllRevisions(ctx, changeID)
	} else {
		ch, err = d.ssh.ChangeAllRevisions(ctx, changeID)
	}
	if err != nil {
		d.failures.Add(ctx, 1)
		return nil, fmt.Errorf("fetching change %s via %s: %w", changeID, d.Transport(), err)
	}
	return ch, nil
}

// ChangeComments fetches all review comments on a change, keyed by
// file path. Only the REST transport can serve them; on an SSH remote
// the error wraps [ErrSSHComments].
func (d *Dispatcher) ChangeComments(ctx context.Context, changeID string) (map[string][]*Comment, error) {
	d.fetches.Add(ctx, 1)
	if d.rest == nil {
		d.failures.Add(ctx, 1)
		return nil, fmt.Errorf("fetching comments for change %s: %w", changeID, ErrSSHComments)
	}
	m, err := d.rest.Comments(ctx, changeID)
	if err != nil {
		d.failures.Add(ctx, 1)
		return nil, fmt.Errorf("fetching comments for change %s: %w", changeID, err)
	}
	return m, nil
}
