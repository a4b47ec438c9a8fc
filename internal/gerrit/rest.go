// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"
)

// An AuthType selects how credentials become an Authorization header.
type AuthType string

const (
	// AuthBasic sends base64(username:password).
	AuthBasic AuthType = "basic"

	// AuthBearer sends the password as a bearer token directly.
	AuthBearer AuthType = "bearer"

	// AuthCookie sends a cookie named Username with value Password,
	// the scheme git cookie files store.
	AuthCookie AuthType = "cookie"
)

// Credentials authenticate REST requests. They are immutable for the
// lifetime of a [Client]; build a new client after they change.
type Credentials struct {
	Username string
	Password string
	Type     AuthType
}

// A Client issues GET requests against a Gerrit REST base URL.
//
// With credentials, every endpoint is requested under the /a/
// authenticated prefix; without, under the bare base URL. Callers
// never choose the prefix.
//
// Transient failures (connection errors, 5xx responses) are retried
// with exponential backoff; everything else returns immediately.
// A Client is safe for concurrent use.
type Client struct {
	base  *url.URL
	creds *Credentials
	slog  *slog.Logger
	hc    *http.Client

	// retry policy; tests shrink the delay
	maxAttempts int
	retryMin    time.Duration
}

const (
	restAttempts = 4 // one initial try plus three retries
	restRetryMin = 1 * time.Second
)

// NewClient returns a client for the Gerrit server at baseURL, which
// must be an http or https URL and may carry a sub-path. creds may be
// nil for anonymous access. hc may be nil for http.DefaultClient.
func NewClient(baseURL string, creds *Credentials, lg *slog.Logger, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Gerrit base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid Gerrit base URL %q: scheme must be http or https", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		base:        u,
		creds:       creds,
		slog:        lg,
		hc:          hc,
		maxAttempts: restAttempts,
		retryMin:    restRetryMin,
	}, nil
}

// Authenticated reports whether the client holds credentials.
func (c *Client) Authenticated() bool { return c.creds != nil }

// url builds the request URL for path, which must already be
// path-escaped. The /a/ prefix is added iff credentials are set.
func (c *Client) url(path string, query url.Values) string {
	var sb strings.Builder
	sb.WriteString(c.base.String())
	if c.creds != nil {
		sb.WriteString("/a")
	}
	sb.WriteString(path)
	if len(query) > 0 {
		sb.WriteString("?")
		sb.WriteString(query.Encode())
	}
	return sb.String()
}

// get issues one logical GET request, retrying transient failures,
// and decodes the JSON response into obj.
//
// Cancelling ctx aborts both in-flight requests and pending backoff
// sleeps.
func (c *Client) get(ctx context.Context, path string, query url.Values, obj any) error {
	requestURL := c.url(path, query)
	b := &backoff.Backoff{
		Min:    c.retryMin,
		Max:    time.Minute,
		Factor: 2,
	}
	for attempt := 0; ; attempt++ {
		err := c.do(ctx, requestURL, obj)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return fmt.Errorf("Gerrit API request to %s: %w", path, err)
		}
		if attempt+1 >= c.maxAttempts {
			return fmt.Errorf("Gerrit API request to %s (exhausted retries): %w", path, err)
		}
		delay := b.ForAttempt(float64(attempt))
		c.slog.Debug("gerrit request failed, retrying",
			"path", path, "attempt", attempt+1, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// do makes a single attempt at requestURL.
func (c *Client) do(ctx context.Context, requestURL string, obj any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if c.creds != nil {
		switch c.creds.Type {
		case AuthBearer:
			req.Header.Set("Authorization", "Bearer "+c.creds.Password)
		case AuthCookie:
			req.AddCookie(&http.Cookie{Name: c.creds.Username, Value: c.creds.Password})
		default:
			req.SetBasicAuth(c.creds.Username, c.creds.Password)
		}
	}
	c.slog.Debug("gerrit GET", "url", req.URL.Redacted())

	resp, err := c.hc.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if obj == nil {
		return nil
	}
	if err := json.Unmarshal(stripXSSI(body), obj); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}

// stripXSSI removes Gerrit's cross-site script inclusion guard: a
// first line beginning )]} (closing quote optional), kept only when
// newline-terminated. Anything else is returned unchanged.
func stripXSSI(body []byte) []byte {
	if !bytes.HasPrefix(body, []byte(")]}")) {
		return body
	}
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		return body[i+1:]
	}
	return body
}

// Query options requesting the expansions the shared model needs.
var (
	queryOpts    = []string{"CURRENT_REVISION", "DETAILED_ACCOUNTS"}
	detailOpts   = []string{"CURRENT_REVISION", "DETAILED_ACCOUNTS", "MESSAGES"}
	revisionOpts = []string{"ALL_REVISIONS", "DETAILED_ACCOUNTS"}
)

// Version returns the version string reported by the server,
// for example "3.9.1".
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	if err := c.get(ctx, "/config/server/version", nil, &version); err != nil {
		return "", err
	}
	return version, nil
}

// Self returns the account the configured credentials authenticate as.
func (c *Client) Self(ctx context.Context) (*Account, error) {
	var a Account
	if err := c.get(ctx, "/accounts/self", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// QueryChanges runs a Gerrit query-language query, such as
// "project:tools status:open", and returns the matching changes with
// their current revision and detailed accounts.
func (c *Client) QueryChanges(ctx context.Context, query string) ([]*Change, error) {
	q := url.Values{
		"q": {query},
		"o": queryOpts,
	}
	var changes []*Change
	if err := c.get(ctx, "/changes/", q, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

// ChangeDetail returns one change with its current revision, detailed
// accounts, and review messages.
func (c *Client) ChangeDetail(ctx context.Context, changeID string) (*Change, error) {
	q := url.Values{"o": detailOpts}
	var ch Change
	if err := c.get(ctx, "/changes/"+url.PathEscape(changeID)+"/detail", q, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// ChangeAllRevisions returns one change with every revision populated.
func (c *Client) ChangeAllRevisions(ctx context.Context, changeID string) (*Change, error) {
	q := url.Values{"o": revisionOpts}
	var ch Change
	if err := c.get(ctx, "/changes/"+url.PathEscape(changeID), q, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Comments returns all review comments on a change across all
// revisions, keyed by file path.
func (c *Client) Comments(ctx context.Context, changeID string) (map[string][]*Comment, error) {
	var m map[string][]*Comment
	if err := c.get(ctx, "/changes/"+url.PathEscape(changeID)+"/comments", nil, &m); err != nil {
		return nil, err
	}
	return fillCommentPaths(m), nil
}

// RevisionComments returns the review comments left on one revision,
// keyed by file path.
func (c *Client) RevisionComments(ctx context.Context, changeID, revisionID string) (map[string][]*Comment, error) {
	path := "/changes/" + url.PathEscape(changeID) + "/revisions/" + url.PathEscape(revisionID) + "/comments"
	var m map[string][]*Comment
	if err := c.get(ctx, path, nil, &m); err != nil {
		return nil, err
	}
	return fillCommentPaths(m), nil
}

// RobotComments returns the automated (robot) comments on a change,
// keyed by file path.
func (c *Client) RobotComments(ctx context.Context, changeID string) (map[string][]*Comment, error) {
	var m map[string][]*Comment
	if err := c.get(ctx, "/changes/"+url.PathEscape(changeID)+"/robotcomments", nil, &m); err != nil {
		return nil, err
	}
	return fillCommentPaths(m), nil
}

// fillCommentPaths copies each map key into the Path field of its
// comments. The REST API omits the path from entries because the
// enclosing map already encodes it.
func fillCommentPaths(m map[string][]*Comment) map[string][]*Comment {
	for path, comments := range m {
		for _, cm := range comments {
			if cm.Path == "" {
				cm.Path = path
			}
		}
	}
	return m
}
