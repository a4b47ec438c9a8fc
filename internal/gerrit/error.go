// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"errors"
	"fmt"
)

// Errors reported by the REST client, the SSH backend, and revision
// resolution. Callers branch on these with [errors.Is] and [errors.As];
// everything else is context wrapping via fmt.Errorf and %w.

// An AuthError reports that the server rejected the request's
// credentials (HTTP 401 or 403).
type AuthError struct {
	// StatusCode is the HTTP status the server answered with.
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d)", e.StatusCode)
}

// ErrNotFound reports that the requested entity does not exist
// (HTTP 404, or an SSH query matching no change).
var ErrNotFound = errors.New("not found")

// A ServerError reports a non-2xx HTTP response that is neither an
// authentication failure nor a missing entity. The response body is
// preserved for diagnosis.
type ServerError struct {
	// StatusCode is the HTTP status the server answered with.
	StatusCode int

	// Body is the response body, possibly truncated.
	Body string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("server error (HTTP %d): %s", e.StatusCode, e.Body)
}

// A NetworkError reports that the request never produced an HTTP
// response: connection failures, timeouts, protocol errors.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// retryable reports whether err may succeed on a later attempt.
// Only transport failures and server-side (5xx) errors qualify;
// authentication failures, missing entities and other client errors
// never do.
func retryable(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return false
}

// A SubprocessError reports that the external SSH client exited with
// a failure. Its standard error output, trimmed, is the most useful
// diagnostic and is carried in the message.
type SubprocessError struct {
	// Stderr is the trimmed standard error output of the child.
	Stderr string

	// Err is the underlying exec error.
	Err error
}

func (e *SubprocessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("subprocess failed: %v", e.Err)
	}
	return fmt.Sprintf("subprocess failed: %s", e.Stderr)
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// A MalformedOutputError reports SSH query output that decoded as JSON
// but could not be normalized into the shared model. The description
// names the offending field so a protocol mismatch can be diagnosed.
type MalformedOutputError struct {
	Description string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed query output: %s", e.Description)
}

// A RevisionNotFoundError reports that a change has revision data but
// none of it matches the requested patchset number.
type RevisionNotFoundError struct {
	// Patchset is the number that was asked for.
	Patchset int
}

func (e *RevisionNotFoundError) Error() string {
	return fmt.Sprintf("patchset %d not found in change", e.Patchset)
}

// ErrNoRevisionData reports a change that carries no revision data at
// all, so no patchset can be resolved from it.
var ErrNoRevisionData = errors.New("change has no revision data")

// ErrNoCurrentRevision reports a change whose current revision is
// needed but absent or dangling. It is distinct from
// [RevisionNotFoundError]: no concrete patchset number was asked for.
var ErrNoCurrentRevision = errors.New("change has no current revision")

// ErrSSHComments reports an attempt to fetch comments over an
// SSH-classified remote. The SSH protocol has no comment operation;
// comments require the REST transport.
var ErrSSHComments = errors.New("comments require the REST transport")
