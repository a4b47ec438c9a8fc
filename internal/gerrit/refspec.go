// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gerrit

import (
	"fmt"
	"net/url"
	"strings"
)

// PushOptions select how a change is uploaded for review.
// The zero value pushes with no options at all.
type PushOptions struct {
	// Branch is the target branch on the server. Required.
	Branch string

	// Topic groups related changes. A topic equal to Branch is
	// dropped as redundant.
	Topic string

	// WIP marks the change work-in-progress; Ready clears the mark.
	WIP   bool
	Ready bool

	// Private hides the change from other users; RemovePrivate
	// reverses that.
	Private       bool
	RemovePrivate bool

	// Reviewers and CC name accounts to add, by username or email.
	Reviewers []string
	CC        []string

	// Hashtags to attach to the change.
	Hashtags []string

	// Message is a review message published with the upload.
	Message string

	// Notify limits who gets email: NONE, OWNER, OWNER_REVIEWERS
	// or ALL.
	Notify string
}

// PushRefspec builds the refspec argument of `git push` for uploading
// HEAD, for example "HEAD:refs/for/main%topic=foo,r=alice".
func PushRefspec(opts PushOptions) (string, error) {
	if opts.Branch == "" {
		return "", fmt.Errorf("push refspec: no target branch")
	}

	var options []string
	if opts.Topic != "" && opts.Topic != opts.Branch {
		options = append(options, "topic="+opts.Topic)
	}
	if opts.WIP {
		options = append(options, "wip")
	}
	if opts.Ready {
		options = append(options, "ready")
	}
	if opts.Private {
		options = append(options, "private")
	}
	if opts.RemovePrivate {
		options = append(options, "remove-private")
	}
	for _, reviewer := range opts.Reviewers {
		trimmed := strings.TrimSpace(reviewer)
		if strings.ContainsFunc(trimmed, isSpace) {
			return "", fmt.Errorf("reviewer name contains whitespace: %q", trimmed)
		}
		options = append(options, "r="+trimmed)
	}
	for _, cc := range opts.CC {
		options = append(options, "cc="+strings.TrimSpace(cc))
	}
	for _, hashtag := range opts.Hashtags {
		options = append(options, "hashtag="+hashtag)
	}
	if opts.Message != "" {
		// Spaces must arrive as %20, not the + of query encoding,
		// and commas must not split the option list.
		encoded := strings.ReplaceAll(url.QueryEscape(opts.Message), "+", "%20")
		options = append(options, "m="+encoded)
	}
	if opts.Notify != "" {
		options = append(options, "notify="+opts.Notify)
	}

	refspec := "HEAD:refs/for/" + opts.Branch
	if len(options) > 0 {
		refspec += "%" + strings.Join(options, ",")
	}
	return refspec, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// ValidChangeID reports whether s has the Change-Id shape: an I
// followed by 40 hex digits.
func ValidChangeID(s string) bool {
	if len(s) != 41 || s[0] != 'I' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// ExtractChangeID returns the last valid Change-Id trailer of a
// commit message, scanning from the bottom the way git trailers are
// resolved.
func ExtractChangeID(message string) (string, bool) {
	lines := strings.Split(message, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		id, found := strings.CutPrefix(trimmed, "Change-Id: ")
		if !found {
			continue
		}
		id = strings.TrimSpace(id)
		if ValidChangeID(id) {
			return id, true
		}
	}
	return "", false
}
