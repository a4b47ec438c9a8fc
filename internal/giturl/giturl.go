// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package giturl resolves which URL, and over which transport, a git
// remote actually reaches.
//
// Git lets configuration rewrite remote URLs (url.<base>.insteadOf
// and url.<base>.pushInsteadOf) and override the push destination
// (remote.<name>.pushurl), so the URL stored on a remote is not
// necessarily the one contacted. This package applies those rules the
// way git itself does and classifies the result as HTTP or SSH. It
// does not read git config; callers feed it configuration entries.
package giturl

import (
	"iter"
	"strings"
)

// A Transport is the protocol family a URL reaches Gerrit over.
type Transport int

const (
	// TransportSSH covers everything that is not plain HTTP(S),
	// including scp-like user@host:path forms.
	TransportSSH Transport = iota

	// TransportHTTP covers http and https URLs.
	TransportHTTP
)

func (t Transport) String() string {
	switch t {
	case TransportHTTP:
		return "REST"
	case TransportSSH:
		return "SSH"
	}
	return "unknown"
}

// Classify reports the transport for a URL. It is HTTP iff the
// scheme is literally http or https; every other form is SSH.
func Classify(url string) Transport {
	scheme, _, ok := strings.Cut(url, "://")
	if ok && (scheme == "http" || scheme == "https") {
		return TransportHTTP
	}
	return TransportSSH
}

// A rule rewrites URLs beginning with old to begin instead with new.
// In git config the replacement is the section name and the matched
// prefix is the value: url.<new>.insteadOf = <old>.
type rule struct {
	old string
	new string
}

// Rules holds the URL rewrite rules of a repository, in the order
// git configuration listed them.
type Rules struct {
	insteadOf     []rule
	pushInsteadOf []rule
}

// ParseRules collects rewrite rules from git configuration entries.
// The entries must arrive in configuration order; ties between
// equally long prefixes go to the earlier rule.
func ParseRules(entries iter.Seq2[string, string]) *Rules {
	r := &Rules{}
	for key, value := range entries {
		base, suffix, ok := cutURLKey(key)
		if !ok || value == "" {
			continue
		}
		switch suffix {
		case "insteadof":
			r.insteadOf = append(r.insteadOf, rule{old: value, new: base})
		case "pushinsteadof":
			r.pushInsteadOf = append(r.pushInsteadOf, rule{old: value, new: base})
		}
	}
	return r
}

// cutURLKey splits a config key of the form url.<base>.<suffix>,
// returning ok false for any other key. Git lowercases the section
// and variable name but preserves the case of <base>.
func cutURLKey(key string) (base, suffix string, ok bool) {
	rest, found := strings.CutPrefix(key, "url.")
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ".")
	if i <= 0 {
		return "", "", false
	}
	return rest[:i], strings.ToLower(rest[i+1:]), true
}

// Alias rewrites url through the rule whose matched prefix is
// longest. When forPush is set the pushInsteadOf rules are tried
// first, and if any of them matches the insteadOf rules are not
// consulted at all. Without a match url is returned unchanged.
func (r *Rules) Alias(url string, forPush bool) string {
	if forPush {
		if v, ok := bestMatch(r.pushInsteadOf, url); ok {
			return v
		}
	}
	if v, ok := bestMatch(r.insteadOf, url); ok {
		return v
	}
	return url
}

func bestMatch(rules []rule, url string) (string, bool) {
	best := -1
	for i, rl := range rules {
		if !strings.HasPrefix(url, rl.old) {
			continue
		}
		if best < 0 || len(rl.old) > len(rules[best].old) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	rl := rules[best]
	return rl.new + url[len(rl.old):], true
}

// RemoteURLs holds the raw URL configuration of one git remote.
type RemoteURLs struct {
	// URL is remote.<name>.url.
	URL string

	// PushURL is remote.<name>.pushurl, which overrides URL for
	// pushes when set.
	PushURL string
}

// A Resolved names the effective endpoint of a remote after rewrite
// rules have been applied.
type Resolved struct {
	// Remote is the remote's name, kept for messages.
	Remote string

	// URL is the URL actually contacted.
	URL string

	// Transport classifies URL.
	Transport Transport
}

// ResolveRemote determines the effective review URL for a remote.
//
// A configured push URL is already push-oriented, so only insteadOf
// rules apply to it. A plain URL goes through the full push rewrite
// (pushInsteadOf first). With neither configured the fallback is
// used, and with no fallback either, ok is false: an unconfigured
// remote is an expected state, not an error.
func (r *Rules) ResolveRemote(remote string, urls RemoteURLs, fallback string) (Resolved, bool) {
	var effective string
	switch {
	case urls.PushURL != "":
		effective = r.Alias(urls.PushURL, false)
	case urls.URL != "":
		effective = r.Alias(urls.URL, true)
	case fallback != "":
		effective = fallback
	default:
		return Resolved{}, false
	}
	return Resolved{
		Remote:    remote,
		URL:       effective,
		Transport: Classify(effective),
	}, true
}
