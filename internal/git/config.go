// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package git

import (
	"bytes"
	"context"
	"iter"
	"strings"

	"github.com/gerritkit/gert/internal/giturl"
)

// A ConfigEntry is one key=value pair of git configuration.
type ConfigEntry struct {
	Key   string
	Value string
}

// A Config is a snapshot of the repository's effective git
// configuration, in the order git reported it (system, then global,
// then local), so later entries override earlier ones.
type Config struct {
	entries []ConfigEntry
}

// Config reads the repository's full configuration.
func (r *Repo) Config(ctx context.Context) (*Config, error) {
	out, err := r.exec.Execute(ctx, r.lg, r.root, "git", "config", "--list", "-z")
	if err != nil {
		return nil, err
	}
	return parseConfigList(out), nil
}

// parseConfigList decodes `git config --list -z` output: one
// NUL-terminated entry per variable, with a newline separating key
// from value. A key without a newline is a valueless boolean, which
// git defines as true.
func parseConfigList(out []byte) *Config {
	c := &Config{}
	for _, entry := range bytes.Split(out, []byte{0}) {
		if len(entry) == 0 {
			continue
		}
		key, value, found := strings.Cut(string(entry), "\n")
		if !found {
			value = "true"
		}
		c.entries = append(c.entries, ConfigEntry{Key: key, Value: value})
	}
	return c
}

// normalizeKey lowercases the section and variable segments of a
// config key, leaving any subsection in between alone, mirroring how
// git itself compares keys.
func normalizeKey(key string) string {
	section, rest, found := strings.Cut(key, ".")
	if !found {
		return strings.ToLower(key)
	}
	i := strings.LastIndex(rest, ".")
	if i < 0 {
		return strings.ToLower(section) + "." + strings.ToLower(rest)
	}
	return strings.ToLower(section) + "." + rest[:i] + "." + strings.ToLower(rest[i+1:])
}

// Value returns the last value configured for key, matching what
// `git config --get` reports.
func (c *Config) Value(key string) (string, bool) {
	key = normalizeKey(key)
	var (
		value string
		found bool
	)
	for _, e := range c.entries {
		if e.Key == key {
			value, found = e.Value, true
		}
	}
	return value, found
}

// Values returns every value configured for key, in order.
func (c *Config) Values(key string) []string {
	key = normalizeKey(key)
	var values []string
	for _, e := range c.entries {
		if e.Key == key {
			values = append(values, e.Value)
		}
	}
	return values
}

// Seq yields every entry in configuration order.
func (c *Config) Seq() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, e := range c.entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// RemoteURLs collects the raw URL configuration of a remote.
func (c *Config) RemoteURLs(remote string) giturl.RemoteURLs {
	u, _ := c.Value("remote." + remote + ".url")
	p, _ := c.Value("remote." + remote + ".pushurl")
	return giturl.RemoteURLs{URL: u, PushURL: p}
}

// Rules collects the repository's URL rewrite rules.
func (c *Config) Rules() *giturl.Rules {
	return giturl.ParseRules(c.Seq())
}
