// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config assembles the review configuration for a repository
// by layering, lowest to highest: built-in defaults, the repository's
// .gitreview file, the user's gert config file and GERT_* environment,
// and gitreview.* git configuration values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/go-git/gcfg"
	"github.com/spf13/viper"
)

// Config describes how to reach the Gerrit instance behind a
// repository.
type Config struct {
	// Scheme is the REST transport scheme, http or https, or ssh to
	// prefer the SSH CLI.
	Scheme string

	// Host is the Gerrit host name.
	Host string

	// Port is the HTTP(S) port for the REST API. Zero means the
	// scheme's standard port. The .gitreview port is never used here.
	Port int

	// SSHPort is the SSH port from .gitreview, used for git remote
	// URLs only. Zero means Gerrit's conventional 29418.
	SSHPort int

	// Project is the Gerrit project name, without any .git suffix.
	Project string

	// Username is the account to use in SSH remote URLs.
	Username string

	// DefaultBranch is the branch reviews target when none is given.
	DefaultBranch string

	// DefaultRemote is the git remote expected to point at Gerrit.
	DefaultRemote string

	// UsePushURL prefers the remote's push URL when resolving the
	// Gerrit endpoint.
	UsePushURL bool
}

// Default returns the base layer every other source overrides.
func Default() Config {
	return Config{
		Scheme:        "https",
		DefaultBranch: "master",
		DefaultRemote: "gerrit",
	}
}

// BaseURL returns the REST API base URL, scheme://host[:port].
func (c *Config) BaseURL() string {
	u := c.Scheme + "://" + c.Host
	if c.Port != 0 {
		u += ":" + strconv.Itoa(c.Port)
	}
	return u
}

// SSHURL returns the SSH remote URL for the configured project,
// ssh://[user@]host:port/project.
func (c *Config) SSHURL() string {
	port := c.SSHPort
	if port == 0 {
		port = 29418
	}
	u := "ssh://"
	if c.Username != "" {
		u += c.Username + "@"
	}
	u += c.Host + ":" + strconv.Itoa(port)
	if c.Project != "" {
		u += "/" + c.Project
	}
	return u
}

// RemoteURL returns the URL gert assumes for the Gerrit remote when
// the repository does not define one, following the configured
// scheme.
func (c *Config) RemoteURL() string {
	switch c.Scheme {
	case "http", "https":
		u := c.BaseURL()
		if c.Project != "" {
			u += "/" + c.Project
		}
		return u
	}
	return c.SSHURL()
}

// GitConfig is the subset of git configuration the loader reads.
// *git.Config satisfies it.
type GitConfig interface {
	Value(key string) (string, bool)
}

// gitreviewFile is the gcfg shape of a .gitreview file. Project names
// often carry a .git suffix there because they double as remote
// paths; it is stripped after loading.
type gitreviewFile struct {
	Gerrit struct {
		Host          string
		Port          int
		Project       string
		DefaultBranch string
		DefaultRemote string
		Scheme        string
		Username      string
		UsePushURL    bool
	}
}

// Load assembles the configuration for the repository at root.
// configDir overrides the user configuration directory and is
// normally empty; gitCfg may be nil outside a repository.
func Load(root, configDir string, gitCfg GitConfig, lg *slog.Logger) (*Config, error) {
	cfg := Default()

	layer, err := gitreviewLayer(filepath.Join(root, ".gitreview"), lg)
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&cfg, layer, mergo.WithOverride); err != nil {
		return nil, err
	}

	layer, err = userLayer(configDir, lg)
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&cfg, layer, mergo.WithOverride); err != nil {
		return nil, err
	}

	if err := mergo.Merge(&cfg, gitLayer(gitCfg, lg), mergo.WithOverride); err != nil {
		return nil, err
	}

	cfg.Project = strings.TrimSuffix(cfg.Project, ".git")
	cfg.Scheme = strings.ToLower(cfg.Scheme)
	return &cfg, nil
}

// gitreviewLayer reads the repository's .gitreview file. The file's
// port key is the SSH port. Unknown keys are warnings, not errors;
// plenty of .gitreview files in the wild carry extras.
func gitreviewLayer(path string, lg *slog.Logger) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	var f gitreviewFile
	if err := gcfg.FatalOnly(gcfg.ReadFileInto(&f, path)); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	lg.Debug("config: loaded .gitreview", "path", path, "host", f.Gerrit.Host)
	return Config{
		Host:          f.Gerrit.Host,
		SSHPort:       f.Gerrit.Port,
		Project:       f.Gerrit.Project,
		Username:      f.Gerrit.Username,
		DefaultBranch: f.Gerrit.DefaultBranch,
		DefaultRemote: f.Gerrit.DefaultRemote,
		Scheme:        f.Gerrit.Scheme,
		UsePushURL:    f.Gerrit.UsePushURL,
	}, nil
}

// userLayer reads <config dir>/gert/config.yaml and the GERT_*
// environment. A missing file is fine; the environment still applies.
func userLayer(configDir string, lg *slog.Logger) (Config, error) {
	if configDir == "" {
		var err error
		configDir, err = os.UserConfigDir()
		if err != nil {
			return Config{}, nil
		}
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(configDir, "gert"))
	v.SetEnvPrefix("GERT")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading user config: %w", err)
		}
	} else {
		lg.Debug("config: loaded user config", "path", v.ConfigFileUsed())
	}
	return Config{
		Scheme:        v.GetString("scheme"),
		Host:          v.GetString("host"),
		Port:          v.GetInt("port"),
		SSHPort:       v.GetInt("sshport"),
		Project:       v.GetString("project"),
		Username:      v.GetString("username"),
		DefaultBranch: v.GetString("defaultbranch"),
		DefaultRemote: v.GetString("defaultremote"),
		UsePushURL:    v.GetBool("usepushurl"),
	}, nil
}

// gitLayer reads gitreview.* git configuration values, the highest
// precedence source.
func gitLayer(gitCfg GitConfig, lg *slog.Logger) Config {
	if gitCfg == nil {
		return Config{}
	}
	get := func(key string) string {
		v, _ := gitCfg.Value("gitreview." + key)
		return v
	}
	var cfg Config
	cfg.Host = get("host")
	cfg.Project = get("project")
	cfg.Username = get("username")
	cfg.Scheme = get("scheme")
	cfg.DefaultBranch = get("branch")
	cfg.DefaultRemote = get("remote")
	if s := get("port"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.SSHPort = n
		} else {
			lg.Warn("config: ignoring unparseable gitreview.port", "value", s)
		}
	}
	if s := get("usepushurl"); s != "" {
		switch strings.ToLower(s) {
		case "true", "yes", "on", "1":
			cfg.UsePushURL = true
		}
	}
	return cfg
}
