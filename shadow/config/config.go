// Package config loads the shadowsync configuration
// file. The JSON shape matches the historical
// config.json: every option lives under "settings".
// Files ending in .yaml or .yml are decoded as YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/byte4ever/shadowsync/shadow/filter"
)

// ErrConfig marks an invalid configuration. It is the
// same sentinel the filter package returns for bad
// patterns.
var ErrConfig = filter.ErrConfig

// Supported pull request providers.
const (
	ProviderGitHub    = "github"
	ProviderGitLab    = "gitlab"
	ProviderBitbucket = "bitbucket"
)

// DefaultGitBaseURL is the git host used to build
// remote URLs when none is configured.
const DefaultGitBaseURL = "https://github.com"

// File is the on-disk document.
type File struct {
	Settings *Settings `json:"settings" yaml:"settings"`
}

// Features toggles the event handlers.
type Features struct {
	SyncPullRequests bool `json:"syncPullRequests" yaml:"syncPullRequests"`
	SyncPushes       bool `json:"syncPushes"       yaml:"syncPushes"`
}

// Settings holds every recognized option.
type Settings struct {
	Features   Features `json:"features"   yaml:"features"`
	Whitelist  []string `json:"whitelist"  yaml:"whitelist"`
	Exceptions []string `json:"exceptions" yaml:"exceptions"`
	Shadows    []string `json:"shadows"    yaml:"shadows"`

	// Provider is "github" (default), "gitlab" or
	// "bitbucket".
	Provider string `json:"provider" yaml:"provider"`
	// GitBaseURL prefixes every remote URL.
	GitBaseURL string `json:"gitBaseURL" yaml:"gitBaseURL"`
	// APIURL overrides the provider REST endpoint.
	APIURL string `json:"apiURL" yaml:"apiURL"`
	// CrossForkHead qualifies mirrored heads as
	// "<org>:<branch>". Defaults to true.
	CrossForkHead *bool `json:"crossForkHead" yaml:"crossForkHead"`
	// PullRequestBody is a fasttemplate with {{...}}
	// placeholders.
	PullRequestBody string `json:"pullRequestBody" yaml:"pullRequestBody"`
	WorkspaceRoot   string `json:"workspaceRoot"   yaml:"workspaceRoot"`
	// TargetTimeout bounds the work on one shadow
	// target (Go duration, empty for none).
	TargetTimeout string `json:"targetTimeout" yaml:"targetTimeout"`
	// WorkspaceMaxIdle enables eviction of workspaces
	// idle for longer (Go duration, empty disables).
	WorkspaceMaxIdle string `json:"workspaceMaxIdle" yaml:"workspaceMaxIdle"`
}

// Config is a validated configuration with compiled
// patterns and parsed durations.
type Config struct {
	Settings         Settings
	Policy           *filter.Policy
	TargetTimeout    time.Duration
	WorkspaceMaxIdle time.Duration
}

// CrossFork reports whether mirrored heads are
// qualified with the target organization.
func (c *Config) CrossFork() bool {
	return c.Settings.CrossForkHead == nil ||
		*c.Settings.CrossForkHead
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	const errCtx = "loading configuration"

	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf(
			"%s %s: %w", errCtx, path, err,
		)
	}

	return cfg, nil
}

// Parse decodes data ("json" or "yaml") and validates
// it.
func Parse(data []byte, format string) (*Config, error) {
	const errCtx = "parsing configuration"

	var f File

	var err error

	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &f)
	case "json":
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf(
			"%w: %s: unknown format %q",
			ErrConfig, errCtx, format,
		)
	}

	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s: %w", ErrConfig, errCtx, err,
		)
	}

	if f.Settings == nil {
		return nil, fmt.Errorf(
			"%w: %s: missing settings", ErrConfig, errCtx,
		)
	}

	return resolve(*f.Settings)
}

// resolve applies defaults, compiles the policy and
// parses durations.
func resolve(s Settings) (*Config, error) {
	const errCtx = "validating configuration"

	if s.Provider == "" {
		s.Provider = ProviderGitHub
	}

	switch s.Provider {
	case ProviderGitHub, ProviderGitLab:
	case ProviderBitbucket:
		if s.APIURL == "" {
			return nil, fmt.Errorf(
				"%w: %s: bitbucket needs apiURL",
				ErrConfig, errCtx,
			)
		}
	default:
		return nil, fmt.Errorf(
			"%w: %s: unknown provider %q",
			ErrConfig, errCtx, s.Provider,
		)
	}

	if s.GitBaseURL == "" {
		s.GitBaseURL = DefaultGitBaseURL
	}

	for _, org := range s.Shadows {
		if strings.TrimSpace(org) == "" ||
			strings.ContainsAny(org, `/\:`) {
			return nil, fmt.Errorf(
				"%w: %s: invalid shadow org %q",
				ErrConfig, errCtx, org,
			)
		}
	}

	policy, err := filter.Compile(s.Whitelist, s.Exceptions)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	timeout, err := parseDuration("targetTimeout", s.TargetTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	maxIdle, err := parseDuration(
		"workspaceMaxIdle", s.WorkspaceMaxIdle,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &Config{
		Settings:         s,
		Policy:           policy,
		TargetTimeout:    timeout,
		WorkspaceMaxIdle: maxIdle,
	}, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf(
			"%w: %s: %w", ErrConfig, field, err,
		)
	}

	if d < 0 {
		return 0, fmt.Errorf(
			"%w: %s: negative duration", ErrConfig, field,
		)
	}

	return d, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
