// Package config provides configuration loading for sitecrew.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SITECREW_TARGET_DIR, SITECREW_PROVIDER, ...)
//  2. YAML config file
//  3. Hardcoded defaults
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces sitecrew environment variables.
const envPrefix = "SITECREW_"

// ConfigurationError reports missing or invalid required configuration.
// It is fatal before any agent interaction takes place.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Config holds all operational settings for one sitecrew run.
type Config struct {
	// Provider selects the completion backend: openai, anthropic or mock.
	Provider string `koanf:"provider"`
	// Model optionally overrides the provider's default model id.
	Model string `koanf:"model"`

	// TargetDir is the deployment working directory.
	TargetDir string `koanf:"target_dir"`
	// ArtifactFile is the fixed artifact filename inside TargetDir.
	ArtifactFile string `koanf:"artifact_file"`
	// ArtifactTag is the fence tag participants wrap the deliverable in.
	ArtifactTag string `koanf:"artifact_tag"`

	// RemoteURL registers the default version-control remote when absent.
	RemoteURL string `koanf:"remote_url"`
	// RemoteName is the remote to publish to.
	RemoteName string `koanf:"remote_name"`
	// PrimaryBranch is pushed first; SecondaryBranch is the retry target.
	PrimaryBranch   string `koanf:"primary_branch"`
	SecondaryBranch string `koanf:"secondary_branch"`

	// MaxTurns bounds participant replies per run.
	MaxTurns int `koanf:"max_turns"`
	// ReplyTimeout bounds each completion call.
	ReplyTimeout time.Duration `koanf:"reply_timeout"`
	// PushTimeout bounds each push attempt or deployment script run.
	PushTimeout time.Duration `koanf:"push_timeout"`

	// AutoApprove synthesizes the user approval turn in unattended runs.
	AutoApprove bool `koanf:"auto_approve"`

	// LogLevel is one of debug, info, warn, error; LogFormat text or json.
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Provider:        "openai",
		TargetDir:       "site",
		ArtifactFile:    "index.html",
		ArtifactTag:     "html",
		RemoteName:      "origin",
		PrimaryBranch:   "main",
		SecondaryBranch: "master",
		MaxTurns:        24,
		ReplyTimeout:    2 * time.Minute,
		PushTimeout:     60 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads configuration from the YAML file at path (skipped when empty
// or absent), then overrides with SITECREW_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// SITECREW_TARGET_DIR -> target_dir
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings. Provider credential checks mirror the
// SDKs' own environment variables so a missing key fails fast instead of
// surfacing mid-conversation.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return &ConfigurationError{Field: "provider", Reason: "OPENAI_API_KEY not set"}
		}
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return &ConfigurationError{Field: "provider", Reason: "ANTHROPIC_API_KEY not set"}
		}
	case "mock":
		// No credentials required.
	default:
		return &ConfigurationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", c.Provider)}
	}
	if c.TargetDir == "" {
		return &ConfigurationError{Field: "target_dir", Reason: "must not be empty"}
	}
	if c.MaxTurns <= 0 {
		return &ConfigurationError{Field: "max_turns", Reason: "must be positive"}
	}
	return nil
}
