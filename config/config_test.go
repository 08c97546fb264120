package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithMockProvider(t *testing.T) {
	t.Setenv("SITECREW_PROVIDER", "mock")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Provider)
	assert.Equal(t, "index.html", cfg.ArtifactFile)
	assert.Equal(t, "main", cfg.PrimaryBranch)
	assert.Equal(t, 24, cfg.MaxTurns)
}

func TestLoad_YAMLFileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "provider: mock\ntarget_dir: /tmp/site\nmax_turns: 8\npush_timeout: 30s\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SITECREW_MAX_TURNS", "12")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/site", cfg.TargetDir)
	assert.Equal(t, 12, cfg.MaxTurns, "env must win over file")
	assert.Equal(t, 30*time.Second, cfg.PushTimeout)
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	t.Setenv("SITECREW_PROVIDER", "mock")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "mock", cfg.Provider)
}

func TestValidate_MissingCredentialIsConfigurationError(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := Default()
	cfg.Provider = "openai"

	err := cfg.Validate()

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "provider", cerr.Field)
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Provider = "carrier-pigeon"

	err := cfg.Validate()

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "carrier-pigeon")
}

func TestValidate_Bounds(t *testing.T) {
	cfg := Default()
	cfg.Provider = "mock"
	cfg.MaxTurns = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Provider = "mock"
	cfg.TargetDir = ""
	assert.Error(t, cfg.Validate())
}
