package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "docs-build", cfg.BinPath)
	assert.Equal(t, EnvironmentProd, cfg.Environment)
	assert.Equal(t, "docs.html", cfg.Template)
	assert.Equal(t, "docpipe.builds", cfg.NATSSubject)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bin_path: /opt/docs/bin/docs-build\nenvironment: ppe\ndebug: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/docs/bin/docs-build", cfg.BinPath)
	assert.Equal(t, EnvironmentPPE, cfg.Environment)
	assert.True(t, cfg.Debug)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: PROD\n"), 0o644))
	t.Setenv("DOCPIPE_ENVIRONMENT", "PPE")
	t.Setenv("DOCPIPE_XREF_TOKEN", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EnvironmentPPE, cfg.Environment)
	assert.Equal(t, "s3cret", cfg.XrefToken)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("DOCPIPE_ENVIRONMENT", "STAGING")
	_, err := Load("")
	require.Error(t, err)
}

func TestHostsPerEnvironment(t *testing.T) {
	ppe := &Config{Environment: EnvironmentPPE}
	prod := &Config{Environment: EnvironmentProd}

	assert.NotEqual(t, ppe.BuildAPIHost(), prod.BuildAPIHost())
	assert.NotEqual(t, ppe.InstrumentationKey(), prod.InstrumentationKey())
	assert.Equal(t, ppe.XrefHost(), prod.XrefHost())
}
