package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFiles_Defaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, "https://api.semanticscholar.org/graph/v1", config.Catalog.BaseURL)
	assert.Equal(t, 2, config.Crawler.MaxDepth)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "base.toml")
	require.NoError(t, os.WriteFile(base, []byte(`
[crawler]
max_depth = 4

[server]
port = 9000
`), 0o644))

	override := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(override, []byte(`
[crawler]
max_depth = 1
`), 0o644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 1, config.Crawler.MaxDepth, "later file overrides earlier")
	assert.Equal(t, 9000, config.Server.Port, "untouched keys survive the overlay")
}

func TestLoadFromFiles_EnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
[crawler]
max_depth = 4
`), 0o644))

	t.Setenv("MAX_CRAWL_DEPTH", "7")
	t.Setenv("CATALOG_API_KEY", "env-key")
	t.Setenv("VAULT_PATH", "/tmp/vault-env")

	config, err := LoadFromFiles(file)
	require.NoError(t, err)

	assert.Equal(t, 7, config.Crawler.MaxDepth)
	assert.Equal(t, "env-key", config.Catalog.APIKey)
	assert.Equal(t, "/tmp/vault-env", config.Vault.Path)
}

func TestLoadFromFiles_MissingFileFails(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_RejectsBadDurations(t *testing.T) {
	config := NewDefaultConfig()
	config.Catalog.Timeout = "soon"

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.timeout")
}

func TestValidate_RejectsBadBaseURL(t *testing.T) {
	config := NewDefaultConfig()
	config.Catalog.BaseURL = "not a url"

	err := config.Validate()
	require.Error(t, err)
}
