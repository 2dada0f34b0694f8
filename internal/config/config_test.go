package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "boa.cs.iastate.edu", cfg.Domain)
	assert.Equal(t, "/boa/?q=boa/api", cfg.Path)
	assert.Equal(t, 24*time.Hour, cfg.DatasetTTL)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(512*1024*1024), cfg.CacheMaxSize)
	assert.Empty(t, cfg.Username)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boa.yaml")
	content := "domain: boa.example.org\n" +
		"username: alice\n" +
		"timeout: 30s\n" +
		"dataset-ttl: 1h\n" +
		"cache-dir: /tmp/boa\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("BOA_USERNAME", "bob")
	t.Setenv("BOA_DATABASE_URL", "postgres://boa@localhost/boa?sslmode=disable")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "boa.example.org", cfg.Domain)
	assert.Equal(t, "bob", cfg.Username, "environment should override the file")
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, time.Hour, cfg.DatasetTTL)
	assert.Equal(t, "/tmp/boa", cfg.CacheDir)
	assert.Equal(t, "postgres://boa@localhost/boa?sslmode=disable", cfg.DatabaseURL)
	assert.NoError(t, cfg.RequireHistory())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("BOA_CACHE_MAX_SIZE", "-1")
	_, err := Load("")
	assert.Error(t, err)
}

func TestRequire(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireHistory())
	assert.Error(t, cfg.RequireArchive())

	cfg.S3Bucket = "outputs"
	assert.NoError(t, cfg.RequireArchive())
}
