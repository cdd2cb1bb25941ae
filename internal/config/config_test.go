package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1536, cfg.Vector.Dimensions)
	assert.True(t, cfg.Vector.LocalFallback)
	assert.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
	assert.Equal(t, "text-embedding-ada-002", cfg.AI.EmbeddingModel)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, time.Minute, cfg.Reminder.PollInterval)
	assert.Equal(t, "127.0.0.1:8321", cfg.Server.Addr())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vector:
  dimensions: 768
ai:
  provider: ollama
  model: llama3
  timeout: 10s
`), 0o644))

	t.Setenv("IDEAX_AI_MODEL", "qwen2")
	t.Setenv("IDEAX_SERVER_PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.Vector.Dimensions)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "qwen2", cfg.AI.Model)
	assert.Equal(t, 10*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("vector:\n  dimensions: 0\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestInit_SetsGlobal(t *testing.T) {
	Init(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Equal(t, 1536, Conf.Vector.Dimensions)

	assert.Panics(t, func() {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("vector:\n  dimensions: -1\n"), 0o644))
		Init(path)
	})
}
