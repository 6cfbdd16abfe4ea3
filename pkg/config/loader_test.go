package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	DB      DBConfig      `yaml:"db"`
	Model   ModelConfig   `yaml:"model"`
	Insight InsightConfig `yaml:"insight"`
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestDecode_LayersAndOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${DB_SECRET}
model:
  learning_rate: 0.01
  epochs: 100
insight:
  cache_ttl: 10m
`)
	writeFile(t, dir, "prod.yaml", `
db:
  host: db.internal
model:
  epochs: 250
`)
	writeFile(t, dir, "secrets.env", "# secrets\nDB_SECRET=\"s3cret\"\n")
	t.Setenv("DB_PORT", "6543")

	var cfg testConfig
	require.NoError(t, Decode("prod", dir, &cfg))

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Equal(t, 250, cfg.Model.Epochs)
	assert.Equal(t, 0.01, cfg.Model.LearningRate)
	assert.Equal(t, 10*time.Minute, cfg.Insight.CacheTTL)
}

func TestDecode_MissingBase(t *testing.T) {
	var cfg testConfig
	err := Decode("local", t.TempDir(), &cfg)
	assert.ErrorContains(t, err, "base.yaml")
}

func TestMergeMaps_Nested(t *testing.T) {
	got := mergeMaps(
		map[string]any{"a": map[string]any{"x": 1, "y": 2}, "b": 1},
		map[string]any{"a": map[string]any{"y": 3}},
	)
	assert.Equal(t, map[string]any{"a": map[string]any{"x": 1, "y": 3}, "b": 1}, got)
}
