package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/bandmask/internal/attention"
)

func TestParseYAML(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
attention:
  sequence_capacity: 512
  window: 64
  num_heads: 8
  head_dim: 32
  workers: 4
log_level: debug
log_format: json
server_address: 0.0.0.0:9000
mask_cache_dir: /tmp/masks
`), false)
	require.NoError(t, err)

	assert.Equal(t, attention.Config{
		SequenceCapacity: 512,
		Window:           64,
		NumHeads:         8,
		HeadDim:          32,
		Workers:          4,
	}, cfg.AttentionConfig())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.Equal(t, "/tmp/masks", cfg.MaskCacheDir)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`{"attention":{"sequence_capacity":16,"window":4},"log_format":"text"}`), true)
	require.NoError(t, err)
	got := cfg.AttentionConfig()
	assert.Equal(t, 16, got.SequenceCapacity)
	assert.Equal(t, 4, got.Window)
	assert.Zero(t, got.NumHeads)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	var cfg File
	got := cfg.AttentionConfig()
	assert.Equal(t, DefaultSequenceCapacity, got.SequenceCapacity)
	assert.Equal(t, DefaultWindow, got.Window)
	assert.Equal(t, DefaultServerAddress, cfg.Address())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"capacity":   "attention:\n  sequence_capacity: 0\n",
		"heads":      "attention:\n  num_heads: -1\n",
		"head_dim":   "attention:\n  head_dim: -4\n",
		"log_format": "log_format: xml\n",
		"syntax":     "attention: [\n",
	}
	for name, doc := range cases {
		_, err := Parse([]byte(doc), false)
		assert.Error(t, err, name)
	}

	// Window rules belong to the mask builder, so a zero window parses.
	cfg, err := Parse([]byte("attention:\n  window: 0\n"), false)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.AttentionConfig().Window)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.yaml")

	cfg, err := Load(missing, true)
	require.NoError(t, err)
	assert.Equal(t, File{}, cfg)

	_, err = Load(missing, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")

	jsonPath := filepath.Join(dir, "config.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"attention":{"window":3}}`), 0o644))
	cfg, err = Load(jsonPath, false)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.AttentionConfig().Window)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log_format: xml\n"), 0o644))
	_, err = Load(bad, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
