package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Webhooks)
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
server:
  addr: :9000
log:
  level: debug
webhooks:
  - url: https://hooks.example.com/pw
    events: [version.approved]
    enabled: false
`))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/v1", cfg.Server.BasePath, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	require.Len(t, cfg.Webhooks, 1)
	assert.False(t, cfg.Webhooks[0].Active())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"bad level":     "log:\n  level: loud\n",
		"relative base": "server:\n  base_path: v1\n",
		"webhook url":   "webhooks:\n  - url: ftp://x\n",
		"empty event":   "webhooks:\n  - url: http://x.test\n    events: [\"\"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("definitions:\n  file: defs.yml\n"), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "defs.yml"), cfg.DefinitionsPath(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("log: [\n"), 0o644))
	_, err = LoadOptional(dir)
	assert.Error(t, err)
}
