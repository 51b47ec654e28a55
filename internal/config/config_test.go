package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_WritesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, DefaultConfigFileName)

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultDBName), cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, DefaultLogName), cfg.LogFile)
	assert.Equal(t, "project", cfg.Schema)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, toml.Unmarshal(data, &onDisk))
	assert.Equal(t, Default(), onDisk, "defaults are written unresolved")
}

func TestLoadOrCreate_FillsMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.toml")
	body := "schema = \"qa\"\ndb_path = \"/var/tmp/x.db\"\n[keys]\nquit = \"Q\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.Equal(t, "qa", cfg.Schema)
	assert.Equal(t, "/var/tmp/x.db", cfg.DBPath)
	assert.Equal(t, filepath.Join(dir, DefaultExportDir), cfg.ExportDir)
	assert.Equal(t, "Q", cfg.Keys.Quit)
	assert.Equal(t, "a", cfg.Keys.Add)

	d, err := cfg.Debounce()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestLoadOrCreate_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":    "schema = ",
		"schema":    "schema = \"kanban\"\n",
		"page size": "page_size = -2\n",
		"debounce":  "save_debounce = \"soon\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadOrCreate(path)
			assert.Error(t, err)
		})
	}
}

func TestResolveConfigPath_Env(t *testing.T) {
	t.Setenv("TASKDESK_CONFIG", "/tmp/elsewhere.toml")
	assert.Equal(t, "/tmp/elsewhere.toml", ResolveConfigPath())

	t.Setenv("TASKDESK_CONFIG", "")
	assert.Equal(t, DefaultConfigFileName, filepath.Base(ResolveConfigPath()))
}
