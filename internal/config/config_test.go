package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	require.Equal(t, "kzdb", cfg.AppName)
	require.Equal(t, 4096, cfg.Storage.PageSize)
	require.Equal(t, 128, cfg.BufferPool.Capacity)
}

func TestLoadOverlaysDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kzdb.yaml")
	yaml := []byte("storage:\n  data_dir: /var/lib/kzdb\nbuffer_pool:\n  capacity: 64\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/kzdb", cfg.Storage.DataDir)
	require.Equal(t, 64, cfg.BufferPool.Capacity)
	// fields absent from the file keep Default()'s values
	require.Equal(t, "kzdb.db", cfg.Storage.FileName)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
