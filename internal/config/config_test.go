package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default, *c)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leechd.yaml")
	err := os.WriteFile(path, []byte("port: 7000\ndownload_dir: /tmp/downloads\n"), 0o600)
	require.NoError(t, err)

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7000, c.Port)
	require.Equal(t, "/tmp/downloads", c.DownloadDir)
	require.Equal(t, Default.UploadBPS, c.UploadBPS)
}
