package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
	}{
		{
			name:     "json",
			filename: "config.json",
			content:  `{"storage_dir": "/tmp/qs", "listen_addr": "/ip4/0.0.0.0/tcp/4001"}`,
		},
		{
			name:     "yaml",
			filename: "config.yaml",
			content:  "storage_dir: /tmp/qs\nlisten_addr: /ip4/0.0.0.0/tcp/4001\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			p := filepath.Join(dir, tt.filename)
			require.NoError(t, os.WriteFile(p, []byte(tt.content), 0o644))

			cfg, err := LoadConfig(p)
			require.NoError(t, err)
			require.Equal(t, "/tmp/qs", cfg.StorageDir)
			require.Equal(t, "/ip4/0.0.0.0/tcp/4001", cfg.ListenAddr)
		})
	}
}

func TestLoadConfigUnrecognizedExtension(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(p, []byte("storage_dir = \"x\""), 0o644))

	_, err := LoadConfig(p)
	require.Error(t, err)
}

func TestValidateRequiresStorageDir(t *testing.T) {
	cfg := Default()
	cfg.StorageDir = ""
	require.Error(t, cfg.Validate())
}
