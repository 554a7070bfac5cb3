package fluxmesh

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileOverridesNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := "num_hosts: 6\ntransport: tcp\ntcp_peers:\n  - host-a:9000\n  - host-b:9000\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	var cfg Config
	require.NoError(t, LoadConfigFile(path, &cfg))
	require.Equal(t, 6, cfg.NumHosts)
	require.Equal(t, "tcp", cfg.Transport)
	require.Equal(t, []string{"host-a:9000", "host-b:9000"}, cfg.TCPPeers)
	// workers_per_host wasn't in the file, so defaulting is still this
	// field's job, not LoadConfigFile's.
	require.Equal(t, 0, cfg.WorkersPerHost)
}

func TestLoadConfigFileRejectsMissingFile(t *testing.T) {
	var cfg Config
	require.Error(t, LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
}
