package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, []string{"localhost:2379"}, cfg.EtcdEndpoints)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:8484", cfg.AdminAddr)
	assert.NotEmpty(t, cfg.NodeID)
	assert.Contains(t, cfg.NodeID, "node-")
}

func TestFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roost.yaml")
	data := []byte("node_id: node-file\nresolver: ip\nport_min: \"1024\"\naddresses:\n  manual: 203.0.113.7\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node-file", cfg.NodeID)
	assert.Equal(t, "ip", cfg.Resolver)
	assert.Equal(t, "1024", cfg.PortMin)
	assert.Equal(t, "203.0.113.7", cfg.Addresses["manual"])
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node_id: node-file\n"), 0644))

	t.Setenv(EnvNodeID, "node-env")
	t.Setenv(EnvResolver, "local-ip")
	t.Setenv(EnvEtcdEndpoints, "etcd-1:2379,etcd-2:2379")
	t.Setenv(EnvLogJSON, "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node-env", cfg.NodeID)
	assert.Equal(t, "local-ip", cfg.Resolver)
	assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.EtcdEndpoints)
	assert.True(t, cfg.LogJSON)
}

func TestAddressEnvMapping(t *testing.T) {
	t.Setenv("ROOST_ADDR_LOCAL_HOSTNAME", "internal.example.com")
	t.Setenv("ROOST_ADDR_IP", "198.51.100.4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "internal.example.com", cfg.Addresses["local-hostname"])
	assert.Equal(t, "198.51.100.4", cfg.Addresses["ip"])
}

func TestGenerateNodeID(t *testing.T) {
	a := GenerateNodeID()
	b := GenerateNodeID()

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("node-")+8)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
