package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:7946", cfg.APIAddr)
	assert.Equal(t, "/var/lib/ecomesh", cfg.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 60*time.Second, cfg.Discovery.Interval.Duration)
	assert.Equal(t, 5*time.Minute, cfg.Topology.StaleThreshold.Duration)
	assert.Equal(t, 15*time.Minute, cfg.Session.Retention.Duration)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecomesh.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
node_id = "edge-7"
api_addr = "0.0.0.0:9000"

[log]
level = "debug"
json = true

[discovery]
interval = "30s"
registry_url = "http://registry.local/v1/nodes"

[topology]
stale_threshold = "10m"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "edge-7", cfg.NodeID)
	assert.Equal(t, "0.0.0.0:9000", cfg.APIAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, 30*time.Second, cfg.Discovery.Interval.Duration)
	assert.Equal(t, "http://registry.local/v1/nodes", cfg.Discovery.RegistryURL)
	assert.Equal(t, 10*time.Minute, cfg.Topology.StaleThreshold.Duration)

	// Untouched sections keep their defaults
	assert.Equal(t, "/var/lib/ecomesh", cfg.DataDir)
	assert.Equal(t, 15*time.Minute, cfg.Session.Retention.Duration)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ecomesh.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[discovery]
interval = "soon"
`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "missing api addr", mutate: func(c *Config) { c.APIAddr = "" }, wantErr: true},
		{name: "missing data dir", mutate: func(c *Config) { c.DataDir = "" }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.Log.Level = "verbose" }, wantErr: true},
		{name: "empty log level allowed", mutate: func(c *Config) { c.Log.Level = "" }},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Discovery.Interval = duration{-time.Second} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
