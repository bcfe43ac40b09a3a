package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds coordinator daemon configuration loaded from TOML
type Config struct {
	NodeID  string `toml:"node_id"`
	APIAddr string `toml:"api_addr"`
	DataDir string `toml:"data_dir"`

	Log       LogConfig       `toml:"log"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Topology  TopologyConfig  `toml:"topology"`
	Session   SessionConfig   `toml:"session"`
	Network   NetworkConfig   `toml:"network"`
}

// LogConfig controls structured logging output
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// DiscoveryConfig controls the discovery engine
type DiscoveryConfig struct {
	Interval         duration `toml:"interval"`
	MechanismTimeout duration `toml:"mechanism_timeout"`
	RegistryURL      string   `toml:"registry_url"`
}

// TopologyConfig controls topology staleness and persistence
type TopologyConfig struct {
	StaleThreshold   duration `toml:"stale_threshold"`
	SnapshotInterval duration `toml:"snapshot_interval"`
}

// SessionConfig controls session retention
type SessionConfig struct {
	Retention duration `toml:"retention"`
}

// NetworkConfig controls pairwise quality probing
type NetworkConfig struct {
	ProbeTimeout duration `toml:"probe_timeout"`
	MaxStaleness duration `toml:"max_staleness"`
}

// duration wraps time.Duration so TOML values can be written as "30s"
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		APIAddr: "127.0.0.1:7946",
		DataDir: "/var/lib/ecomesh",
		Log: LogConfig{
			Level: "info",
		},
		Discovery: DiscoveryConfig{
			Interval:         duration{60 * time.Second},
			MechanismTimeout: duration{10 * time.Second},
		},
		Topology: TopologyConfig{
			StaleThreshold:   duration{5 * time.Minute},
			SnapshotInterval: duration{2 * time.Minute},
		},
		Session: SessionConfig{
			Retention: duration{15 * time.Minute},
		},
		Network: NetworkConfig{
			ProbeTimeout: duration{5 * time.Second},
			MaxStaleness: duration{2 * time.Minute},
		},
	}
}

// Load reads a TOML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the coordinator cannot run with
func (c Config) Validate() error {
	if c.APIAddr == "" {
		return fmt.Errorf("load config: api_addr is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("load config: data_dir is required")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("load config: unknown log level %q", c.Log.Level)
	}
	if c.Discovery.Interval.Duration < 0 || c.Topology.StaleThreshold.Duration < 0 {
		return fmt.Errorf("load config: negative durations are not allowed")
	}
	return nil
}
