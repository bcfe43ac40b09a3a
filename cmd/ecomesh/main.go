package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecomesh/ecomesh/pkg/api"
	"github.com/ecomesh/ecomesh/pkg/config"
	"github.com/ecomesh/ecomesh/pkg/coordinator"
	"github.com/ecomesh/ecomesh/pkg/discovery"
	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/metrics"
	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ecomesh",
	Short: "Ecomesh - distributed ecosystem coordination daemon",
	Long: `Ecomesh coordinates a mesh of instances and devices: it discovers
nodes through pluggable mechanisms, tracks their capabilities and network
quality, plans resource allocations for multi-node operations, and keeps
replicated state domains coherent across the mesh.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Ecomesh version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(upCmd)
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the coordination daemon",
	Long: `Start the ecomesh daemon: restore the last topology snapshot, begin
periodic discovery and stale-node eviction, and serve the HTTP API.`,
	RunE: runUp,
}

func init() {
	upCmd.Flags().String("config", "", "Path to TOML configuration file")
	upCmd.Flags().String("node-id", "", "Node ID (overrides config)")
	upCmd.Flags().String("api-addr", "", "API listen address (overrides config)")
	upCmd.Flags().String("data-dir", "", "Data directory (overrides config)")
}

func runUp(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("node-id"); v != "" {
		cfg.NodeID = v
	}
	if v, _ := cmd.Flags().GetString("api-addr"); v != "" {
		cfg.APIAddr = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if cfg.NodeID == "" {
		hostname, _ := os.Hostname()
		cfg.NodeID = hostname
	}

	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})

	peers := newPeerClient()
	mechanisms := map[types.DiscoveryMechanism]discovery.MechanismFunc{
		types.MechanismLocalNetwork: selfAnnouncement(cfg.NodeID, cfg.APIAddr),
	}
	if cfg.Discovery.RegistryURL != "" {
		mechanisms[types.MechanismRegistry] = discovery.Registry(cfg.Discovery.RegistryURL, nil)
	}

	coord, err := coordinator.NewCoordinator(coordinator.Config{
		NodeID:              cfg.NodeID,
		DataDir:             cfg.DataDir,
		DiscoveryInterval:   cfg.Discovery.Interval.Duration,
		MechanismTimeout:    cfg.Discovery.MechanismTimeout.Duration,
		StaleThreshold:      cfg.Topology.StaleThreshold.Duration,
		SnapshotInterval:    cfg.Topology.SnapshotInterval.Duration,
		SessionRetention:    cfg.Session.Retention.Duration,
		ProbeTimeout:        cfg.Network.ProbeTimeout.Duration,
		NetworkMaxStaleness: cfg.Network.MaxStaleness.Duration,
	}, coordinator.Options{
		Security:   &loopbackSecurity{},
		Probe:      peers.Probe,
		Dispatch:   peers.Dispatch,
		Replicate:  peers.Replicate,
		Mechanisms: mechanisms,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %v", err)
	}
	peers.bind(coord)

	coord.Start()
	log.WithNodeID(cfg.NodeID).Info().Str("version", Version).Msg("coordinator started")

	collector := metrics.NewCollector(coord, 0)
	collector.Start()

	apiServer := api.NewServer(coord)
	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(cfg.APIAddr); err != nil {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-errCh:
		log.Errorf("API server failed", err)
	}

	apiServer.Stop()
	collector.Stop()
	coord.Stop()
	return nil
}
