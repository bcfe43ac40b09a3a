package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ecosystem status",
	Long:  `Query a running ecomesh daemon and print its ecosystem status.`,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("addr", "127.0.0.1:7946", "Daemon API address")
	statusCmd.Flags().Bool("json", false, "Print raw JSON")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	rawJSON, _ := cmd.Flags().GetBool("json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status")
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %v", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	var status types.EcosystemStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("failed to decode status: %v", err)
	}

	if rawJSON {
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("Ecosystem Status")
	fmt.Printf("  Instances:           %d\n", status.InstanceCount)
	fmt.Printf("  Devices:             %d\n", status.DeviceCount)
	fmt.Printf("  Active Sessions:     %d\n", status.ActiveSessions)
	fmt.Printf("  Event Subscribers:   %d\n", status.EventSubscribers)
	fmt.Printf("  Health Score:        %.2f\n", status.HealthScore)
	fmt.Printf("  Coherence Level:     %.2f\n", status.CoherenceLevel)
	fmt.Printf("  Resource Efficiency: %.2f\n", status.ResourceEfficiency)
	fmt.Printf("  Network Performance: %.2f\n", status.NetworkPerformance)
	fmt.Println()
	fmt.Println("Counters")
	fmt.Printf("  Discovery Runs:      %d\n", status.Metrics.DiscoveryRuns)
	fmt.Printf("  Sessions Finished:   %d\n", status.Metrics.SessionsFinished)
	fmt.Printf("  Sessions Completed:  %d\n", status.Metrics.SessionsCompleted)
	fmt.Printf("  Sessions Failed:     %d\n", status.Metrics.SessionsFailed)
	fmt.Printf("  Sync Requests:       %d\n", status.Metrics.SyncRequests)
	fmt.Printf("  Nodes Evicted:       %d\n", status.Metrics.NodesEvicted)
	return nil
}
