package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an operation or sync request from a YAML file",
	Long: `Submit work to a running ecomesh daemon from a YAML file.

Examples:
  # Run a cross-device operation
  ecomesh apply -f operation.yaml

  # Synchronize state domains
  ecomesh apply -f sync.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	applyCmd.Flags().String("addr", "127.0.0.1:7946", "Daemon API address")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// ecomeshResource is the generic YAML envelope for submitted work
type ecomeshResource struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Spec       yaml.Node `yaml:"spec"`
}

// operationDoc mirrors types.OperationSpec with YAML-friendly fields
type operationDoc struct {
	ID                 string          `yaml:"id"`
	Name               string          `yaml:"name"`
	Type               string          `yaml:"type"`
	TargetNodes        []string        `yaml:"targetNodes"`
	RequiredCapability string          `yaml:"requiredCapability"`
	MinAvailability    float64         `yaml:"minAvailability"`
	Requirements       requirementsDoc `yaml:"requirements"`
	Timeout            string          `yaml:"timeout"`
}

type requirementsDoc struct {
	CPUCores     float64 `yaml:"cpuCores"`
	MemoryBytes  int64   `yaml:"memoryBytes"`
	StorageBytes int64   `yaml:"storageBytes"`
	NetworkMbps  float64 `yaml:"networkMbps"`
}

// syncDoc mirrors types.SyncRequest with YAML-friendly fields
type syncDoc struct {
	ID              string      `yaml:"id"`
	TargetInstances []string    `yaml:"targetInstances"`
	Domains         []domainDoc `yaml:"domains"`
	Strategy        string      `yaml:"strategy"`
	Priority        string      `yaml:"priority"`
	Timeout         string      `yaml:"timeout"`
}

type domainDoc struct {
	Name string `yaml:"name"`
	Hash string `yaml:"hash"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	addr, _ := cmd.Flags().GetString("addr")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	var resource ecomeshResource
	if err := yaml.Unmarshal(data, &resource); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}

	switch resource.Kind {
	case "Operation":
		return applyOperation(addr, &resource)
	case "SyncRequest":
		return applySync(addr, &resource)
	default:
		return fmt.Errorf("unsupported resource kind: %s", resource.Kind)
	}
}

func applyOperation(addr string, resource *ecomeshResource) error {
	var doc operationDoc
	if err := resource.Spec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse operation spec: %v", err)
	}

	timeout, err := parseTimeout(doc.Timeout)
	if err != nil {
		return err
	}

	op := types.OperationSpec{
		ID:                 doc.ID,
		Name:               doc.Name,
		Type:               types.SessionType(doc.Type),
		TargetNodes:        doc.TargetNodes,
		RequiredCapability: doc.RequiredCapability,
		MinAvailability:    doc.MinAvailability,
		Requirements: types.ResourceRequirement{
			CPUCores:     doc.Requirements.CPUCores,
			MemoryBytes:  doc.Requirements.MemoryBytes,
			StorageBytes: doc.Requirements.StorageBytes,
			NetworkMbps:  doc.Requirements.NetworkMbps,
		},
		Timeout: timeout,
	}

	fmt.Printf("Submitting operation: %s\n", op.ID)
	var result types.ExecutionResult
	if err := postJSON(addr, "/v1/operations", op, &result); err != nil {
		return err
	}

	fmt.Printf("✓ Session %s finished: %s\n", result.SessionID, result.Status)
	for _, nr := range result.NodeResults {
		if nr.Error != "" {
			fmt.Printf("  %s: %s (%s)\n", nr.NodeID, nr.Outcome, nr.Error)
			continue
		}
		fmt.Printf("  %s: %s\n", nr.NodeID, nr.Outcome)
	}
	return nil
}

func applySync(addr string, resource *ecomeshResource) error {
	var doc syncDoc
	if err := resource.Spec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse sync spec: %v", err)
	}

	timeout, err := parseTimeout(doc.Timeout)
	if err != nil {
		return err
	}

	req := types.SyncRequest{
		ID:              doc.ID,
		TargetInstances: doc.TargetInstances,
		Strategy:        types.SyncStrategy(doc.Strategy),
		Priority:        types.SyncPriority(doc.Priority),
		Timeout:         timeout,
	}
	for _, d := range doc.Domains {
		req.Domains = append(req.Domains, types.StateDomain{Name: d.Name, Hash: d.Hash})
	}

	fmt.Printf("Submitting sync request: %s\n", req.ID)
	var result types.SyncResult
	if err := postJSON(addr, "/v1/sync", req, &result); err != nil {
		return err
	}

	fmt.Printf("✓ Session %s finished: %s (coherence %.2f)\n", result.SessionID, result.Status, result.CoherenceLevel)
	for _, f := range result.FailedDomains {
		fmt.Printf("  %s @ %s: %s\n", f.Domain, f.InstanceID, f.Reason)
	}
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %v", s, err)
	}
	return d, nil
}

func postJSON(addr, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Post("http://"+addr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to reach daemon at %s: %v", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var msg bytes.Buffer
		_, _ = msg.ReadFrom(resp.Body)
		return fmt.Errorf("daemon returned %s: %s", resp.Status, msg.String())
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
