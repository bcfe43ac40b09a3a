package planner

import (
	"fmt"
	"math"
	"sort"

	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// DefaultMinAvailability is the capability threshold used when an operation
// does not specify one
const DefaultMinAvailability = 0.5

// Planner decides which nodes participate in an operation and how much
// compute, memory, storage, and network each receives. Planning is pure:
// identical inputs always produce an identical plan.
type Planner struct{}

// NewPlanner creates a resource allocation planner
func NewPlanner() *Planner {
	return &Planner{}
}

// Plan validates the operation's capability requirements against the
// topology snapshot and produces an allocation. A node missing the required
// capability makes the plan infeasible with the node and capability named;
// the planner never silently substitutes a node. Malformed input is the only
// error case.
func (p *Planner) Plan(op types.OperationSpec, topo types.EcosystemTopology) (types.AllocationPlan, error) {
	if op.ID == "" {
		return types.AllocationPlan{}, fmt.Errorf("%w: operation ID is required", types.ErrValidation)
	}
	if len(op.TargetNodes) == 0 {
		return types.AllocationPlan{}, fmt.Errorf("%w: operation has no target nodes", types.ErrValidation)
	}
	if op.RequiredCapability == "" {
		return types.AllocationPlan{}, fmt.Errorf("%w: operation names no required capability", types.ErrValidation)
	}

	threshold := op.MinAvailability
	if threshold <= 0 {
		threshold = DefaultMinAvailability
	}

	// Sorted targets make validation order and the resulting plan
	// deterministic for identical inputs.
	targets := append([]string(nil), op.TargetNodes...)
	sort.Strings(targets)

	plan := types.AllocationPlan{OperationID: op.ID}

	availability := make(map[string]float64, len(targets))
	for _, nodeID := range targets {
		avail, ok := capabilityAvailability(topo, nodeID, op.RequiredCapability)
		if !ok || avail < threshold {
			plan.Feasible = false
			plan.Reason = &types.InfeasibilityReason{
				NodeID:     nodeID,
				Capability: op.RequiredCapability,
				Reported:   avail,
				Required:   threshold,
			}
			log.WithComponent("planner").Warn().
				Str("operation_id", op.ID).
				Str("node_id", nodeID).
				Str("capability", op.RequiredCapability).
				Float64("reported", avail).
				Float64("required", threshold).
				Msg("plan infeasible")
			return plan, nil
		}
		availability[nodeID] = avail
	}

	plan.Feasible = true
	plan.Allocations = allocate(targets, availability, op.Requirements)
	return plan, nil
}

// capabilityAvailability looks the capability up on the instance or device
// with the given ID
func capabilityAvailability(topo types.EcosystemTopology, nodeID, capability string) (float64, bool) {
	if in, ok := topo.Instances[nodeID]; ok {
		if cs, ok := in.Capabilities[capability]; ok {
			return cs.Available, true
		}
		return 0, false
	}
	if dev, ok := topo.Devices[nodeID]; ok {
		if cs, ok := dev.Capabilities[capability]; ok {
			return cs.Available, true
		}
	}
	return 0, false
}

// allocate assigns each node a share proportional to its reported available
// fraction, capped at the operation's total requirement. Integer remainders
// go to the highest-availability node, ties broken by node ID.
func allocate(targets []string, availability map[string]float64, req types.ResourceRequirement) []types.ResourceAllocation {
	totalWeight := 0.0
	for _, nodeID := range targets {
		totalWeight += availability[nodeID]
	}

	// All weights passed the threshold so totalWeight > 0, but guard the
	// degenerate single-node split anyway.
	if totalWeight == 0 {
		totalWeight = float64(len(targets))
		for _, nodeID := range targets {
			availability[nodeID] = 1
		}
	}

	// Remainder recipient: highest availability, then lowest node ID
	favored := targets[0]
	for _, nodeID := range targets[1:] {
		if availability[nodeID] > availability[favored] {
			favored = nodeID
		}
	}

	allocations := make([]types.ResourceAllocation, 0, len(targets))
	var memAssigned, storageAssigned int64
	for _, nodeID := range targets {
		weight := availability[nodeID] / totalWeight
		alloc := types.ResourceAllocation{
			NodeID:       nodeID,
			CPUCores:     req.CPUCores * weight,
			MemoryBytes:  int64(math.Floor(float64(req.MemoryBytes) * weight)),
			StorageBytes: int64(math.Floor(float64(req.StorageBytes) * weight)),
			NetworkMbps:  req.NetworkMbps * weight,
		}
		memAssigned += alloc.MemoryBytes
		storageAssigned += alloc.StorageBytes
		allocations = append(allocations, alloc)
	}

	for i := range allocations {
		if allocations[i].NodeID == favored {
			allocations[i].MemoryBytes += req.MemoryBytes - memAssigned
			allocations[i].StorageBytes += req.StorageBytes - storageAssigned
			break
		}
	}

	return allocations
}
