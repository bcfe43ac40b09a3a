package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecomesh/ecomesh/pkg/log"
	"github.com/ecomesh/ecomesh/pkg/topology"
	"github.com/ecomesh/ecomesh/pkg/types"
)

// Finding is one mechanism's partial view of the ecosystem
type Finding struct {
	Instances map[string]*types.Instance
	Devices   map[string]*types.Device
}

// MechanismFunc is a pluggable discovery backend. Implementations must honor
// the context deadline; the engine runs each one under its own timeout.
type MechanismFunc func(ctx context.Context) (Finding, error)

// DefaultMechanismTimeout bounds a single mechanism's probe
const DefaultMechanismTimeout = 10 * time.Second

// Engine runs all registered discovery mechanisms concurrently and merges
// their findings into the topology store. A mechanism's failure is recorded
// in the result but never fails the overall pass.
type Engine struct {
	store      *topology.Store
	mechanisms map[types.DiscoveryMechanism]MechanismFunc
	timeout    time.Duration
}

// NewEngine creates a discovery engine over the given store. A zero timeout
// falls back to DefaultMechanismTimeout.
func NewEngine(store *topology.Store, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultMechanismTimeout
	}
	return &Engine{
		store:      store,
		mechanisms: make(map[types.DiscoveryMechanism]MechanismFunc),
		timeout:    timeout,
	}
}

// Register adds a discovery mechanism. Registering the same name again
// replaces the previous backend.
func (e *Engine) Register(name types.DiscoveryMechanism, fn MechanismFunc) {
	e.mechanisms[name] = fn
}

type mechanismOutcome struct {
	name    types.DiscoveryMechanism
	finding Finding
	err     error
	took    time.Duration
}

// Discover runs one discovery pass. Mechanisms run in parallel, each under
// its own timeout; findings are merged into the store in completion order.
// Last-observed-wins merging in the store makes the final topology
// independent of that order. Cancelling the context keeps whatever partial
// merges already happened.
func (e *Engine) Discover(ctx context.Context) types.DiscoveryResult {
	logger := log.WithComponent("discovery")
	started := time.Now()

	result := types.DiscoveryResult{
		Mechanisms: make(map[types.DiscoveryMechanism]types.MechanismReport, len(e.mechanisms)),
	}

	outcomes := make(chan mechanismOutcome, len(e.mechanisms))
	for name, fn := range e.mechanisms {
		go func(name types.DiscoveryMechanism, fn MechanismFunc) {
			mechStart := time.Now()
			mechCtx, cancel := context.WithTimeout(ctx, e.timeout)
			defer cancel()

			// A panicking mechanism is that mechanism's failure, not the
			// daemon's.
			defer func() {
				if r := recover(); r != nil {
					outcomes <- mechanismOutcome{
						name: name,
						err:  fmt.Errorf("mechanism panicked: %v", r),
						took: time.Since(mechStart),
					}
				}
			}()

			finding, err := fn(mechCtx)
			outcomes <- mechanismOutcome{
				name:    name,
				finding: finding,
				err:     err,
				took:    time.Since(mechStart),
			}
		}(name, fn)
	}

	// Distinct IDs seen across all mechanisms this pass
	seenInstances := make(map[string]bool)
	seenDevices := make(map[string]bool)

	for range e.mechanisms {
		var out mechanismOutcome
		select {
		case out = <-outcomes:
		case <-ctx.Done():
			// Partial pass: report mechanisms that never finished as
			// cancelled and keep what was already merged.
			for name := range e.mechanisms {
				if _, done := result.Mechanisms[name]; !done {
					result.Mechanisms[name] = types.MechanismReport{Error: ctx.Err().Error()}
				}
			}
			result.Duration = time.Since(started)
			return result
		}

		report := types.MechanismReport{Duration: out.took}
		if out.err != nil {
			report.Error = out.err.Error()
			logger.Warn().
				Str("mechanism", string(out.name)).
				Err(out.err).
				Msg("discovery mechanism failed")
			result.Mechanisms[out.name] = report
			continue
		}

		if err := e.store.MergeDiscovery(out.finding.Instances, out.finding.Devices); err != nil {
			// A malformed finding is this mechanism's failure, not the pass's
			report.Error = err.Error()
			if !errors.Is(err, types.ErrValidation) {
				logger.Error().Err(err).Str("mechanism", string(out.name)).Msg("discovery merge failed")
			}
			result.Mechanisms[out.name] = report
			continue
		}

		report.InstanceCount = len(out.finding.Instances)
		report.DeviceCount = len(out.finding.Devices)
		report.Contributed = report.InstanceCount > 0 || report.DeviceCount > 0
		result.Mechanisms[out.name] = report

		for id := range out.finding.Instances {
			seenInstances[id] = true
		}
		for id := range out.finding.Devices {
			seenDevices[id] = true
		}
	}

	result.InstanceCount = len(seenInstances)
	result.DeviceCount = len(seenDevices)
	result.Duration = time.Since(started)

	logger.Info().
		Int("instances", result.InstanceCount).
		Int("devices", result.DeviceCount).
		Dur("duration", result.Duration).
		Msg("discovery pass complete")

	return result
}
