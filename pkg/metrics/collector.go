package metrics

import (
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
)

// StatusProvider is the read-only surface the collector polls
type StatusProvider interface {
	GetEcosystemStatus() types.EcosystemStatus
}

// Collector periodically copies ecosystem status into the Prometheus gauges
type Collector struct {
	provider StatusProvider
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a metrics collector polling the given provider
func NewCollector(provider StatusProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		provider: provider,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	status := c.provider.GetEcosystemStatus()

	InstancesKnown.Set(float64(status.InstanceCount))
	DevicesKnown.Set(float64(status.DeviceCount))
	ActiveSessions.Set(float64(status.ActiveSessions))
	EcosystemHealthScore.Set(status.HealthScore)
	NetworkPerformanceScore.Set(status.NetworkPerformance)
}
