package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ecomesh/ecomesh/pkg/types"
)

// Static returns a mechanism that always reports the given finding. Useful
// for seeding a known ecosystem and for tests.
func Static(finding Finding) MechanismFunc {
	return func(ctx context.Context) (Finding, error) {
		return finding, nil
	}
}

// registryResponse is the wire format of a service registry listing
type registryResponse struct {
	Instances []*types.Instance `json:"instances"`
	Devices   []*types.Device   `json:"devices"`
}

// Registry returns a mechanism that queries an HTTP service registry for
// registered instances and devices. Records without an observation timestamp
// are stamped at fetch time.
func Registry(registryURL string, client *http.Client) MechanismFunc {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return func(ctx context.Context) (Finding, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL, nil)
		if err != nil {
			return Finding{}, fmt.Errorf("failed to build registry request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return Finding{}, fmt.Errorf("registry query failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return Finding{}, fmt.Errorf("registry returned status %d", resp.StatusCode)
		}

		var listing registryResponse
		if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
			return Finding{}, fmt.Errorf("failed to decode registry response: %w", err)
		}

		now := time.Now()
		finding := Finding{
			Instances: make(map[string]*types.Instance, len(listing.Instances)),
			Devices:   make(map[string]*types.Device, len(listing.Devices)),
		}
		for _, in := range listing.Instances {
			if in == nil {
				return Finding{}, fmt.Errorf("registry returned a null instance record")
			}
			if in.ObservedAt.IsZero() {
				in.ObservedAt = now
			}
			finding.Instances[in.ID] = in
		}
		for _, dev := range listing.Devices {
			if dev == nil {
				return Finding{}, fmt.Errorf("registry returned a null device record")
			}
			if dev.ObservedAt.IsZero() {
				dev.ObservedAt = now
			}
			finding.Devices[dev.ID] = dev
		}
		return finding, nil
	}
}
