package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ecomesh/ecomesh/pkg/topology"
	"github.com/ecomesh/ecomesh/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryMechanism(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"instances": [{"ID": "inst-a", "Kind": "intelligence"}],
			"devices":   [{"ID": "dev-a", "Kind": "edge", "Available": true}]
		}`))
	}))
	defer srv.Close()

	mechanism := Registry(srv.URL, srv.Client())
	found, err := mechanism(context.Background())
	require.NoError(t, err)

	require.Contains(t, found.Instances, "inst-a")
	assert.Equal(t, types.InstanceKindIntelligence, found.Instances["inst-a"].Kind)
	assert.False(t, found.Instances["inst-a"].ObservedAt.IsZero(),
		"records without a timestamp are stamped at fetch time")
	require.Contains(t, found.Devices, "dev-a")
	assert.True(t, found.Devices["dev-a"].Available)
}

func TestRegistryMechanismServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	mechanism := Registry(srv.URL, srv.Client())
	_, err := mechanism(context.Background())
	assert.Error(t, err)
}

// A registry that serves null array elements is a malformed listing, not a
// crash: the mechanism rejects it with an error.
func TestRegistryMechanismNullRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instances": [null], "devices": []}`))
	}))
	defer srv.Close()

	mechanism := Registry(srv.URL, srv.Client())
	_, err := mechanism(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null instance record")
}

// A malformed registry response fails only that mechanism; the rest of the
// pass carries on
func TestRegistryMechanismNullRecordKeepsPassAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instances": [null], "devices": [null]}`))
	}))
	defer srv.Close()

	store := topology.NewStore(0)
	engine := NewEngine(store, time.Second)
	engine.Register(types.MechanismRegistry, Registry(srv.URL, srv.Client()))
	engine.Register(types.MechanismLocalNetwork, Static(finding("inst-a")))

	result := engine.Discover(context.Background())

	assert.NotEmpty(t, result.Mechanisms[types.MechanismRegistry].Error)
	assert.Equal(t, 1, result.InstanceCount)
	assert.True(t, store.HasNode("inst-a"))
}

func TestRegistryMechanismFeedsEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"instances": [{"ID": "inst-a"}], "devices": []}`))
	}))
	defer srv.Close()

	store := topology.NewStore(0)
	engine := NewEngine(store, time.Second)
	engine.Register(types.MechanismRegistry, Registry(srv.URL, srv.Client()))

	result := engine.Discover(context.Background())
	assert.Equal(t, 1, result.InstanceCount)
	assert.True(t, store.HasNode("inst-a"))
}
