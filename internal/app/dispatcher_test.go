package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuxRender/LuxFire/internal/directory"
	"github.com/LuxRender/LuxFire/internal/renderer"
)

func TestRegistryResolverLookup(t *testing.T) {
	registry := directory.NewRegistry()
	registry.Register("Renderer.w1", "http://10.0.0.1:18018/rpc")
	r := registryResolver{registry: registry}

	endpoint, err := r.Lookup(context.Background(), "Renderer.w1")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:18018/rpc", endpoint)

	_, err = r.Lookup(context.Background(), "Renderer.gone")
	assert.Error(t, err)
}

func TestPoolAdapterSnapshotsByShortName(t *testing.T) {
	registry := directory.NewRegistry()
	registry.Register("Renderer.w1", "http://10.0.0.1:18018/rpc")
	registry.Register("Renderer.w2", "http://10.0.0.2:18018/rpc")
	registry.Register("Session.s1", "http://10.0.0.3:18018/rpc")

	pool := renderer.NewPool(registryResolver{registry: registry}, "Renderer")
	handles, err := poolAdapter{pool: pool}.Discover(context.Background())
	require.NoError(t, err)

	assert.Len(t, handles, 2)
	assert.Contains(t, handles, "w1")
	assert.Contains(t, handles, "w2")
}
