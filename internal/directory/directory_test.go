package directory

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) (*Client, *Registry) {
	t.Helper()
	registry := NewRegistry()
	srv := httptest.NewServer(NewServer(registry).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), registry
}

func TestRegisterAndResolveGroup(t *testing.T) {
	client, _ := newTestDirectory(t)
	ctx := context.Background()

	require.NoError(t, client.Register(ctx, "Renderer.node-b", "http://b:8080/rpc"))
	require.NoError(t, client.Register(ctx, "Renderer.node-a", "http://a:8080/rpc"))
	require.NoError(t, client.Register(ctx, "Dispatcher.main", "http://d:8080/rpc"))

	names, err := client.ResolveGroup(ctx, "Renderer")
	require.NoError(t, err)
	assert.Equal(t, []string{"Renderer.node-a", "Renderer.node-b"}, names)

	endpoint, err := client.Lookup(ctx, "Renderer.node-a")
	require.NoError(t, err)
	assert.Equal(t, "http://a:8080/rpc", endpoint)
}

func TestEmptyGroupIsNotAnError(t *testing.T) {
	client, _ := newTestDirectory(t)

	names, err := client.ResolveGroup(context.Background(), "Renderer")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestUnreachableDirectoryIsErrUnavailable(t *testing.T) {
	// Port 0 is never listening.
	client := NewClient("http://127.0.0.1:0/rpc")

	_, err := client.ResolveGroup(context.Background(), "Renderer")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestReRegisterOverwritesStaleEntry(t *testing.T) {
	client, registry := newTestDirectory(t)
	ctx := context.Background()

	require.NoError(t, client.Register(ctx, "Renderer.node-a", "http://old:1/rpc"))
	require.NoError(t, client.Register(ctx, "Renderer.node-a", "http://new:2/rpc"))

	endpoint, ok := registry.Lookup("Renderer.node-a")
	require.True(t, ok)
	assert.Equal(t, "http://new:2/rpc", endpoint)
	assert.Len(t, registry.ResolveGroup("Renderer"), 1)
}

func TestLookupUnknownNameFails(t *testing.T) {
	client, _ := newTestDirectory(t)

	_, err := client.Lookup(context.Background(), "Renderer.ghost")
	assert.Error(t, err)
}

func TestDeregister(t *testing.T) {
	client, _ := newTestDirectory(t)
	ctx := context.Background()

	require.NoError(t, client.Register(ctx, "Renderer.node-a", "http://a:8080/rpc"))
	require.NoError(t, client.Deregister(ctx, "Renderer.node-a"))

	names, err := client.ResolveGroup(ctx, "Renderer")
	require.NoError(t, err)
	assert.Empty(t, names)
}
