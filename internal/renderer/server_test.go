package renderer

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuxRender/LuxFire/internal/render"
)

// fakeEngine is a scriptable render.Context.
type fakeEngine struct {
	mu       sync.Mutex
	stats    map[render.Statistic]float64
	parseErr error
	exited   bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{stats: make(map[render.Statistic]float64)}
}

func (f *fakeEngine) Parse(context.Context, string, int, render.HaltConditions) error {
	return f.parseErr
}

func (f *fakeEngine) Stat(name render.Statistic) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[name]
}

func (f *fakeEngine) Exit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exited = true
}

func (f *fakeEngine) Wait() {}

func (f *fakeEngine) set(name render.Statistic, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[name] = v
}

func newTestNode(t *testing.T, engine *fakeEngine) (*Handle, *Server) {
	t.Helper()
	srv := NewServer("node-a", "/tmp/network", 4, func() render.Context { return engine })
	srv.poll = 10 * time.Millisecond
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewHandle("node-a", ts.URL), srv
}

func TestAssignAcceptsWhenIdle(t *testing.T) {
	engine := newFakeEngine()
	handle, _ := newTestNode(t, engine)
	ctx := context.Background()

	idle, err := handle.IsIdle(ctx)
	require.NoError(t, err)
	assert.True(t, idle)

	accepted, err := handle.Assign(ctx, "alice-scene", "users/1/alice-scene", "scene.lxs", 100, 0)
	require.NoError(t, err)
	assert.True(t, accepted)

	idle, err = handle.IsIdle(ctx)
	require.NoError(t, err)
	assert.False(t, idle)
}

func TestAssignRefusedWhenBusy(t *testing.T) {
	engine := newFakeEngine()
	handle, _ := newTestNode(t, engine)
	ctx := context.Background()

	accepted, err := handle.Assign(ctx, "first", "users/1/first", "scene.lxs", 100, 0)
	require.NoError(t, err)
	require.True(t, accepted)

	accepted, err = handle.Assign(ctx, "second", "users/1/second", "scene.lxs", 100, 0)
	require.NoError(t, err)
	assert.False(t, accepted, "busy node must refuse, not queue")
}

func TestAssignRefusedWhenParseFails(t *testing.T) {
	engine := newFakeEngine()
	engine.parseErr = assert.AnError
	handle, _ := newTestNode(t, engine)

	accepted, err := handle.Assign(context.Background(), "broken", "users/1/broken", "scene.lxs", 100, 0)
	require.NoError(t, err)
	assert.False(t, accepted)

	idle, err := handle.IsIdle(context.Background())
	require.NoError(t, err)
	assert.True(t, idle, "failed start must leave the node idle")
}

func TestStatsReportProgress(t *testing.T) {
	engine := newFakeEngine()
	engine.set(render.StatSamplesPx, 42.5)
	engine.set(render.StatSamplesSec, 1200)
	handle, _ := newTestNode(t, engine)
	ctx := context.Background()

	_, err := handle.Assign(ctx, "alice-scene", "users/1/alice-scene", "scene.lxs", 100, 0)
	require.NoError(t, err)

	st, err := handle.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "node-a", st.Name)
	assert.False(t, st.Idle)
	assert.Equal(t, "alice-scene", st.JobName)
	assert.Equal(t, 42.5, st.Stats.SamplesPx)
	assert.Equal(t, 4, st.Stats.ThreadCount)
	assert.False(t, st.FilmIsReady)
}

func TestMonitorReturnsNodeToIdleWhenFilmReady(t *testing.T) {
	engine := newFakeEngine()
	handle, _ := newTestNode(t, engine)
	ctx := context.Background()

	_, err := handle.Assign(ctx, "alice-scene", "users/1/alice-scene", "scene.lxs", 100, 0)
	require.NoError(t, err)

	engine.set(render.StatFilmIsReady, 1)

	assert.Eventually(t, func() bool {
		idle, err := handle.IsIdle(ctx)
		return err == nil && idle
	}, 2*time.Second, 10*time.Millisecond)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.True(t, engine.exited)
}

func TestThreadAdjustmentClampsAtOne(t *testing.T) {
	engine := newFakeEngine()
	srv := NewServer("node-a", "/tmp/network", 2, func() render.Context { return engine })
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	rpc := NewHandle("node-a", ts.URL)

	var n int
	require.NoError(t, rpc.rpc.Call(context.Background(), "renderer.removeThread", nil, &n))
	assert.Equal(t, 1, n)
	require.NoError(t, rpc.rpc.Call(context.Background(), "renderer.removeThread", nil, &n))
	assert.Equal(t, 1, n)
	require.NoError(t, rpc.rpc.Call(context.Background(), "renderer.addThread", nil, &n))
	assert.Equal(t, 2, n)
}
