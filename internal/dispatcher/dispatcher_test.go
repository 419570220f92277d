package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuxRender/LuxFire/internal/directory"
	"github.com/LuxRender/LuxFire/internal/renderer"
	"github.com/LuxRender/LuxFire/internal/store"
)

// memStore is an in-memory Store with the same compare-and-swap semantics as
// the real one.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	jobs    map[int64]store.Job
	results []store.Result
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[int64]store.Job)}
}

func (m *memStore) InsertJob(_ context.Context, userID int64, jobname string, haltSPP, haltTime int) (store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.UserID == userID && j.JobName == jobname {
			return store.Job{}, store.ErrDuplicate
		}
	}
	m.nextID++
	j := store.Job{
		ID:        m.nextID,
		UserID:    userID,
		JobName:   jobname,
		Path:      store.JobPath(userID, jobname),
		HaltSPP:   haltSPP,
		HaltTime:  haltTime,
		Submitted: time.Now().Add(time.Duration(m.nextID) * time.Millisecond),
		Status:    store.StatusNew,
	}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *memStore) JobByName(_ context.Context, userID int64, jobname string) (store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.UserID == userID && j.JobName == jobname {
			return j, nil
		}
	}
	return store.Job{}, store.ErrNotFound
}

func (m *memStore) ClaimBatch(_ context.Context, limit int) ([]store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dispatchable := map[store.Status]bool{
		store.StatusPending:      true,
		store.StatusDistributing: true,
		store.StatusReady:        true,
		store.StatusRendering:    true,
	}
	var jobs []store.Job
	for _, j := range m.jobs {
		if dispatchable[j.Status] {
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Submitted.Before(jobs[k].Submitted) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (m *memStore) Transition(_ context.Context, id int64, from, to store.Status, statusData string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	j.StatusData = statusData
	m.jobs[id] = j
	return true, nil
}

func (m *memStore) CompleteJob(_ context.Context, job store.Job, status store.ResultStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[job.ID]
	if !ok || j.Status != store.StatusRendering {
		return false, nil
	}
	delete(m.jobs, job.ID)
	m.results = append(m.results, store.Result{
		UserID:    job.UserID,
		JobName:   job.JobName,
		Path:      job.Path,
		Completed: time.Now(),
		Status:    status,
	})
	return true, nil
}

func (m *memStore) ListQueue(_ context.Context) ([]store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]store.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID > jobs[k].ID })
	return jobs, nil
}

func (m *memStore) ListResults(_ context.Context) ([]store.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Result(nil), m.results...), nil
}

func (m *memStore) job(t *testing.T, userID int64, jobname string) store.Job {
	t.Helper()
	j, err := m.JobByName(context.Background(), userID, jobname)
	require.NoError(t, err)
	return j
}

func (m *memStore) setStatus(id int64, status store.Status, statusData string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Status = status
	j.StatusData = statusData
	m.jobs[id] = j
}

// oneTimeKeys hands out single-use keys like the session manager does.
type oneTimeKeys struct {
	mu   sync.Mutex
	next int
	live map[string]bool
}

func newOneTimeKeys() *oneTimeKeys {
	return &oneTimeKeys{live: make(map[string]bool)}
}

func (k *oneTimeKeys) Mint() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.next++
	key := fmt.Sprintf("key-%d", k.next)
	k.live[key] = true
	return key
}

func (k *oneTimeKeys) ConsumeKey(_ context.Context, _ int64, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.live[key] {
		return ErrUnauthorized
	}
	delete(k.live, key)
	return nil
}

// fakeNode is a scriptable render node.
type fakeNode struct {
	mu        sync.Mutex
	idle      bool
	accept    bool
	assigned  []string
	status    renderer.Status
	idleErr   error
	statsErr  error
	assignErr error
}

func (n *fakeNode) IsIdle(context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.idle, n.idleErr
}

func (n *fakeNode) Assign(_ context.Context, jobname, _, _ string, _, _ int) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.assignErr != nil {
		return false, n.assignErr
	}
	if !n.accept {
		return false, nil
	}
	n.assigned = append(n.assigned, jobname)
	n.idle = false
	return true, nil
}

func (n *fakeNode) Stats(context.Context) (renderer.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.statsErr != nil {
		return renderer.Status{}, n.statsErr
	}
	st := n.status
	st.Idle = n.idle
	return st, nil
}

func (n *fakeNode) setIdle(idle bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.idle = idle
}

type fakePool struct {
	nodes map[string]*fakeNode
	err   error
}

func (p *fakePool) Discover(context.Context) (map[string]WorkerHandle, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]WorkerHandle, len(p.nodes))
	for name, n := range p.nodes {
		out[name] = n
	}
	return out, nil
}

type fixture struct {
	store  *memStore
	keys   *oneTimeKeys
	facade *Facade
	pool   *fakePool
	worker *Worker
	local  string
	netdir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	keys := newOneTimeKeys()
	local := t.TempDir()
	netdir := t.TempDir()
	pool := &fakePool{nodes: map[string]*fakeNode{}}
	dist := NewDistributor(st, local, netdir)
	return &fixture{
		store:  st,
		keys:   keys,
		facade: NewFacade(st, keys, local),
		pool:   pool,
		worker: NewWorker(st, pool, dist, 20),
		local:  local,
		netdir: netdir,
	}
}

// addJob creates and uploads a one-scene job, ready to finalize.
func (f *fixture) addJob(t *testing.T, userID int64, jobname string, haltSPP int) store.Job {
	t.Helper()
	ctx := context.Background()
	job, err := f.facade.AddJob(ctx, userID, f.keys.Mint(), jobname, haltSPP, -1)
	require.NoError(t, err)
	require.NoError(t, f.facade.AddFile(ctx, userID, f.keys.Mint(), jobname, "scene.lxs", []byte("WorldBegin\nWorldEnd\n")))
	return job
}

func TestAddJobDuplicateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.facade.AddJob(ctx, 1, f.keys.Mint(), "A", 100, -1)
	require.NoError(t, err)

	_, err = f.facade.AddJob(ctx, 1, f.keys.Mint(), "A", 100, -1)
	assert.ErrorIs(t, err, ErrDuplicateJob)

	queue, err := f.store.ListQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 1)

	// Same name for a different user is fine.
	_, err = f.facade.AddJob(ctx, 2, f.keys.Mint(), "A", 100, -1)
	assert.NoError(t, err)
}

func TestOneTimeKeyReplayFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	key := f.keys.Mint()
	_, err := f.facade.AddJob(ctx, 1, key, "A", 100, -1)
	require.NoError(t, err)

	_, err = f.facade.AddJob(ctx, 1, key, "B", 100, -1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.store.JobByName(ctx, 1, "B")
	assert.ErrorIs(t, err, store.ErrNotFound, "replayed key must not mutate the store")
}

func TestFinalizeRequiresHaltCondition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.facade.AddJob(ctx, 1, f.keys.Mint(), "A", -1, -1)
	require.NoError(t, err)

	err = f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A")
	assert.ErrorIs(t, err, ErrMissingHalt)
	assert.Equal(t, store.StatusNew, f.store.job(t, 1, "A").Status)
}

func TestLifecycleEdgeEnforcement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)

	// Finalize twice: second call finds the job out of NEW.
	require.NoError(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A"))
	assert.ErrorIs(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A"), ErrWrongStatus)

	// Abort requires READY.
	assert.ErrorIs(t, f.facade.AbortJob(ctx, 1, f.keys.Mint(), "A"), ErrWrongStatus)

	// Reset requires ERROR.
	assert.ErrorIs(t, f.facade.ResetJob(ctx, 1, f.keys.Mint(), "A"), ErrWrongStatus)

	f.store.setStatus(job.ID, store.StatusReady, "scene.lxs")
	require.NoError(t, f.facade.AbortJob(ctx, 1, f.keys.Mint(), "A"))
	assert.Equal(t, store.StatusError, f.store.job(t, 1, "A").Status)

	require.NoError(t, f.facade.ResetJob(ctx, 1, f.keys.Mint(), "A"))
	assert.Equal(t, store.StatusNew, f.store.job(t, 1, "A").Status)
}

func TestUploadRequiresNewStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addJob(t, 1, "A", 100)
	require.NoError(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A"))

	err := f.facade.AddFile(ctx, 1, f.keys.Mint(), "A", "extra.lxs", []byte("x"))
	assert.ErrorIs(t, err, ErrWrongStatus)
}

func TestTickDistributesPendingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	require.NoError(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A"))

	require.NoError(t, f.worker.Tick(ctx))

	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusReady, got.Status)
	assert.Equal(t, "scene.lxs", got.StatusData)
	assert.FileExists(t, filepath.Join(f.netdir, job.Path, "scene.lxs"))
}

func TestDistributionWithoutSceneFileFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.facade.AddJob(ctx, 1, f.keys.Mint(), "A", 100, -1)
	require.NoError(t, err)
	require.NoError(t, f.facade.AddFile(ctx, 1, f.keys.Mint(), "A", "texture.png", []byte{1, 2, 3}))
	require.NoError(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A"))

	require.NoError(t, f.worker.Tick(ctx))

	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusError, got.Status)
	assert.Contains(t, got.StatusData, "no scene file")
}

func TestBatchFairnessAdvancesOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.worker.batchSize = 2

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("job-%d", i)
		f.addJob(t, 1, name, 100)
		require.NoError(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), name))
	}

	require.NoError(t, f.worker.Tick(ctx))

	// Insert order matches submission order, so job-0 and job-1 are oldest.
	assert.Equal(t, store.StatusReady, f.store.job(t, 1, "job-0").Status)
	assert.Equal(t, store.StatusReady, f.store.job(t, 1, "job-1").Status)
	for i := 2; i < 5; i++ {
		assert.Equal(t, store.StatusPending, f.store.job(t, 1, fmt.Sprintf("job-%d", i)).Status)
	}
}

func TestReadyStaysReadyWithoutIdleNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	f.store.setStatus(job.ID, store.StatusReady, "scene.lxs")
	f.pool.nodes["w1"] = &fakeNode{idle: false}

	require.NoError(t, f.worker.Tick(ctx))
	require.NoError(t, f.worker.Tick(ctx))

	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusReady, got.Status)
	assert.Equal(t, "scene.lxs", got.StatusData)
}

func TestReadyAssignedToIdleNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	f.store.setStatus(job.ID, store.StatusReady, "scene.lxs")
	node := &fakeNode{idle: true, accept: true}
	f.pool.nodes["w1"] = node

	require.NoError(t, f.worker.Tick(ctx))

	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusRendering, got.Status)
	assert.Equal(t, "w1", got.StatusData)
	assert.Equal(t, []string{"A"}, node.assigned)
}

func TestAssignRefusalFailsJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	f.store.setStatus(job.ID, store.StatusReady, "scene.lxs")
	f.pool.nodes["w1"] = &fakeNode{idle: true, accept: false}

	require.NoError(t, f.worker.Tick(ctx))

	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusError, got.Status)
	assert.Contains(t, got.StatusData, "refused")
}

func TestNodeNotDoubleAssignedWithinTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addJob(t, 1, "A", 100)
	b := f.addJob(t, 1, "B", 100)
	f.store.setStatus(a.ID, store.StatusReady, "scene.lxs")
	f.store.setStatus(b.ID, store.StatusReady, "scene.lxs")
	node := &fakeNode{idle: true, accept: true}
	f.pool.nodes["w1"] = node

	require.NoError(t, f.worker.Tick(ctx))

	assert.Len(t, node.assigned, 1, "one node takes at most one job per tick")
	statuses := []store.Status{f.store.job(t, 1, "A").Status, f.store.job(t, 1, "B").Status}
	assert.Contains(t, statuses, store.StatusRendering)
	assert.Contains(t, statuses, store.StatusReady)
}

func TestVanishedNodeFailsRenderingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	f.store.setStatus(job.ID, store.StatusRendering, "w1")
	// Pool snapshot does not contain w1.

	require.NoError(t, f.worker.Tick(ctx))

	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusError, got.Status)
	assert.Contains(t, got.StatusData, "w1")
	assert.Contains(t, got.StatusData, "disappeared")
}

func TestFinishedRenderProducesExactlyOneResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	f.store.setStatus(job.ID, store.StatusRendering, "w1")
	f.pool.nodes["w1"] = &fakeNode{idle: true}

	require.NoError(t, f.worker.Tick(ctx))
	require.NoError(t, f.worker.Tick(ctx)) // second tick must be a no-op

	_, err := f.store.JobByName(ctx, 1, "A")
	assert.ErrorIs(t, err, store.ErrNotFound)

	results, err := f.store.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, store.ResultRenderComplete, results[0].Status)
	assert.Equal(t, "A", results[0].JobName)
}

func TestTerminatedRenderFailsJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	f.store.setStatus(job.ID, store.StatusRendering, "w1")
	f.pool.nodes["w1"] = &fakeNode{idle: false, status: renderer.Status{Terminated: true}}

	require.NoError(t, f.worker.Tick(ctx))

	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusError, got.Status)
	assert.Contains(t, got.StatusData, "terminated")
}

func TestFreedNodeReusableInSameTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rendering := f.addJob(t, 1, "old", 100)
	ready := f.addJob(t, 1, "next", 100)
	f.store.setStatus(rendering.ID, store.StatusRendering, "w1")
	f.store.setStatus(ready.ID, store.StatusReady, "scene.lxs")
	node := &fakeNode{idle: true, accept: true}
	f.pool.nodes["w1"] = node

	require.NoError(t, f.worker.Tick(ctx))

	// The finished job became a Result and the freed node took the READY job
	// within the same pass.
	results, err := f.store.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "old", results[0].JobName)

	got := f.store.job(t, 1, "next")
	assert.Equal(t, store.StatusRendering, got.Status)
	assert.Equal(t, "w1", got.StatusData)
}

func TestDirectoryOutageStillDistributes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addJob(t, 1, "A", 100)
	require.NoError(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A"))
	f.pool.err = fmt.Errorf("%w: connection refused", directory.ErrUnavailable)

	require.NoError(t, f.worker.Tick(ctx))

	assert.Equal(t, store.StatusReady, f.store.job(t, 1, "A").Status)
}

func TestDirectoryOutageLeavesRenderingJobAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.addJob(t, 1, "A", 100)
	f.store.setStatus(job.ID, store.StatusRendering, "w1")
	f.pool.err = fmt.Errorf("%w: connection refused", directory.ErrUnavailable)

	require.NoError(t, f.worker.Tick(ctx))

	// The node may be fine; only a fresh pool snapshot can condemn it.
	got := f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusRendering, got.Status)
	assert.Equal(t, "w1", got.StatusData)

	// Directory back, node gone: now the job fails.
	f.pool.err = nil
	require.NoError(t, f.worker.Tick(ctx))
	got = f.store.job(t, 1, "A")
	assert.Equal(t, store.StatusError, got.Status)
	assert.Contains(t, got.StatusData, "disappeared")
}

func TestFullRenderScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Submit and finalize.
	job, err := f.facade.AddJob(ctx, 1, f.keys.Mint(), "A", 100, -1)
	require.NoError(t, err)
	require.NoError(t, f.facade.AddFile(ctx, 1, f.keys.Mint(), "A", "scene.lxs", []byte("WorldBegin\nWorldEnd\n")))
	require.NoError(t, f.facade.AddFile(ctx, 1, f.keys.Mint(), "A", "mesh.ply", []byte{0, 1}))
	require.NoError(t, f.facade.FinalizeJob(ctx, 1, f.keys.Mint(), "A"))

	node := &fakeNode{idle: true, accept: true}
	f.pool.nodes["w1"] = node

	// First tick distributes (PENDING -> READY), second assigns the node.
	require.NoError(t, f.worker.Tick(ctx))
	require.NoError(t, f.worker.Tick(ctx))
	got := f.store.job(t, 1, "A")
	require.Equal(t, store.StatusRendering, got.Status)
	assert.FileExists(t, filepath.Join(f.netdir, job.Path, "mesh.ply"))

	// Node finishes; next tick converts the row into a Result.
	node.setIdle(true)
	require.NoError(t, f.worker.Tick(ctx))

	_, err = f.store.JobByName(ctx, 1, "A")
	assert.ErrorIs(t, err, store.ErrNotFound)
	results, err := f.store.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, store.ResultRenderComplete, results[0].Status)
}

func TestTimerJoinsTicksOnStop(t *testing.T) {
	f := newFixture(t)
	timer := NewTimer(f.worker, 5*time.Millisecond, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		timer.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not stop")
	}
}

// slowTicker holds a tick open until released, then lands a status write on
// whatever context the timer handed it.
type slowTicker struct {
	store   *memStore
	jobID   int64
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (s *slowTicker) Tick(ctx context.Context) error {
	select {
	case <-s.started:
	default:
		close(s.started)
	}
	<-s.release
	s.ctxErr = ctx.Err()
	_, err := s.store.Transition(ctx, s.jobID, store.StatusDistributing, store.StatusReady, "scene.lxs")
	return err
}

func TestInFlightTickFinishesAfterStop(t *testing.T) {
	st := newMemStore()
	job, err := st.InsertJob(context.Background(), 1, "A", 100, -1)
	require.NoError(t, err)
	st.setStatus(job.ID, store.StatusDistributing, "")

	tick := &slowTicker{
		store:   st,
		jobID:   job.ID,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	// One tick in flight at a time, so the scripted ticker is never entered
	// concurrently.
	timer := NewTimer(tick, 5*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		timer.Run(ctx)
		close(done)
	}()

	<-tick.started
	cancel()

	// Run must block on the held-open tick.
	select {
	case <-done:
		t.Fatal("timer returned while a tick was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(tick.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not stop")
	}

	// The tick outlived the cancellation and its final write landed.
	assert.NoError(t, tick.ctxErr)
	assert.Equal(t, store.StatusReady, st.job(t, 1, "A").Status)
}

func TestUploadSanitizesFilename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.facade.AddJob(ctx, 1, f.keys.Mint(), "A", 100, -1)
	require.NoError(t, err)

	require.NoError(t, f.facade.AddFile(ctx, 1, f.keys.Mint(), "A", "../../etc/passwd", []byte("x")))

	job := f.store.job(t, 1, "A")
	entries, err := os.ReadDir(filepath.Join(f.local, job.Path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "_.._etc_passwd", entries[0].Name())
}
