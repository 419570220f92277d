package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/LuxRender/LuxFire/internal/directory"
	"github.com/LuxRender/LuxFire/internal/renderer"
	"github.com/LuxRender/LuxFire/internal/store"
)

// WorkerHandle is one render node as seen from the scheduling loop.
type WorkerHandle interface {
	IsIdle(ctx context.Context) (bool, error)
	Assign(ctx context.Context, jobname, jobPath, sceneFile string, haltSPP, haltTime int) (bool, error)
	Stats(ctx context.Context) (renderer.Status, error)
}

// WorkerPool produces a fresh snapshot of the node group.
type WorkerPool interface {
	Discover(ctx context.Context) (map[string]WorkerHandle, error)
}

// Worker executes one scheduling tick over a batch of queue entries.
type Worker struct {
	store       Store
	pool        WorkerPool
	distributor *Distributor
	batchSize   int
}

func NewWorker(st Store, pool WorkerPool, distributor *Distributor, batchSize int) *Worker {
	return &Worker{store: st, pool: pool, distributor: distributor, batchSize: batchSize}
}

// Tick runs one pass of the scheduling loop.
//
// The pool snapshot is immutable for the duration of the tick; assignment
// decisions are tracked in a local claimed set so a node handed one job this
// tick cannot be handed a second. RENDERING entries are handled before the
// rest so a node freed by a finished render can pick up a READY job in the
// same pass. Per-job failures are logged and never abort the batch.
func (w *Worker) Tick(ctx context.Context) error {
	poolKnown := true
	handles, err := w.pool.Discover(ctx)
	if err != nil {
		if !errors.Is(err, directory.ErrUnavailable) {
			return fmt.Errorf("discover pool: %w", err)
		}
		// Jobs that need no node still make progress.
		log.Warn().Err(err).Msg("directory unreachable, ticking with an empty pool")
		handles = nil
		poolKnown = false
	}

	jobs, err := w.store.ClaimBatch(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("claim batch: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	claimed := make(map[string]bool)
	var children errgroup.Group

	// Without a pool snapshot there is no way to tell a crashed node from an
	// unreachable directory, so RENDERING rows wait for the next tick.
	if poolKnown {
		for _, job := range jobs {
			if job.Status != store.StatusRendering {
				continue
			}
			w.handleRendering(ctx, job, handles)
		}
	}

	for _, job := range jobs {
		switch job.Status {
		case store.StatusRendering:
			// Already handled above.
		case store.StatusPending:
			w.handlePending(ctx, job, &children)
		case store.StatusDistributing:
			// A distributor owns this job; nothing to do here.
		case store.StatusReady:
			w.handleReady(ctx, job, handles, claimed)
		default:
			log.Warn().Str("jobname", job.JobName).Str("status", string(job.Status)).Msg("unexpected status in batch")
		}
	}

	// Child mutations must land before the tick is considered done so the
	// next tick sees them.
	return children.Wait()
}

// handleRendering polls the assigned node. An idle node means the render
// finished: the queue row is swapped for a Result. A node missing from the
// fresh pool snapshot means it crashed or partitioned, which is terminal.
func (w *Worker) handleRendering(ctx context.Context, job store.Job, handles map[string]WorkerHandle) {
	nodeName := job.StatusData
	handle, present := handles[nodeName]
	if !present {
		msg := fmt.Sprintf("render node %s disappeared", nodeName)
		if _, err := w.store.Transition(ctx, job.ID, store.StatusRendering, store.StatusError, msg); err != nil {
			log.Error().Err(err).Str("jobname", job.JobName).Msg("mark vanished-node job failed")
		}
		log.Warn().Str("jobname", job.JobName).Str("node", nodeName).Msg("render node vanished")
		return
	}

	st, err := handle.Stats(ctx)
	if err != nil {
		// Unresponsive but still registered. Leave the job alone; the node
		// either recovers or drops out of the directory.
		log.Warn().Err(err).Str("jobname", job.JobName).Str("node", nodeName).Msg("render node not responding")
		return
	}

	if st.Terminated {
		msg := fmt.Sprintf("render terminated on node %s", nodeName)
		if _, err := w.store.Transition(ctx, job.ID, store.StatusRendering, store.StatusError, msg); err != nil {
			log.Error().Err(err).Str("jobname", job.JobName).Msg("mark terminated job failed")
		}
		return
	}
	if !st.Idle {
		return
	}

	// Losing the completion race means another actor already finalized the
	// job, so no duplicate Result can appear.
	ok, err := w.store.CompleteJob(ctx, job, store.ResultRenderComplete)
	if err != nil {
		log.Error().Err(err).Str("jobname", job.JobName).Msg("finalize finished job")
		return
	}
	if !ok {
		return
	}
	log.Info().Str("jobname", job.JobName).Str("node", nodeName).Msg("render complete")
}

func (w *Worker) handlePending(ctx context.Context, job store.Job, children *errgroup.Group) {
	ok, err := w.store.Transition(ctx, job.ID, store.StatusPending, store.StatusDistributing, "")
	if err != nil {
		log.Error().Err(err).Str("jobname", job.JobName).Msg("start distribution")
		return
	}
	if !ok {
		return
	}
	children.Go(func() error {
		w.distributor.Distribute(ctx, job)
		return nil
	})
}

// handleReady offers the job to the first idle unclaimed node. No idle node
// is a no-op; the job stays READY and is retried next tick.
func (w *Worker) handleReady(ctx context.Context, job store.Job, handles map[string]WorkerHandle, claimed map[string]bool) {
	// The READY row carries the detected scene filename; the transition to
	// RENDERING replaces it with the node name.
	scene := job.StatusData

	for _, name := range sortedNames(handles) {
		if claimed[name] {
			continue
		}
		handle := handles[name]

		idle, err := handle.IsIdle(ctx)
		if err != nil {
			log.Warn().Err(err).Str("node", name).Msg("idle check failed, skipping node")
			continue
		}
		if !idle {
			continue
		}

		ok, err := w.store.Transition(ctx, job.ID, store.StatusReady, store.StatusRendering, name)
		if err != nil {
			log.Error().Err(err).Str("jobname", job.JobName).Msg("mark job rendering")
			return
		}
		if !ok {
			// Lost the row to a concurrent actor; the job is not ours.
			return
		}
		claimed[name] = true

		accepted, err := handle.Assign(ctx, job.JobName, job.Path, scene, job.HaltSPP, job.HaltTime)
		if err != nil || !accepted {
			msg := fmt.Sprintf("node %s refused assignment", name)
			if err != nil {
				msg = fmt.Sprintf("assign to node %s failed: %v", name, err)
			}
			if _, terr := w.store.Transition(ctx, job.ID, store.StatusRendering, store.StatusError, msg); terr != nil {
				log.Error().Err(terr).Str("jobname", job.JobName).Msg("mark refused job failed")
			}
			log.Warn().Str("jobname", job.JobName).Str("node", name).Msg(msg)
			return
		}

		log.Info().Str("jobname", job.JobName).Str("node", name).Msg("job assigned")
		return
	}
}

func sortedNames(handles map[string]WorkerHandle) []string {
	names := make([]string, 0, len(handles))
	for name := range handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
