// Package dispatcher owns the render queue: the client-facing lifecycle
// calls, the periodic scheduling tick and the scene distributor.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/LuxRender/LuxFire/internal/store"
)

var (
	ErrDuplicateJob = errors.New("a job with that name already exists")
	ErrWrongStatus  = errors.New("job is not in a status that allows this operation")
	ErrMissingHalt  = errors.New("job needs at least one positive halt condition")
)

// ErrUnauthorized mirrors the session layer's uniform auth failure so the
// facade has a single sentinel for every credential problem.
var ErrUnauthorized = errors.New("invalid credentials")

// Store is the queue persistence surface the dispatcher needs.
type Store interface {
	InsertJob(ctx context.Context, userID int64, jobname string, haltSPP, haltTime int) (store.Job, error)
	JobByName(ctx context.Context, userID int64, jobname string) (store.Job, error)
	ClaimBatch(ctx context.Context, limit int) ([]store.Job, error)
	Transition(ctx context.Context, id int64, from, to store.Status, statusData string) (bool, error)
	CompleteJob(ctx context.Context, job store.Job, status store.ResultStatus) (bool, error)
	ListQueue(ctx context.Context) ([]store.Job, error)
	ListResults(ctx context.Context) ([]store.Result, error)
}

// KeyConsumer burns one-time keys. Implemented by the session manager.
type KeyConsumer interface {
	ConsumeKey(ctx context.Context, userID int64, key string) error
}

// Facade guards every mutating queue call behind a (user id, one-time key)
// check. The key is burned before the operation runs, so a replayed key fails
// even when the operation itself would have been rejected.
type Facade struct {
	store    Store
	keys     KeyConsumer
	localDir string
}

func NewFacade(st Store, keys KeyConsumer, localDir string) *Facade {
	return &Facade{store: st, keys: keys, localDir: localDir}
}

func (f *Facade) authorize(ctx context.Context, userID int64, key string) error {
	if err := f.keys.ConsumeKey(ctx, userID, key); err != nil {
		return ErrUnauthorized
	}
	return nil
}

// AddJob creates a queue entry in status NEW. The (user, jobname) pair must
// be unique among live jobs.
func (f *Facade) AddJob(ctx context.Context, userID int64, key, jobname string, haltSPP, haltTime int) (store.Job, error) {
	if err := f.authorize(ctx, userID, key); err != nil {
		return store.Job{}, err
	}
	if store.SanitizeName(jobname) == "" {
		return store.Job{}, fmt.Errorf("invalid job name %q", jobname)
	}

	job, err := f.store.InsertJob(ctx, userID, jobname, haltSPP, haltTime)
	if errors.Is(err, store.ErrDuplicate) {
		return store.Job{}, ErrDuplicateJob
	}
	if err != nil {
		return store.Job{}, err
	}
	log.Info().Int64("user_id", userID).Str("jobname", jobname).Msg("job added")
	return job, nil
}

// FinalizeJob marks a NEW job ready for distribution. The job must carry at
// least one positive halt condition or it could render forever.
func (f *Facade) FinalizeJob(ctx context.Context, userID int64, key, jobname string) error {
	if err := f.authorize(ctx, userID, key); err != nil {
		return err
	}
	job, err := f.store.JobByName(ctx, userID, jobname)
	if err != nil {
		return err
	}
	if job.HaltSPP <= 0 && job.HaltTime <= 0 {
		return ErrMissingHalt
	}

	ok, err := f.store.Transition(ctx, job.ID, store.StatusNew, store.StatusPending, "")
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongStatus
	}
	log.Info().Int64("user_id", userID).Str("jobname", jobname).Msg("job finalized")
	return nil
}

// AbortJob cancels a READY job. Jobs in any other status are left alone; an
// in-flight render cannot be recalled from the node.
func (f *Facade) AbortJob(ctx context.Context, userID int64, key, jobname string) error {
	if err := f.authorize(ctx, userID, key); err != nil {
		return err
	}
	job, err := f.store.JobByName(ctx, userID, jobname)
	if err != nil {
		return err
	}

	ok, err := f.store.Transition(ctx, job.ID, store.StatusReady, store.StatusError, "aborted by user")
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongStatus
	}
	log.Info().Int64("user_id", userID).Str("jobname", jobname).Msg("job aborted")
	return nil
}

// ResetJob returns an ERROR job to NEW so the client can re-upload and
// finalize again. This is the only recovery path for failed jobs.
func (f *Facade) ResetJob(ctx context.Context, userID int64, key, jobname string) error {
	if err := f.authorize(ctx, userID, key); err != nil {
		return err
	}
	job, err := f.store.JobByName(ctx, userID, jobname)
	if err != nil {
		return err
	}

	ok, err := f.store.Transition(ctx, job.ID, store.StatusError, store.StatusNew, "")
	if err != nil {
		return err
	}
	if !ok {
		return ErrWrongStatus
	}
	log.Info().Int64("user_id", userID).Str("jobname", jobname).Msg("job reset")
	return nil
}

// AddFile stores one uploaded scene file under the job's intake path. Only
// NEW jobs accept uploads; after finalize the intake tree is frozen.
func (f *Facade) AddFile(ctx context.Context, userID int64, key, jobname, filename string, data []byte) error {
	if err := f.authorize(ctx, userID, key); err != nil {
		return err
	}
	job, err := f.store.JobByName(ctx, userID, jobname)
	if err != nil {
		return err
	}
	if job.Status != store.StatusNew {
		return ErrWrongStatus
	}

	safe := store.SanitizeName(filename)
	if safe == "" {
		return fmt.Errorf("invalid filename %q", filename)
	}

	dir := filepath.Join(f.localDir, job.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create intake dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, safe), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", safe, err)
	}
	log.Debug().Int64("user_id", userID).Str("jobname", jobname).Str("file", safe).Int("bytes", len(data)).Msg("file uploaded")
	return nil
}

// ListQueue returns the queue newest first.
func (f *Facade) ListQueue(ctx context.Context) ([]store.Job, error) {
	return f.store.ListQueue(ctx)
}

// ListResults returns finished jobs newest first.
func (f *Facade) ListResults(ctx context.Context) ([]store.Result, error) {
	return f.store.ListResults(ctx)
}
