package dispatcher

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/LuxRender/LuxFire/internal/store"
)

// userDirMu guards user namespace creation on network storage. Two jobs for
// the same user distributing at once must not race MkdirAll on shared mounts
// that mishandle concurrent directory creation.
var userDirMu sync.Mutex

// Distributor copies a job's intake tree to shared network storage so render
// nodes can reach the scene.
type Distributor struct {
	store      Store
	localDir   string
	networkDir string
}

func NewDistributor(st Store, localDir, networkDir string) *Distributor {
	return &Distributor{store: st, localDir: localDir, networkDir: networkDir}
}

// Distribute moves one DISTRIBUTING job to READY, or to ERROR with the
// failure message in status data. It never returns an error: every failure
// is terminal for the job, not for the tick that spawned the copy.
func (d *Distributor) Distribute(ctx context.Context, job store.Job) {
	src := filepath.Join(d.localDir, job.Path)

	scene, err := findSceneFile(src)
	if err != nil {
		d.fail(ctx, job, err)
		return
	}

	dst := filepath.Join(d.networkDir, job.Path)
	userDirMu.Lock()
	err = os.MkdirAll(filepath.Dir(dst), 0o755)
	userDirMu.Unlock()
	if err != nil {
		d.fail(ctx, job, fmt.Errorf("create user dir: %w", err))
		return
	}

	if err := copyTree(src, dst); err != nil {
		d.fail(ctx, job, fmt.Errorf("copy to network storage: %w", err))
		return
	}

	ok, err := d.store.Transition(ctx, job.ID, store.StatusDistributing, store.StatusReady, scene)
	if err != nil {
		log.Error().Err(err).Str("jobname", job.JobName).Msg("mark job ready")
		return
	}
	if !ok {
		log.Warn().Str("jobname", job.JobName).Msg("job left DISTRIBUTING while being distributed")
		return
	}
	log.Info().Str("jobname", job.JobName).Str("scene", scene).Msg("job distributed")
}

func (d *Distributor) fail(ctx context.Context, job store.Job, cause error) {
	log.Error().Err(cause).Str("jobname", job.JobName).Msg("distribution failed")
	if _, err := d.store.Transition(ctx, job.ID, store.StatusDistributing, store.StatusError, cause.Error()); err != nil {
		log.Error().Err(err).Str("jobname", job.JobName).Msg("mark job failed")
	}
}

// findSceneFile locates the single scene description in the intake tree.
// Zero or multiple scene files is a job error the client must resolve.
func findSceneFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read intake dir: %w", err)
	}

	var scenes []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lxs") {
			scenes = append(scenes, e.Name())
		}
	}
	switch len(scenes) {
	case 0:
		return "", fmt.Errorf("no scene file (*.lxs) found in %s", dir)
	case 1:
		return scenes[0], nil
	default:
		return "", fmt.Errorf("expected exactly one scene file in %s, found %d", dir, len(scenes))
	}
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
