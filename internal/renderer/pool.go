package renderer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/LuxRender/LuxFire/internal/jsonrpc"
)

// Resolver is the directory surface the pool needs. Satisfied by the
// directory client and by an in-process registry adapter.
type Resolver interface {
	ResolveGroup(ctx context.Context, group string) ([]string, error)
	Lookup(ctx context.Context, name string) (string, error)
}

// Handle is the dispatcher-side client for one rendering node.
type Handle struct {
	Name string
	rpc  *jsonrpc.Client
}

func NewHandle(name, endpoint string) *Handle {
	return &Handle{Name: name, rpc: jsonrpc.NewClient(endpoint)}
}

func (h *Handle) IsIdle(ctx context.Context) (bool, error) {
	var idle bool
	if err := h.rpc.Call(ctx, "renderer.isIdle", nil, &idle); err != nil {
		return false, fmt.Errorf("isIdle %s: %w", h.Name, err)
	}
	return idle, nil
}

// Assign offers a job to the node. (false, nil) is a refusal: the node was
// busy or could not start the scene. Only transport failures are errors.
func (h *Handle) Assign(ctx context.Context, jobname, jobPath, sceneFile string, haltSPP, haltTime int) (bool, error) {
	var accepted bool
	err := h.rpc.Call(ctx, "renderer.assign",
		[]any{jobname, jobPath, sceneFile, haltSPP, haltTime}, &accepted)
	if err != nil {
		return false, fmt.Errorf("assign %s to %s: %w", jobname, h.Name, err)
	}
	return accepted, nil
}

func (h *Handle) Stats(ctx context.Context) (Status, error) {
	var st Status
	if err := h.rpc.Call(ctx, "renderer.stats", nil, &st); err != nil {
		return Status{}, fmt.Errorf("stats %s: %w", h.Name, err)
	}
	return st, nil
}

// Pool discovers rendering nodes through the directory service.
type Pool struct {
	dir   Resolver
	group string
}

func NewPool(dir Resolver, group string) *Pool {
	return &Pool{dir: dir, group: group}
}

// Discover snapshots the node group. The returned map is keyed by the short
// node name and is owned by the caller; a node whose endpoint cannot be
// resolved is logged and skipped rather than failing the whole snapshot.
func (p *Pool) Discover(ctx context.Context) (map[string]*Handle, error) {
	names, err := p.dir.ResolveGroup(ctx, p.group)
	if err != nil {
		return nil, err
	}

	handles := make(map[string]*Handle, len(names))
	for _, name := range names {
		endpoint, err := p.dir.Lookup(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("name", name).Msg("skipping node with unresolvable endpoint")
			continue
		}
		short := strings.TrimPrefix(name, p.group+".")
		handles[short] = NewHandle(short, endpoint)
	}
	return handles, nil
}
