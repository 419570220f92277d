// Package renderer runs a rendering node: it wraps a render.Context behind a
// small RPC surface, announces itself to the directory service and reports
// progress back to whichever dispatcher asks.
package renderer

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/LuxRender/LuxFire/internal/jsonrpc"
	"github.com/LuxRender/LuxFire/internal/render"
)

const Version = "0.5.0"

// pollInterval is how often the completion monitor samples the engine.
const pollInterval = 5 * time.Second

// Status is the progress snapshot a node reports for its current render.
type Status struct {
	Name          string       `json:"name"`
	Idle          bool         `json:"idle"`
	JobName       string       `json:"jobname,omitempty"`
	Stats         render.Stats `json:"stats"`
	FilmIsReady   bool         `json:"filmIsReady"`
	Terminated    bool         `json:"terminated"`
	EnoughSamples bool         `json:"enoughSamples"`
}

// Server owns one rendering engine and serializes access to it. A node
// renders at most one job at a time; a second assignment is refused, not
// queued.
type Server struct {
	name       string
	networkDir string
	maxThreads int
	newContext func() render.Context
	rpc        *jsonrpc.Server
	poll       time.Duration

	mu      sync.Mutex
	engine  render.Context
	jobName string
	threads int
}

func NewServer(name, networkDir string, maxThreads int, newContext func() render.Context) *Server {
	s := &Server{
		name:       name,
		networkDir: networkDir,
		maxThreads: maxThreads,
		newContext: newContext,
		rpc:        jsonrpc.NewServer(),
		poll:       pollInterval,
	}
	s.rpc.Register("renderer.isIdle", s.handleIsIdle)
	s.rpc.Register("renderer.assign", s.handleAssign)
	s.rpc.Register("renderer.stats", s.handleStats)
	s.rpc.Register("renderer.addThread", s.handleAddThread)
	s.rpc.Register("renderer.removeThread", s.handleRemoveThread)
	s.rpc.Register("renderer.version", s.handleVersion)
	return s
}

func (s *Server) Handler() http.Handler { return s.rpc }

func (s *Server) isIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine == nil
}

func (s *Server) handleIsIdle(_ *http.Request, _ json.RawMessage) (any, error) {
	return s.isIdle(), nil
}

// handleAssign accepts a job for rendering. A busy node answers false; the
// dispatcher reads that as a refusal, never as an error.
func (s *Server) handleAssign(r *http.Request, params json.RawMessage) (any, error) {
	var jobname, jobPath, sceneFile string
	var haltSPP, haltTime int
	if err := jsonrpc.UnmarshalParams(params, &jobname, &jobPath, &sceneFile, &haltSPP, &haltTime); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		log.Warn().Str("jobname", jobname).Str("current", s.jobName).Msg("assignment refused, node is busy")
		return false, nil
	}

	workDir := filepath.Join(s.networkDir, filepath.Clean(jobPath))
	scenePath := filepath.Join(workDir, sceneFile)
	halt := render.HaltConditions{SamplesPerPixel: haltSPP, Seconds: haltTime}

	engine := s.newContext()
	if err := engine.Parse(r.Context(), scenePath, s.maxThreads, halt); err != nil {
		log.Error().Err(err).Str("jobname", jobname).Str("scene", scenePath).Msg("failed to start render")
		return false, nil
	}

	s.engine = engine
	s.jobName = jobname
	s.threads = s.maxThreads
	log.Info().Str("jobname", jobname).Str("scene", scenePath).Int("threads", s.threads).Msg("render assigned")

	go s.monitor(engine, jobname)
	return true, nil
}

// monitor watches a render until the engine reports it is finished, then
// shuts the engine down and returns the node to idle.
func (s *Server) monitor(engine render.Context, jobname string) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for range ticker.C {
		ready := engine.Stat(render.StatFilmIsReady) > 0
		terminated := engine.Stat(render.StatTerminated) > 0
		enough := engine.Stat(render.StatEnoughSamples) > 0
		if !ready && !terminated && !enough {
			continue
		}

		s.mu.Lock()
		final := render.Snapshot(engine, s.threads)
		s.mu.Unlock()

		engine.Exit()
		engine.Wait()

		s.mu.Lock()
		if s.engine == engine {
			s.engine = nil
			s.jobName = ""
			s.threads = 0
		}
		s.mu.Unlock()

		log.Info().Str("jobname", jobname).Str("stats", final.String()).
			Bool("filmIsReady", ready).Bool("terminated", terminated).Bool("enoughSamples", enough).
			Msg("render finished")
		return
	}
}

func (s *Server) handleStats(_ *http.Request, _ json.RawMessage) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Name: s.name, Idle: s.engine == nil, JobName: s.jobName}
	if s.engine != nil {
		st.Stats = render.Snapshot(s.engine, s.threads)
		st.FilmIsReady = s.engine.Stat(render.StatFilmIsReady) > 0
		st.Terminated = s.engine.Stat(render.StatTerminated) > 0
		st.EnoughSamples = s.engine.Stat(render.StatEnoughSamples) > 0
	}
	return st, nil
}

// Thread adjustments apply to the advertised target for the next assignment;
// the console engine fixes its pool size at launch.
func (s *Server) handleAddThread(_ *http.Request, _ json.RawMessage) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxThreads < 64 {
		s.maxThreads++
	}
	return s.maxThreads, nil
}

func (s *Server) handleRemoveThread(_ *http.Request, _ json.RawMessage) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxThreads > 1 {
		s.maxThreads--
	}
	return s.maxThreads, nil
}

func (s *Server) handleVersion(_ *http.Request, _ json.RawMessage) (any, error) {
	return Version, nil
}

// Shutdown stops any in-flight render. Called on process exit so a killed
// node does not leave an orphan engine process behind.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		engine.Exit()
		engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("render engine did not stop before shutdown deadline")
	}
}
