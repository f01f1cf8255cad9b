// Package server is the HTTP surface over the introspection and export
// pipeline. It owns the selection coalescer and a registry of live job
// handles; everything else is delegated to the pipeline packages.
package server

import (
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jwkim/schemadoc/internal/export"
	"github.com/jwkim/schemadoc/internal/logger"
	"github.com/jwkim/schemadoc/internal/metadata"
	"github.com/jwkim/schemadoc/internal/pipeline"
	"github.com/jwkim/schemadoc/internal/render"
)

// DefaultMaxTrackedJobs bounds the job registry. Oldest terminal jobs
// are pruned past this; live jobs are never pruned.
const DefaultMaxTrackedJobs = 64

// Config tunes the server.
type Config struct {
	// DebounceWindow is how long a burst of selection changes may go
	// quiet before one introspection job is dispatched for the union.
	DebounceWindow time.Duration

	// RenderChunkSize bounds how many grid rows the grid endpoint
	// flushes per increment.
	RenderChunkSize int

	// MaxTrackedJobs caps the job registry.
	MaxTrackedJobs int
}

func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.DebounceWindow <= 0 {
		out.DebounceWindow = pipeline.DefaultDebounceWindow
	}
	if out.RenderChunkSize <= 0 {
		out.RenderChunkSize = render.DefaultChunkSize
	}
	if out.MaxTrackedJobs <= 0 {
		out.MaxTrackedJobs = DefaultMaxTrackedJobs
	}
	return &out
}

// Server wires the HTTP handlers to the pipeline.
type Server struct {
	src      metadata.Source
	pool     *pipeline.Pool
	exporter *export.Exporter
	cfg      *Config
	log      *logger.Logger

	coalescer *pipeline.Coalescer

	mu    sync.Mutex
	jobs  map[uuid.UUID]*pipeline.Handle
	order []uuid.UUID // registration order, oldest first

	// selection is the job spawned by the latest coalesced dispatch.
	selection *pipeline.Handle
}

// New creates a Server. A nil cfg uses defaults.
func New(src metadata.Source, pool *pipeline.Pool, exporter *export.Exporter, cfg *Config, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		src:      src,
		pool:     pool,
		exporter: exporter,
		cfg:      cfg.withDefaults(),
		log:      log,
		jobs:     make(map[uuid.UUID]*pipeline.Handle),
	}
	s.coalescer = pipeline.NewCoalescer(s.cfg.DebounceWindow, s.dispatchSelection)
	return s
}

// Close tears down the coalescer. Pool shutdown belongs to the caller.
func (s *Server) Close() {
	s.coalescer.Close()
}

// Router returns the HTTP routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/tables", s.handleListTables)
	r.Get("/tables/{schema}/{name}/ddl", s.handleDDL)
	r.Post("/selection", s.handleSelection)
	r.Get("/selection", s.handleCurrentSelection)
	r.Post("/export", s.handleExport)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{id}/events", s.handleJobEvents)
	r.Get("/jobs/{id}/grid", s.handleJobGrid)
	r.Delete("/jobs/{id}", s.handleCancelJob)

	return r
}

// dispatchSelection runs on the coalescer's timer goroutine once a
// selection burst goes quiet.
func (s *Server) dispatchSelection(targets []metadata.TableRef) {
	h, err := pipeline.Introspect(s.pool, s.src, targets)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to dispatch selection job")
		return
	}
	s.log.Info().Str("job", h.ID().String()).Int("targets", len(targets)).Msg("selection dispatched")

	s.mu.Lock()
	s.jobs[h.ID()] = h
	s.order = append(s.order, h.ID())
	s.selection = h
	s.pruneLocked()
	s.mu.Unlock()
}

func (s *Server) register(h *pipeline.Handle) {
	s.mu.Lock()
	s.jobs[h.ID()] = h
	s.order = append(s.order, h.ID())
	s.pruneLocked()
	s.mu.Unlock()
}

// pruneLocked evicts the oldest terminal jobs once the registry exceeds
// its cap. Live jobs and the current selection are never evicted, so
// the registry can transiently exceed the cap while that many jobs are
// still in flight.
func (s *Server) pruneLocked() {
	for len(s.jobs) > s.cfg.MaxTrackedJobs {
		evicted := false
		for i, id := range s.order {
			h, ok := s.jobs[id]
			if !ok {
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
			if h.State().Terminal() && h != s.selection {
				delete(s.jobs, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

func (s *Server) job(id uuid.UUID) (*pipeline.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.jobs[id]
	return h, ok
}

// currentSelection returns the job for the latest dispatched selection.
func (s *Server) currentSelection() (*pipeline.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection, s.selection != nil
}
