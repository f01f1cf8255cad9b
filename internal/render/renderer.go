// Package render lays introspection results into a presentation surface
// in bounded-size increments, so a wide or deep schema never freezes the
// interactive side of an application.
package render

import (
	"runtime"

	"github.com/jwkim/schemadoc/internal/metadata"
	"github.com/jwkim/schemadoc/internal/pipeline"
)

// DefaultChunkSize is how many grid rows are flushed per increment.
const DefaultChunkSize = 200

// Row is one line of the structure grid, in the shape interactive
// tooling shows it: ordinal, owning table, then column detail. Null
// carries the "NN" marker for NOT NULL columns.
type Row struct {
	No       int
	Table    string
	Column   string
	DataType string
	Null     string
	Key      string
	Default  string
	Comment  string
}

// Surface is the presentation side's sink. AppendRows is called with at
// most one chunk of rows at a time, always from Consume's goroutine, so
// implementations need no locking of their own.
type Surface interface {
	AppendRows(rows []Row)
}

// Config tunes the renderer.
type Config struct {
	// ChunkSize bounds how many rows reach the surface per increment.
	ChunkSize int

	// Yield runs between increments to hand control back to the
	// interactive thread. Defaults to runtime.Gosched; UI integrations
	// substitute their event-loop tick here.
	Yield func()
}

// Renderer incrementally materializes TableStructure results onto a
// Surface. Results may arrive in any order; output order always matches
// the order targets were requested, by buffering early arrivals until
// their predecessors have rendered.
type Renderer struct {
	surface   Surface
	chunkSize int
	yield     func()
}

// New creates a renderer writing to surface. A nil cfg uses defaults.
func New(surface Surface, cfg *Config) *Renderer {
	r := &Renderer{
		surface:   surface,
		chunkSize: DefaultChunkSize,
		yield:     runtime.Gosched,
	}
	if cfg != nil {
		if cfg.ChunkSize > 0 {
			r.chunkSize = cfg.ChunkSize
		}
		if cfg.Yield != nil {
			r.yield = cfg.Yield
		}
	}
	return r
}

// Consume drains a job's event stream, rendering each structure in
// request order, and returns the job's terminal summary and state.
// A stream that closes with no terminal event (a job cancelled before
// it started) yields a nil summary and StateCancelled.
//
// The returned error is the job-level fault for Failed jobs; per-target
// errors live in the summary and do not surface here.
func (r *Renderer) Consume(events <-chan pipeline.Event) (*pipeline.Summary, pipeline.State, error) {
	next := 0
	arrived := map[int]*metadata.TableStructure{}
	started := false

	for ev := range events {
		if ev.Terminal {
			// Render whatever is still in order before reporting.
			started = r.flushReady(&next, arrived, started)
			return ev.Summary, ev.State, ev.Err
		}
		if ev.Message != "" {
			// Export stage progress; nothing to lay out.
			continue
		}

		// Failed targets occupy their position with no rows, so order
		// bookkeeping still advances past them.
		arrived[ev.TargetIndex] = ev.Structure
		started = r.flushReady(&next, arrived, started)
	}

	return nil, pipeline.StateCancelled, nil
}

// flushReady renders consecutive positions starting at *next for which
// results have arrived. Returns whether anything has been rendered yet.
func (r *Renderer) flushReady(next *int, arrived map[int]*metadata.TableStructure, started bool) bool {
	for {
		st, ok := arrived[*next]
		if !ok {
			return started
		}
		delete(arrived, *next)
		*next++

		if st == nil {
			continue
		}
		r.renderStructure(st, started)
		started = true
	}
}

func (r *Renderer) renderStructure(st *metadata.TableStructure, separator bool) {
	rows := structureRows(st)
	if separator {
		rows = append([]Row{{}}, rows...)
	}

	for start := 0; start < len(rows); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		r.surface.AppendRows(rows[start:end])
		r.yield()
	}
}

// structureRows converts one table's structure to grid rows.
func structureRows(st *metadata.TableStructure) []Row {
	rows := make([]Row, 0, len(st.Columns))
	for i, col := range st.Columns {
		null := ""
		if !col.Nullable {
			null = "NN"
		}
		def := ""
		if col.Default != nil {
			def = *col.Default
		}
		rows = append(rows, Row{
			No:       i + 1,
			Table:    st.Ref.Name,
			Column:   col.Name,
			DataType: col.DataType,
			Null:     null,
			Key:      col.Key,
			Default:  def,
			Comment:  col.Comment,
		})
	}
	return rows
}
