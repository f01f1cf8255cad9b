package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/jwkim/schemadoc/internal/render"
)

// textSurface lays grid rows out as tab-separated lines. A zero Row
// (the renderer's table separator) becomes an empty line.
type textSurface struct {
	w io.Writer
}

func (t *textSurface) AppendRows(rows []render.Row) {
	for _, row := range rows {
		if row == (render.Row{}) {
			fmt.Fprintln(t.w)
			continue
		}
		fmt.Fprintf(t.w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.No, row.Table, row.Column, row.DataType, row.Null, row.Key, row.Default, row.Comment)
	}
}

// handleJobGrid drains a job's event stream through the chunked
// renderer and writes the structure grid as plain text, flushing after
// every increment. Like the SSE stream, draining here relieves the
// pipeline's backpressure. The footer line reports the terminal state.
func (s *Server) handleJobGrid(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	rend := render.New(&textSurface{w: w}, &render.Config{
		ChunkSize: s.cfg.RenderChunkSize,
		Yield:     flusher.Flush,
	})
	summary, state, err := rend.Consume(h.Events())

	switch {
	case err != nil:
		fmt.Fprintf(w, "# %s: %s\n", state, err)
	case summary != nil:
		fmt.Fprintf(w, "# %s: %d succeeded, %d failed, %d unattempted\n",
			state, summary.Succeeded, summary.Failed, summary.Unattempted)
	default:
		fmt.Fprintf(w, "# %s\n", state)
	}
	flusher.Flush()
}
