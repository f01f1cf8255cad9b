package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jwkim/schemadoc/internal/metadata"
	"github.com/jwkim/schemadoc/internal/pipeline"
)

// eventDTO is the wire shape of one progress event.
type eventDTO struct {
	Target      string               `json:"target,omitempty"`
	TargetIndex int                  `json:"targetIndex"`
	Total       int                  `json:"total"`
	Structure   *structureDTO        `json:"structure,omitempty"`
	Message     string               `json:"message,omitempty"`
	Error       string               `json:"error,omitempty"`
	Terminal    bool                 `json:"terminal,omitempty"`
	State       string               `json:"state,omitempty"`
	Summary     *summaryDTO          `json:"summary,omitempty"`
}

type structureDTO struct {
	Table      string      `json:"table"`
	Comment    string      `json:"comment,omitempty"`
	Columns    []columnDTO `json:"columns"`
	PrimaryKey []string    `json:"primaryKey,omitempty"`
}

type columnDTO struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
	Nullable bool   `json:"nullable"`
	Key      string `json:"key,omitempty"`
	Default  string `json:"default,omitempty"`
	Extra    string `json:"extra,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type summaryDTO struct {
	Total       int `json:"total"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Unattempted int `json:"unattempted"`
}

// handleJobEvents streams a job's progress as server-sent events. The
// stream ends when the job reaches a terminal state. Draining here is
// what relieves the pipeline's backpressure, so a connected client
// keeps its job moving.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, open := <-h.Events():
			if !open {
				return
			}
			data, err := json.Marshal(toEventDTO(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			// Client went away; the job keeps running for other
			// listeners, or until cancelled.
			return
		}
	}
}

func toEventDTO(ev pipeline.Event) eventDTO {
	dto := eventDTO{
		TargetIndex: ev.TargetIndex,
		Total:       ev.TotalTargets,
		Message:     ev.Message,
		Terminal:    ev.Terminal,
	}
	if ev.Target != (metadata.TableRef{}) {
		dto.Target = ev.Target.String()
	}
	if ev.Err != nil {
		dto.Error = ev.Err.Error()
	}
	if ev.Structure != nil {
		dto.Structure = toStructureDTO(ev.Structure)
	}
	if ev.Terminal {
		dto.State = ev.State.String()
		if ev.Summary != nil {
			dto.Summary = &summaryDTO{
				Total:       ev.Summary.Total,
				Succeeded:   ev.Summary.Succeeded,
				Failed:      ev.Summary.Failed,
				Unattempted: ev.Summary.Unattempted,
			}
		}
	}
	return dto
}

func toStructureDTO(st *metadata.TableStructure) *structureDTO {
	dto := &structureDTO{
		Table:      st.Ref.String(),
		Comment:    st.Comment,
		PrimaryKey: st.PrimaryKey,
		Columns:    make([]columnDTO, len(st.Columns)),
	}
	for i, c := range st.Columns {
		def := ""
		if c.Default != nil {
			def = *c.Default
		}
		dto.Columns[i] = columnDTO{
			Name:     c.Name,
			DataType: c.DataType,
			Nullable: c.Nullable,
			Key:      c.Key,
			Default:  def,
			Extra:    c.Extra,
			Comment:  c.Comment,
		}
	}
	return dto
}
