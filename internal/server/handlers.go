package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jwkim/schemadoc/internal/errs"
	"github.com/jwkim/schemadoc/internal/metadata"
	"github.com/jwkim/schemadoc/internal/pipeline"
)

type tableRefDTO struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

type selectionRequest struct {
	Tables []tableRefDTO `json:"tables"`
}

type exportRequest struct {
	Tables      []tableRefDTO `json:"tables"`
	Destination string        `json:"destination"`
}

type jobDTO struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	State string `json:"state"`
}

type errorDTO struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.src.Ping(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.src.ListTables(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	type tableDTO struct {
		Schema  string `json:"schema"`
		Name    string `json:"name"`
		Comment string `json:"comment,omitempty"`
	}
	out := make([]tableDTO, len(tables))
	for i, t := range tables {
		out[i] = tableDTO{Schema: t.Ref.Schema, Name: t.Ref.Name, Comment: t.Comment}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDDL(w http.ResponseWriter, r *http.Request) {
	ref := metadata.TableRef{
		Schema: chi.URLParam(r, "schema"),
		Name:   chi.URLParam(r, "name"),
	}
	ddl, err := s.src.GenerateDDL(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, ddl)
}

// handleSelection feeds the coalescer. The response is immediate; the
// introspection job materializes only after the quiet window, under
// GET /selection.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid selection body", err))
		return
	}
	if len(req.Tables) == 0 {
		writeError(w, errs.New(errs.ErrKindInvalidInput, "selection is empty"))
		return
	}

	targets := make([]metadata.TableRef, len(req.Tables))
	for i, t := range req.Tables {
		targets[i] = metadata.TableRef{Schema: t.Schema, Name: t.Name}
	}
	s.coalescer.Submit(targets...)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCurrentSelection(w http.ResponseWriter, _ *http.Request) {
	h, ok := s.currentSelection()
	if !ok {
		writeError(w, errs.New(errs.ErrKindNotFound, "no selection job yet"))
		return
	}
	writeJSON(w, http.StatusOK, jobDTO{ID: h.ID().String(), Kind: h.Kind().String(), State: h.State().String()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid export body", err))
		return
	}

	targets := make([]metadata.TableRef, len(req.Tables))
	for i, t := range req.Tables {
		targets[i] = metadata.TableRef{Schema: t.Schema, Name: t.Name}
	}

	h, err := s.exporter.Export(s.src, targets, req.Destination)
	if err != nil {
		writeError(w, err)
		return
	}
	s.register(h)
	writeJSON(w, http.StatusAccepted, jobDTO{ID: h.ID().String(), Kind: h.Kind().String(), State: h.State().String()})
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.pruneLocked()
	out := make([]jobDTO, 0, len(s.jobs))
	for _, h := range s.jobs {
		out = append(out, jobDTO{ID: h.ID().String(), Kind: h.Kind().String(), State: h.State().String()})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	h.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) (*pipeline.Handle, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "invalid job id", err))
		return nil, false
	}
	h, ok := s.job(id)
	if !ok {
		writeError(w, errs.New(errs.ErrKindNotFound, "no such job"))
		return nil, false
	}
	return h, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), errorDTO{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

// httpStatus maps the error taxonomy onto HTTP statuses.
func httpStatus(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
