package main

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/offline"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/report"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/store"
)

func (s *server) handleProjectsList(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		s.writeStoreError(w, err, "proyectos")
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *server) handleProjectsCreate(w http.ResponseWriter, r *http.Request) {
	var p store.Project
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = ""

	created, err := s.store.CreateProject(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleProjectGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleProjectUpdate(w http.ResponseWriter, r *http.Request) {
	var p store.Project
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = chi.URLParam(r, "id")

	updated, err := s.store.UpdateProject(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *server) handleProjectDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCalculationsList(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}
	calcs, err := s.store.ListCalculations(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err, "cálculos")
		return
	}
	writeJSON(w, http.StatusOK, calcs)
}

// handleCalculationsCreate recomputes the estimate server side and stores that
// snapshot, so a saved calculation always matches what a preview shows.
func (s *server) handleCalculationsCreate(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}

	var in estimateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	est, err := s.runEstimate(r, in, "save")
	if err != nil {
		s.writeStoreError(w, err, "estimación")
		return
	}

	calc, err := s.store.SaveCalculation(r.Context(), projectID, est)
	if err != nil {
		s.writeStoreError(w, err, "cálculo")
		return
	}

	if s.outbox != nil {
		if _, err := s.outbox.Enqueue(r.Context(), calc.ID, offline.KindCalculation, calc); err != nil {
			s.log.Warn("calculation not queued for forwarding", "id", calc.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusCreated, calc)
}

func (s *server) handleCalculationGet(w http.ResponseWriter, r *http.Request) {
	calc, err := s.store.GetCalculation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err, "cálculo")
		return
	}
	writeJSON(w, http.StatusOK, calc)
}

func (s *server) handleCalculationText(w http.ResponseWriter, r *http.Request) {
	calc, header, err := s.calculationForExport(r)
	if err != nil {
		s.writeStoreError(w, err, "cálculo")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteText(&buf, header, calc.Estimate); err != nil {
		s.writeStoreError(w, err, "cálculo")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleCalculationXLSX(w http.ResponseWriter, r *http.Request) {
	calc, header, err := s.calculationForExport(r)
	if err != nil {
		s.writeStoreError(w, err, "cálculo")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, header, calc.Estimate); err != nil {
		s.writeStoreError(w, err, "cálculo")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="presupuesto-`+calc.ID+`.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) calculationForExport(r *http.Request) (store.Calculation, report.Header, error) {
	calc, err := s.store.GetCalculation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return calc, report.Header{}, err
	}
	header := report.Header{Currency: s.currency}
	p, err := s.store.GetProject(r.Context(), calc.ProjectID)
	switch {
	case err == nil:
		header.Project, header.Client = p.Name, p.Client
	case !errors.Is(err, store.ErrNotFound):
		return calc, header, err
	}
	return calc, header, nil
}

type logInput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (s *server) handleLogsList(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}
	entries, err := s.store.ListLogs(r.Context(), projectID)
	if err != nil {
		s.writeStoreError(w, err, "bitácora")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *server) handleLogsCreate(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		s.writeStoreError(w, err, "proyecto")
		return
	}

	var in logInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		writeError(w, http.StatusBadRequest, "message es requerido")
		return
	}

	entry := store.LogEntry{ID: in.ID, ProjectID: projectID, Message: in.Message}
	if _, err := s.store.InsertLogIfAbsent(r.Context(), entry); err != nil {
		s.writeStoreError(w, err, "bitácora")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}
