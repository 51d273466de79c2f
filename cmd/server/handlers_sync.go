package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/offline"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/store"
)

// handleSync ingests one record replayed from a client outbox. Records keep
// the id the client generated; a redelivered id answers 200 without writing.
func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	key := r.Header.Get(offline.IdempotencyHeader)

	var (
		inserted bool
		err      error
	)
	switch kind {
	case offline.KindProject:
		var p store.Project
		if err := decodeJSON(w, r, &p); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if p.ID == "" {
			p.ID = key
		}
		inserted, err = s.store.InsertProjectIfAbsent(r.Context(), p)

	case offline.KindCalculation:
		var c store.Calculation
		if err := decodeJSON(w, r, &c); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if c.ID == "" {
			c.ID = key
		}
		inserted, err = s.ingestCalculation(r.Context(), c)

	case offline.KindLog:
		var e store.LogEntry
		if err := decodeJSON(w, r, &e); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if e.ID == "" {
			e.ID = key
		}
		if _, perr := s.store.GetProject(r.Context(), e.ProjectID); perr != nil {
			s.writeStoreError(w, perr, "proyecto")
			return
		}
		inserted, err = s.store.InsertLogIfAbsent(r.Context(), e)

	default:
		writeError(w, http.StatusNotFound, "tipo de sincronización desconocido: "+kind)
		return
	}

	if err != nil {
		s.writeStoreError(w, err, kind)
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]bool{"inserted": inserted})
}

// ingestCalculation requires the parent project, which a FIFO outbox always
// delivers first. A 404 makes the client retry later without skipping ahead.
func (s *server) ingestCalculation(ctx context.Context, c store.Calculation) (bool, error) {
	if c.ProjectID == "" {
		return false, fmt.Errorf("%w: project_id es requerido", store.ErrInvalidProject)
	}
	if _, err := s.store.GetProject(ctx, c.ProjectID); err != nil {
		return false, err
	}
	return s.store.InsertCalculationIfAbsent(ctx, c)
}
