package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/estimate"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/layout"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/store"
)

const maxBodyBytes = 1 << 20

// estimateInput is the request body of preview and save. Prices default to
// the stored table and workers to the configured crew size.
type estimateInput struct {
	Length  float64              `json:"length"`
	Width   float64              `json:"width"`
	Options layout.Options       `json:"options"`
	Prices  *pricing.PriceTable  `json:"prices,omitempty"`
	Labor   pricing.LaborParams  `json:"labor"`
	Budget  pricing.BudgetParams `json:"budget"`
}

func (s *server) buildRequest(r *http.Request, in estimateInput) (estimate.Request, error) {
	req := estimate.Request{
		Length:  in.Length,
		Width:   in.Width,
		Options: in.Options,
		Labor:   in.Labor,
		Budget:  in.Budget,
	}
	if in.Prices != nil {
		req.Prices = *in.Prices
	} else {
		prices, err := s.store.Prices(r.Context())
		if err != nil {
			return req, err
		}
		req.Prices = prices
	}
	if req.Labor.Workers <= 0 {
		req.Labor.Workers = s.workers
	}
	return req, nil
}

// parseEstimateQuery reads a preview from query parameters, the form used by
// the live preview while the user types.
func parseEstimateQuery(q url.Values) (estimateInput, error) {
	var (
		in  estimateInput
		err error
	)
	if in.Length, err = parsePositiveFloat(q.Get("length"), "length"); err != nil {
		return in, err
	}
	if in.Width, err = parsePositiveFloat(q.Get("width"), "width"); err != nil {
		return in, err
	}
	if raw := q.Get("workers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return in, fmt.Errorf("workers debe ser un entero mayor a 0")
		}
		in.Labor.Workers = n
	}
	if raw := q.Get("daily_wage"); raw != "" {
		if in.Labor.DailyWage, err = parseNonNegativeFloat(raw, "daily_wage"); err != nil {
			return in, err
		}
	}
	if raw := q.Get("margin_percent"); raw != "" {
		if in.Budget.MarginPercent, err = parsePercent(raw, "margin_percent"); err != nil {
			return in, err
		}
	}
	if raw := q.Get("tax_percent"); raw != "" {
		if in.Budget.TaxPercent, err = parsePercent(raw, "tax_percent"); err != nil {
			return in, err
		}
		in.Budget.TaxEnabled = true
	}
	if raw := q.Get("depth"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || !layout.DepthClass(d).Valid() {
			return in, fmt.Errorf("depth debe ser 15, 20 o 25")
		}
		in.Options.Distribution = map[layout.DepthClass]int{layout.DepthClass(d): 1}
	}
	return in, nil
}

func parseNonNegativeFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s debe ser numérico", field)
	}
	if value < 0 {
		return 0, fmt.Errorf("%s debe ser mayor o igual a 0", field)
	}
	return value, nil
}

func parsePercent(raw, field string) (float64, error) {
	value, err := parseNonNegativeFloat(raw, field)
	if err != nil {
		return 0, err
	}
	if value > 100 {
		return 0, fmt.Errorf("%s debe estar entre 0 y 100", field)
	}
	return value, nil
}

func parsePositiveFloat(raw, field string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s debe ser numérico", field)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s debe ser mayor a 0", field)
	}
	return value, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("el cuerpo de la solicitud está vacío")
		}
		return fmt.Errorf("JSON inválido: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps domain and storage errors to status codes.
func (s *server) writeStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" no encontrado")
	case errors.Is(err, store.ErrInvalidProject), estimate.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "what", what, "error", err)
		writeError(w, http.StatusInternalServerError, "error interno")
	}
}
