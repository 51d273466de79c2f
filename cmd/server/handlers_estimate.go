package main

import (
	"net/http"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/estimate"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/layout"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
)

type layoutInput struct {
	Length  float64        `json:"length"`
	Width   float64        `json:"width"`
	Options layout.Options `json:"options"`
}

type wallInput struct {
	Length float64          `json:"length"`
	Height float64          `json:"height"`
	Panel  layout.PanelSize `json:"panel"`
}

func (s *server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var in layoutInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondLayout(w, in)
}

func (s *server) handleLayoutQuery(w http.ResponseWriter, r *http.Request) {
	q, err := parseEstimateQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondLayout(w, layoutInput{Length: q.Length, Width: q.Width, Options: q.Options})
}

func (s *server) respondLayout(w http.ResponseWriter, in layoutInput) {
	res, err := layout.PlanLayout(in.Length, in.Width, in.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleWall(w http.ResponseWriter, r *http.Request) {
	var in wallInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Panel == (layout.PanelSize{}) {
		in.Panel = layout.DefaultPanelSize()
	}

	res, err := layout.PlanWall(in.Length, in.Height, in.Panel)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var in estimateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondEstimate(w, r, in)
}

func (s *server) handleEstimateQuery(w http.ResponseWriter, r *http.Request) {
	in, err := parseEstimateQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondEstimate(w, r, in)
}

func (s *server) respondEstimate(w http.ResponseWriter, r *http.Request, in estimateInput) {
	est, err := s.runEstimate(r, in, "preview")
	if err != nil {
		s.writeStoreError(w, err, "estimación")
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *server) runEstimate(r *http.Request, in estimateInput, source string) (estimate.Estimate, error) {
	req, err := s.buildRequest(r, in)
	if err != nil {
		return estimate.Estimate{}, err
	}
	est, err := estimate.Run(req)
	if err != nil {
		return estimate.Estimate{}, err
	}
	s.metrics.EstimateComputed(source)
	return est, nil
}

func (s *server) handlePricesGet(w http.ResponseWriter, r *http.Request) {
	prices, err := s.store.Prices(r.Context())
	if err != nil {
		s.writeStoreError(w, err, "precios")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currency": s.currency,
		"prices":   prices,
		"items":    prices.Items(),
	})
}

func (s *server) handlePricesPut(w http.ResponseWriter, r *http.Request) {
	var prices pricing.PriceTable
	if err := decodeJSON(w, r, &prices); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := prices.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SavePrices(r.Context(), prices); err != nil {
		s.writeStoreError(w, err, "precios")
		return
	}
	writeJSON(w, http.StatusOK, prices)
}
