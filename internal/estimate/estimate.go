// Package estimate runs the planner, the comparison and the client budget as
// one computation. Preview, save and export all go through Run so they can
// never disagree on a figure.
package estimate

import (
	"errors"

	"go.uber.org/multierr"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/layout"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/pricing"
)

// Request is everything a calculation depends on.
type Request struct {
	Length  float64              `json:"length"`
	Width   float64              `json:"width"`
	Options layout.Options       `json:"options"`
	Prices  pricing.PriceTable   `json:"prices"`
	Labor   pricing.LaborParams  `json:"labor"`
	Budget  pricing.BudgetParams `json:"budget"`
}

// Estimate is the full, serialisable result of a calculation.
type Estimate struct {
	Request    Request              `json:"request"`
	Layout     layout.Result        `json:"layout"`
	Comparison pricing.Comparison   `json:"comparison"`
	Budget     pricing.BudgetResult `json:"budget"`
}

// Run validates the request and computes the estimate.
func Run(req Request) (Estimate, error) {
	if err := multierr.Combine(req.Prices.Validate(), req.Budget.Validate()); err != nil {
		return Estimate{}, err
	}

	l, err := layout.PlanLayout(req.Length, req.Width, req.Options)
	if err != nil {
		return Estimate{}, err
	}

	cmp := pricing.Compare(l, req.Prices, req.Labor)
	return Estimate{
		Request:    req,
		Layout:     l,
		Comparison: cmp,
		Budget:     pricing.Budget(cmp, req.Prices, req.Budget),
	}, nil
}

// IsValidation reports whether err comes from bad input rather than a fault.
func IsValidation(err error) bool {
	for _, target := range []error{
		layout.ErrInvalidDimensions,
		layout.ErrInvalidOptions,
		layout.ErrDegenerateSpan,
		pricing.ErrInvalidPrice,
		pricing.ErrInvalidBudget,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
