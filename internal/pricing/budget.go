package pricing

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

var ErrInvalidBudget = errors.New("invalid budget parameters")

// BudgetParams are the commercial terms applied on top of the system estimate.
type BudgetParams struct {
	OverheadFixed      float64 `json:"overhead_fixed" yaml:"overhead_fixed"`
	OverheadPercent    float64 `json:"overhead_percent" yaml:"overhead_percent"`
	ContingencyPercent float64 `json:"contingency_percent" yaml:"contingency_percent"`
	MarginPercent      float64 `json:"margin_percent" yaml:"margin_percent"`
	TaxEnabled         bool    `json:"tax_enabled" yaml:"tax_enabled"`
	TaxPercent         float64 `json:"tax_percent" yaml:"tax_percent"`
	DeliveryCost       float64 `json:"delivery_cost" yaml:"delivery_cost"`
}

// Validate rejects negative or non-finite amounts and percentages.
func (p BudgetParams) Validate() error {
	var err error
	for name, v := range map[string]float64{
		"overhead_fixed":      p.OverheadFixed,
		"overhead_percent":    p.OverheadPercent,
		"contingency_percent": p.ContingencyPercent,
		"margin_percent":      p.MarginPercent,
		"tax_percent":         p.TaxPercent,
		"delivery_cost":       p.DeliveryCost,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			err = multierr.Append(err, fmt.Errorf("%w: %s=%v", ErrInvalidBudget, name, v))
		}
	}
	return err
}

// BudgetLine is one priced concept of the client budget.
type BudgetLine struct {
	Concept   string  `json:"concept"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Amount    float64 `json:"amount"`
}

// BudgetBreakdown contains the intermediate values of the budget.
type BudgetBreakdown struct {
	MaterialCost float64 `json:"material_cost"`
	LaborCost    float64 `json:"labor_cost"`
	Discount     float64 `json:"discount"`
	Subtotal     float64 `json:"subtotal"`
	Overhead     float64 `json:"overhead"`
	Contingency  float64 `json:"contingency"`
	DeliveryCost float64 `json:"delivery_cost"`
	Margin       float64 `json:"margin"`
	Tax          float64 `json:"tax"`
}

// BudgetTotals contains roll-up values of the budget.
type BudgetTotals struct {
	Total float64 `json:"total"`
}

// BudgetResult groups the client budget lines, breakdown and totals.
type BudgetResult struct {
	Lines     []BudgetLine    `json:"lines"`
	Breakdown BudgetBreakdown `json:"breakdown"`
	Totals    BudgetTotals    `json:"totals"`
}

// Budget turns the system side of a comparison into a client budget. When the
// cost cap applied, the difference is listed as a discount line so the subtotal
// matches the compared system total.
func Budget(cmp Comparison, prices PriceTable, params BudgetParams) BudgetResult {
	sys := cmp.System
	lines := []BudgetLine{
		line("Cemento", KeyCement, float64(sys.CementBags), prices.Cement),
		line("Arena", KeySand, sys.Sand, prices.Sand),
		line("Grava", KeyGravel, sys.Gravel, prices.Gravel),
		line("Agua", KeyWater, sys.WaterLiters, prices.Water),
		line(fmt.Sprintf("Vigueta peralte %d", cmp.Depth), joistKey(cmp), sys.JoistMeters, prices.Joist(cmp.Depth)),
		line("Bovedilla", KeyVault, float64(sys.VaultPieces), prices.Vault),
		line("Malla electrosoldada", KeyMesh, sys.MeshArea, prices.Mesh),
	}

	materialCost := 0.0
	for _, l := range lines {
		materialCost += l.Amount
	}

	laborCost := sys.Costs.Labor
	if laborCost > 0 {
		jornales := float64(sys.Days * sys.Workers)
		lines = append(lines, BudgetLine{
			Concept:   "Mano de obra",
			Unit:      "jornal",
			Quantity:  jornales,
			UnitPrice: laborCost / jornales,
			Amount:    laborCost,
		})
	}

	discount := 0.0
	if cmp.Capped {
		discount = cmp.UncappedSystemTotal - sys.Costs.Total
		lines = append(lines, BudgetLine{
			Concept:  "Bonificación por sistema",
			Quantity: 1,
			Amount:   -discount,
		})
	}

	subtotal := materialCost + laborCost - discount
	overhead := params.OverheadFixed + subtotal*(params.OverheadPercent/100.0)
	contingency := subtotal * (params.ContingencyPercent / 100.0)
	margin := (params.MarginPercent / 100.0) * (subtotal + overhead + contingency)

	tax := 0.0
	if params.TaxEnabled {
		tax = (params.TaxPercent / 100.0) * (subtotal + overhead + contingency + margin)
	}

	total := subtotal + overhead + contingency + params.DeliveryCost + margin + tax

	return BudgetResult{
		Lines: lines,
		Breakdown: BudgetBreakdown{
			MaterialCost: materialCost,
			LaborCost:    laborCost,
			Discount:     discount,
			Subtotal:     subtotal,
			Overhead:     overhead,
			Contingency:  contingency,
			DeliveryCost: params.DeliveryCost,
			Margin:       margin,
			Tax:          tax,
		},
		Totals: BudgetTotals{Total: total},
	}
}

func line(concept string, key Key, qty, unitPrice float64) BudgetLine {
	return BudgetLine{
		Concept:   concept,
		Unit:      key.Unit(),
		Quantity:  qty,
		UnitPrice: unitPrice,
		Amount:    qty * unitPrice,
	}
}

func joistKey(cmp Comparison) Key {
	return Key(fmt.Sprintf("joist_%d", cmp.Depth))
}
