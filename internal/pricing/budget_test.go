package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cementOnly(bags int) Comparison {
	return Comparison{
		Depth: 15,
		System: Side{
			CementBags: bags,
			Costs:      CostBreakdown{Concrete: float64(bags) * 10, Total: float64(bags) * 10},
		},
	}
}

func TestBudget_MaterialLinesOnly(t *testing.T) {
	result := Budget(cementOnly(10), PriceTable{Cement: 10}, BudgetParams{})

	assert.InDelta(t, 100, result.Breakdown.MaterialCost, delta)
	assert.InDelta(t, 100, result.Breakdown.Subtotal, delta)
	assert.InDelta(t, 100, result.Totals.Total, delta)
	require.Len(t, result.Lines, 7)
	assert.Equal(t, "Vigueta peralte 15", result.Lines[4].Concept)
	assert.Equal(t, "ml", result.Lines[4].Unit)
}

func TestBudget_MarginPercent_ZeroAndThirty(t *testing.T) {
	withoutMargin := Budget(cementOnly(10), PriceTable{Cement: 10}, BudgetParams{MarginPercent: 0})
	withMargin := Budget(cementOnly(10), PriceTable{Cement: 10}, BudgetParams{MarginPercent: 30})

	assert.Zero(t, withoutMargin.Breakdown.Margin)
	assert.InDelta(t, 30, withMargin.Breakdown.Margin, delta)
	assert.InDelta(t, 100, withoutMargin.Totals.Total, delta)
	assert.InDelta(t, 130, withMargin.Totals.Total, delta)
}

func TestBudget_TaxEnabledOnAndOff(t *testing.T) {
	withoutTax := Budget(cementOnly(10), PriceTable{Cement: 10}, BudgetParams{MarginPercent: 30, TaxPercent: 16})
	withTax := Budget(cementOnly(10), PriceTable{Cement: 10}, BudgetParams{MarginPercent: 30, TaxEnabled: true, TaxPercent: 16})

	assert.Zero(t, withoutTax.Breakdown.Tax)
	assert.InDelta(t, 20.8, withTax.Breakdown.Tax, delta)
	assert.InDelta(t, 130, withoutTax.Totals.Total, delta)
	assert.InDelta(t, 150.8, withTax.Totals.Total, delta)
}

func TestBudget_OverheadContingencyAndDelivery(t *testing.T) {
	params := BudgetParams{
		OverheadFixed:      10,
		OverheadPercent:    20,
		ContingencyPercent: 5,
		DeliveryCost:       15,
	}

	result := Budget(cementOnly(10), PriceTable{Cement: 10}, params)

	assert.InDelta(t, 30, result.Breakdown.Overhead, delta)
	assert.InDelta(t, 5, result.Breakdown.Contingency, delta)
	assert.InDelta(t, 150, result.Totals.Total, delta)
}

func TestBudget_LaborLine(t *testing.T) {
	cmp := cementOnly(0)
	cmp.System.Days = 2
	cmp.System.Workers = 4
	cmp.System.Costs.Labor = 800

	result := Budget(cmp, PriceTable{}, BudgetParams{})

	last := result.Lines[len(result.Lines)-1]
	assert.Equal(t, "Mano de obra", last.Concept)
	assert.InDelta(t, 8, last.Quantity, delta, "jornales")
	assert.InDelta(t, 100, last.UnitPrice, delta, "wage")
	assert.InDelta(t, 800, result.Totals.Total, delta)
}

func TestBudget_CappedComparisonAddsDiscount(t *testing.T) {
	cmp := cementOnly(10)
	cmp.Capped = true
	cmp.UncappedSystemTotal = 100
	cmp.System.Costs.Total = 70

	result := Budget(cmp, PriceTable{Cement: 10}, BudgetParams{})

	assert.InDelta(t, 30, result.Breakdown.Discount, delta)
	assert.InDelta(t, 70, result.Breakdown.Subtotal, delta)
	last := result.Lines[len(result.Lines)-1]
	assert.Equal(t, "Bonificación por sistema", last.Concept)
	assert.InDelta(t, -30, last.Amount, delta)
}

func TestBudget_SubtotalMatchesComparedSystemTotal(t *testing.T) {
	prices := PriceTable{Cement: 220, Sand: 380, Gravel: 420, Water: 0.04, Joist20: 120, Vault: 22, Mesh: 35}
	cmp := Compare(planFiveByFive(t), prices, LaborParams{DailyWage: 450})

	result := Budget(cmp, prices, BudgetParams{})

	assert.InDelta(t, cmp.System.Costs.Total, result.Breakdown.Subtotal, delta)
}
