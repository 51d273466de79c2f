// Package report renders an estimate for the client: a plain-text budget for
// chat and e-mail, and an XLSX workbook with the full bill of materials.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/estimate"
)

// Header identifies the estimate in both formats.
type Header struct {
	Project  string
	Client   string
	Currency string
}

func (h Header) currency() string {
	if h.Currency == "" {
		return "MXN"
	}
	return h.Currency
}

// WriteText writes the budget as plain text.
func WriteText(w io.Writer, h Header, est estimate.Estimate) error {
	var b strings.Builder
	cur := h.currency()
	l := est.Layout
	cmp := est.Comparison

	title := "Presupuesto losa vigueta y bovedilla"
	if h.Project != "" {
		title += " - " + h.Project
	}
	fmt.Fprintln(&b, title)
	if h.Client != "" {
		fmt.Fprintf(&b, "Cliente: %s\n", h.Client)
	}
	fmt.Fprintf(&b, "Claro: %.2f x %.2f m (%.2f m²)\n", l.Length, l.Width, l.Area())
	fmt.Fprintf(&b, "Viguetas: %d de %.2f m, peralte %d cm, separación %.3f m\n",
		l.Totals.Joists, l.ShortestSide, l.Depth, l.Spacing)
	fmt.Fprintf(&b, "Bovedillas: %d (%d de ajuste)\n", l.Totals.VaultPieces, l.Totals.AdjustmentPieces)
	b.WriteString("\n")

	b.WriteString("Conceptos:\n")
	for _, line := range est.Budget.Lines {
		if line.Amount == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %.2f %s x %.2f = %.2f %s\n",
			line.Concept, line.Quantity, line.Unit, line.UnitPrice, line.Amount, cur)
	}
	b.WriteString("\n")

	bd := est.Budget.Breakdown
	fmt.Fprintf(&b, "Subtotal: %.2f %s\n", bd.Subtotal, cur)
	if bd.Overhead > 0 {
		fmt.Fprintf(&b, "Indirectos: %.2f %s\n", bd.Overhead, cur)
	}
	if bd.Contingency > 0 {
		fmt.Fprintf(&b, "Imprevistos: %.2f %s\n", bd.Contingency, cur)
	}
	if bd.DeliveryCost > 0 {
		fmt.Fprintf(&b, "Flete: %.2f %s\n", bd.DeliveryCost, cur)
	}
	if bd.Margin > 0 {
		fmt.Fprintf(&b, "Utilidad: %.2f %s\n", bd.Margin, cur)
	}
	if bd.Tax > 0 {
		fmt.Fprintf(&b, "IVA: %.2f %s\n", bd.Tax, cur)
	}
	fmt.Fprintf(&b, "Total: %.2f %s\n", est.Budget.Totals.Total, cur)
	b.WriteString("\n")

	b.WriteString("Comparativo contra losa maciza:\n")
	fmt.Fprintf(&b, "- Concreto: %.2f m³ vs %.2f m³ (ahorro %.1f%%)\n",
		cmp.System.ConcreteVolume, cmp.Traditional.ConcreteVolume, cmp.Savings.ConcretePercent)
	fmt.Fprintf(&b, "- Costo: %.2f vs %.2f %s (ahorro %.1f%%)\n",
		cmp.System.Costs.Total, cmp.Traditional.Costs.Total, cur, cmp.Savings.CostPercent)
	fmt.Fprintf(&b, "- Peso: %.0f kg vs %.0f kg (ahorro %.1f%%)\n",
		cmp.System.Weight, cmp.Traditional.Weight, cmp.Savings.WeightPercent)
	fmt.Fprintf(&b, "- Tiempo: %d vs %d días con %d trabajadores\n",
		cmp.System.Days, cmp.Traditional.Days, cmp.System.Workers)
	b.WriteString("\n")

	b.WriteString("Supuestos:\n")
	fmt.Fprintf(&b, "- Desperdicio de vigueta: %.1f%%\n", l.WastePercent)
	if cmp.Capped {
		b.WriteString("- Costo del sistema limitado al 70% del sistema tradicional\n")
	}
	for _, rec := range l.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
