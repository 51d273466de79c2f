package layout

import "fmt"

const (
	wasteWarningPercent = 15.0
	shortSpanLimit      = 3.0
)

func recommend(r Result) []string {
	out := make([]string, 0, 5)

	if r.WastePercent > wasteWarningPercent {
		out = append(out, fmt.Sprintf(
			"Desperdicio de vigueta de %.1f%%: considere ajustar el claro a un largo comercial (3, 4, 5 o 6 m).",
			r.WastePercent))
	}
	if r.ShortestSide > MaxStockLength {
		out = append(out, fmt.Sprintf(
			"El claro de %.2f m excede el largo comercial de %.0f m: cada vigueta requiere %d traslape(s) de %.2f m.",
			r.ShortestSide, MaxStockLength, r.Stock.Splices, LapSplice))
	}
	if r.ShortestSide < shortSpanLimit {
		out = append(out, fmt.Sprintf(
			"Claro menor a %.0f m: el peralte %d cm podría estar sobrado, revise el diseño.",
			shortSpanLimit, r.Depth))
	}
	if r.Totals.AdjustmentPieces > 0 {
		out = append(out, fmt.Sprintf(
			"Se requieren %d pieza(s) de ajuste (bovedilla cortada) para cerrar las hileras.",
			r.Totals.AdjustmentPieces))
	}
	if r.MixedRequested {
		out = append(out, fmt.Sprintf(
			"La distribución personalizada de peraltes se aplicó como peralte %d cm en todas las viguetas.",
			r.Depth))
	}
	return out
}
