package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/estimate"
)

// Sheet names of the exported workbook, in order.
const (
	SheetSummary = "Resumen"
	SheetJoists  = "Viguetas"
	SheetVaults  = "Bovedillas"
	SheetBudget  = "Presupuesto"
)

// WriteXLSX writes the estimate as a workbook with one sheet per concern.
func WriteXLSX(w io.Writer, h Header, est estimate.Estimate) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetJoists, SheetVaults, SheetBudget} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	writers := []struct {
		sheet string
		rows  [][]any
	}{
		{SheetSummary, summaryRows(h, est)},
		{SheetJoists, joistRows(est)},
		{SheetVaults, vaultRows(est)},
		{SheetBudget, budgetRows(h, est)},
	}
	for _, sw := range writers {
		if err := writeRows(f, sw.sheet, sw.rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream %s: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", sheet, err)
	}
	return nil
}

func summaryRows(h Header, est estimate.Estimate) [][]any {
	l := est.Layout
	cmp := est.Comparison
	return [][]any{
		{"Proyecto", h.Project},
		{"Cliente", h.Client},
		{"Largo (m)", l.Length},
		{"Ancho (m)", l.Width},
		{"Área (m²)", l.Area()},
		{"Peralte (cm)", int(l.Depth)},
		{"Separación (m)", l.Spacing},
		{"Desperdicio vigueta (%)", l.WastePercent},
		{},
		{"Concepto", "Tradicional", "Sistema", "Ahorro", "Ahorro (%)"},
		{"Concreto (m³)", cmp.Traditional.ConcreteVolume, cmp.System.ConcreteVolume, cmp.Savings.Concrete, cmp.Savings.ConcretePercent},
		{"Costo (" + h.currency() + ")", cmp.Traditional.Costs.Total, cmp.System.Costs.Total, cmp.Savings.Cost, cmp.Savings.CostPercent},
		{"Peso (kg)", cmp.Traditional.Weight, cmp.System.Weight, cmp.Savings.Weight, cmp.Savings.WeightPercent},
		{"Tiempo (días)", cmp.Traditional.Days, cmp.System.Days, cmp.Savings.Days, cmp.Savings.TimePercent},
	}
}

func joistRows(est estimate.Estimate) [][]any {
	l := est.Layout
	rows := [][]any{{"#", "Posición (m)", "Longitud (m)", "Peralte (cm)", "Piezas de stock (m)", "Traslapes"}}
	bars := fmt.Sprint(l.Stock.Bars)
	for _, j := range l.Joists {
		rows = append(rows, []any{j.Index + 1, j.Position, j.Length, int(j.Depth), bars, l.Stock.Splices})
	}
	return rows
}

func vaultRows(est estimate.Estimate) [][]any {
	rows := [][]any{{"Fila", "Desde (m)", "Ancho de bahía (m)", "Disponible (m)", "Completas", "Ajuste (m)", "Residual (m)"}}
	for _, r := range est.Layout.Rows {
		full, adjustment := 0, 0.0
		for _, p := range r.Pieces {
			if p.IsAdjustment {
				adjustment = p.Width
			} else {
				full++
			}
		}
		rows = append(rows, []any{r.Index + 1, r.Offset, r.BayWidth, r.Available, full, adjustment, r.Residual})
	}
	return rows
}

func budgetRows(h Header, est estimate.Estimate) [][]any {
	rows := [][]any{{"Concepto", "Unidad", "Cantidad", "Precio unitario", "Importe"}}
	for _, line := range est.Budget.Lines {
		rows = append(rows, []any{line.Concept, line.Unit, line.Quantity, line.UnitPrice, line.Amount})
	}
	bd := est.Budget.Breakdown
	rows = append(rows,
		[]any{},
		[]any{"Subtotal", "", "", "", bd.Subtotal},
		[]any{"Indirectos", "", "", "", bd.Overhead},
		[]any{"Imprevistos", "", "", "", bd.Contingency},
		[]any{"Flete", "", "", "", bd.DeliveryCost},
		[]any{"Utilidad", "", "", "", bd.Margin},
		[]any{"IVA", "", "", "", bd.Tax},
		[]any{"Total (" + h.currency() + ")", "", "", "", est.Budget.Totals.Total},
	)
	return rows
}
