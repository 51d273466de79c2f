package layout

import (
	"fmt"
	"math"
)

// PanelSize is the nominal size of a wall panel in metres.
type PanelSize struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// DefaultPanelSize is the 1.22 x 2.44 m board.
func DefaultPanelSize() PanelSize {
	return PanelSize{Width: 1.22, Height: 2.44}
}

// WallResult is the panel take-off for one wall face.
type WallResult struct {
	Length       float64   `json:"length"`
	Height       float64   `json:"height"`
	Panel        PanelSize `json:"panel"`
	Columns      int       `json:"columns"`
	Rows         int       `json:"rows"`
	FullPanels   int       `json:"full_panels"`
	CutPanels    int       `json:"cut_panels"`
	TotalPanels  int       `json:"total_panels"`
	CutWidth     float64   `json:"cut_width"`
	CutHeight    float64   `json:"cut_height"`
	SuppliedArea float64   `json:"supplied_area"`
	CoveredArea  float64   `json:"covered_area"`
	WastePercent float64   `json:"waste_percent"`
}

// PlanWall tiles a wall face with panels, cutting the last column and row.
func PlanWall(length, height float64, panel PanelSize) (WallResult, error) {
	if !validSide(length) || !validSide(height) {
		return WallResult{}, fmt.Errorf("%w: length=%v height=%v", ErrInvalidDimensions, length, height)
	}
	if !positiveFinite(panel.Width) || !positiveFinite(panel.Height) || panel.Width < MinModule || panel.Height < MinModule {
		return WallResult{}, fmt.Errorf("%w: panel %vx%v", ErrInvalidOptions, panel.Width, panel.Height)
	}

	cols, cutW := tileAxis(length, panel.Width)
	rows, cutH := tileAxis(height, panel.Height)

	fullCols, fullRows := cols, rows
	if cutW > 0 {
		fullCols--
	}
	if cutH > 0 {
		fullRows--
	}

	total := cols * rows
	full := fullCols * fullRows
	supplied := float64(total) * panel.Width * panel.Height
	covered := length * height

	waste := 0.0
	if supplied > 0 {
		waste = math.Max(0, (supplied-covered)/supplied*100)
	}

	return WallResult{
		Length:       length,
		Height:       height,
		Panel:        panel,
		Columns:      cols,
		Rows:         rows,
		FullPanels:   full,
		CutPanels:    total - full,
		TotalPanels:  total,
		CutWidth:     cutW,
		CutHeight:    cutH,
		SuppliedArea: supplied,
		CoveredArea:  covered,
		WastePercent: waste,
	}, nil
}

// tileAxis returns the panel count along one axis and the width of the cut
// panel, zero when the last panel fits within the adjustment tolerance. A
// remainder no wider than the tolerance is left to the joint instead of cut.
func tileAxis(span, size float64) (int, float64) {
	n := int(math.Ceil(span/size - epsilon))
	last := span - float64(n-1)*size
	if n > 1 && last <= DefaultAdjustmentTolerance {
		return n - 1, 0
	}
	if last >= size-DefaultAdjustmentTolerance {
		return n, 0
	}
	return n, last
}
