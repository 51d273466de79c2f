package layout

import "math"

// Commercial joist stock, in metres.
const (
	LapSplice      = 0.30
	MaxStockLength = 6.0
)

var stockLengths = [...]float64{3, 4, 5, 6}

// StockLengths lists the commercial joist lengths, shortest first.
func StockLengths() []float64 {
	out := make([]float64, len(stockLengths))
	copy(out, stockLengths[:])
	return out
}

// StockPlan is the stock consumed to produce one joist.
type StockPlan struct {
	Required float64   `json:"required"`
	Bars     []float64 `json:"bars"`
	Splices  int       `json:"splices"`
	Supplied float64   `json:"supplied"`
}

// WastePercent is the share of supplied stock that does not end up as joist,
// lap lengths included.
func (p StockPlan) WastePercent() float64 {
	if p.Supplied <= 0 {
		return 0
	}
	w := (p.Supplied - p.Required) / p.Supplied * 100
	if w < epsilon {
		return 0
	}
	return w
}

// PlanStock picks the stock bars for a joist of the given length. Joists longer
// than the largest bar are spliced with a LapSplice overlap per joint.
func PlanStock(length float64) StockPlan {
	if length <= 0 {
		return StockPlan{}
	}
	if length <= MaxStockLength+epsilon {
		bar := smallestStock(length)
		return StockPlan{Required: length, Bars: []float64{bar}, Supplied: bar}
	}

	segments := int(math.Ceil((length-LapSplice)/(MaxStockLength-LapSplice) - epsilon))
	splices := segments - 1
	remaining := length + LapSplice*float64(splices) - MaxStockLength*float64(splices)

	bars := make([]float64, 0, segments)
	supplied := 0.0
	for i := 0; i < splices; i++ {
		bars = append(bars, MaxStockLength)
		supplied += MaxStockLength
	}
	last := smallestStock(remaining)
	bars = append(bars, last)
	supplied += last

	return StockPlan{Required: length, Bars: bars, Splices: splices, Supplied: supplied}
}

func smallestStock(length float64) float64 {
	for _, s := range stockLengths {
		if s >= length-epsilon {
			return s
		}
	}
	return MaxStockLength
}
