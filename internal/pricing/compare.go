package pricing

import (
	"math"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/layout"
)

// Coefficients of the comparison model. These are fixed modelling constants,
// not derived from the layout geometry.
const (
	TraditionalThickness   = 0.10 // m of solid slab
	TraditionalWasteFactor = 1.02
	CementBagsPerM3        = 8.0
	SandPerM3              = 0.5415 // m³ per m³ of concrete
	GravelPerM3            = 0.646
	WaterLitersPerM3       = 237.5

	TraditionalKgPerM2 = 288.0
	SystemKgPerM2      = 180.0

	// SystemConcreteFactor scales the traditional volume to the joist-and-vault
	// system. It is a fixed modelling ratio kept identical across every caller.
	SystemConcreteFactor = 0.70

	// SystemCostCap is a business rule: the system total is never reported above
	// this fraction of the traditional total, whatever the input prices.
	SystemCostCap = 0.70

	TraditionalM2PerWorkerDay = 5.0
	SystemM2PerWorkerDay      = 10.0

	DefaultWorkers = 4
)

// LaborParams describes the crew used for the schedule and labor cost.
type LaborParams struct {
	Workers   int     `json:"workers" yaml:"workers"`
	DailyWage float64 `json:"daily_wage" yaml:"daily_wage"`
}

func (l LaborParams) workers() int {
	if l.Workers <= 0 {
		return DefaultWorkers
	}
	return l.Workers
}

// CostBreakdown itemises one side of the comparison.
type CostBreakdown struct {
	Concrete float64 `json:"concrete"`
	Joists   float64 `json:"joists"`
	Vaults   float64 `json:"vaults"`
	Mesh     float64 `json:"mesh"`
	Labor    float64 `json:"labor"`
	Total    float64 `json:"total"`
}

// Side is the quantity, weight, time and cost estimate of one construction method.
type Side struct {
	ConcreteVolume float64       `json:"concrete_volume"`
	CementBags     int           `json:"cement_bags"`
	Sand           float64       `json:"sand"`
	Gravel         float64       `json:"gravel"`
	WaterLiters    float64       `json:"water_liters"`
	Joists         int           `json:"joists"`
	JoistMeters    float64       `json:"joist_meters"`
	VaultPieces    int           `json:"vault_pieces"`
	MeshArea       float64       `json:"mesh_area"`
	Weight         float64       `json:"weight"`
	Days           int           `json:"days"`
	Workers        int           `json:"workers"`
	Costs          CostBreakdown `json:"costs"`
}

// Savings holds traditional minus system deltas. Percentages are relative to
// the traditional value and are zero when that value is zero.
type Savings struct {
	Concrete        float64 `json:"concrete"`
	ConcretePercent float64 `json:"concrete_percent"`
	Cost            float64 `json:"cost"`
	CostPercent     float64 `json:"cost_percent"`
	Weight          float64 `json:"weight"`
	WeightPercent   float64 `json:"weight_percent"`
	Days            int     `json:"days"`
	TimePercent     float64 `json:"time_percent"`
}

// Comparison pairs the traditional slab with the joist-and-vault system.
// Capped is set when SystemCostCap lowered the system total; UncappedSystemTotal
// keeps the figure the prices produced.
type Comparison struct {
	Area                float64           `json:"area"`
	Depth               layout.DepthClass `json:"depth"`
	Traditional         Side              `json:"traditional"`
	System              Side              `json:"system"`
	Savings             Savings           `json:"savings"`
	Capped              bool              `json:"capped"`
	UncappedSystemTotal float64           `json:"uncapped_system_total"`
}

// Compare estimates the traditional baseline from the footprint alone and the
// system from the layout, then applies the SystemCostCap.
func Compare(l layout.Result, prices PriceTable, labor LaborParams) Comparison {
	area := l.Area()
	workers := labor.workers()

	tradVolume := area * TraditionalThickness * TraditionalWasteFactor
	trad := concreteSide(tradVolume, prices)
	trad.Weight = area * TraditionalKgPerM2
	trad.Days = scheduleDays(area, workers, TraditionalM2PerWorkerDay)
	trad.Workers = workers
	trad.Costs.Labor = float64(trad.Days*workers) * labor.DailyWage
	trad.Costs.Total = trad.Costs.Concrete + trad.Costs.Labor

	sys := concreteSide(tradVolume*SystemConcreteFactor, prices)
	sys.Joists = l.Totals.Joists
	sys.JoistMeters = l.Totals.SuppliedJoistMeters
	sys.VaultPieces = l.Totals.VaultPieces
	sys.MeshArea = l.Totals.MeshArea
	sys.Weight = area * SystemKgPerM2
	sys.Days = scheduleDays(area, workers, SystemM2PerWorkerDay)
	sys.Workers = workers
	sys.Costs.Joists = sys.JoistMeters * prices.Joist(l.Depth)
	sys.Costs.Vaults = float64(sys.VaultPieces) * prices.Vault
	sys.Costs.Mesh = sys.MeshArea * prices.Mesh
	sys.Costs.Labor = float64(sys.Days*workers) * labor.DailyWage
	sys.Costs.Total = sys.Costs.Concrete + sys.Costs.Joists + sys.Costs.Vaults + sys.Costs.Mesh + sys.Costs.Labor

	cmp := Comparison{
		Area:                area,
		Depth:               l.Depth,
		Traditional:         trad,
		System:              sys,
		UncappedSystemTotal: sys.Costs.Total,
	}

	if limit := trad.Costs.Total * SystemCostCap; cmp.System.Costs.Total > limit {
		cmp.System.Costs.Total = limit
		cmp.Capped = true
	}

	cmp.Savings = Savings{
		Concrete:        trad.ConcreteVolume - cmp.System.ConcreteVolume,
		ConcretePercent: percentOf(trad.ConcreteVolume-cmp.System.ConcreteVolume, trad.ConcreteVolume),
		Cost:            trad.Costs.Total - cmp.System.Costs.Total,
		CostPercent:     percentOf(trad.Costs.Total-cmp.System.Costs.Total, trad.Costs.Total),
		Weight:          trad.Weight - cmp.System.Weight,
		WeightPercent:   percentOf(trad.Weight-cmp.System.Weight, trad.Weight),
		Days:            trad.Days - cmp.System.Days,
		TimePercent:     percentOf(float64(trad.Days-cmp.System.Days), float64(trad.Days)),
	}
	return cmp
}

func concreteSide(volume float64, prices PriceTable) Side {
	s := Side{
		ConcreteVolume: volume,
		CementBags:     int(math.Ceil(volume*CementBagsPerM3 - 1e-9)),
		Sand:           volume * SandPerM3,
		Gravel:         volume * GravelPerM3,
		WaterLiters:    volume * WaterLitersPerM3,
	}
	s.Costs.Concrete = float64(s.CementBags)*prices.Cement +
		s.Sand*prices.Sand +
		s.Gravel*prices.Gravel +
		s.WaterLiters*prices.Water
	return s
}

func scheduleDays(area float64, workers int, rate float64) int {
	if area <= 0 {
		return 0
	}
	return int(math.Ceil(area / (float64(workers) * rate)))
}

func percentOf(delta, base float64) float64 {
	if base == 0 {
		return 0
	}
	return delta / base * 100
}
