package layout

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
)

// DepthClass is the joist depth ("peralte") in centimetres.
type DepthClass int

const (
	Depth15 DepthClass = 15
	Depth20 DepthClass = 20
	Depth25 DepthClass = 25
)

// Geometry defaults in metres.
const (
	DefaultChainWidth          = 0.15
	DefaultAxisSpacing         = 0.70
	DefaultVaultLength         = 1.22
	DefaultAdjustmentTolerance = 0.01

	// Explicit axis spacing or vault length below MinModule is rejected, and
	// no slab or wall side may exceed MaxSide; both bound the piece count.
	MinModule = 0.10
	MaxSide   = 100.0

	JoistWidth        = 0.12 // bottom flange of a precast joist
	CompressionLayer  = 0.05
	MeshOverlapFactor = 1.10

	epsilon = 1e-9
)

var (
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrInvalidOptions    = errors.New("invalid layout options")
	ErrDegenerateSpan    = errors.New("usable span is not positive")
)

var depthClasses = [...]DepthClass{Depth15, Depth20, Depth25}

// Options tunes the planner. Zero values take the package defaults.
type Options struct {
	ChainWidth          float64            `json:"chain_width,omitempty" yaml:"chain_width"`
	AxisSpacing         float64            `json:"axis_spacing,omitempty" yaml:"axis_spacing"`
	VaultLength         float64            `json:"vault_length,omitempty" yaml:"vault_length"`
	AdjustmentTolerance float64            `json:"adjustment_tolerance,omitempty" yaml:"adjustment_tolerance"`
	Distribution        map[DepthClass]int `json:"distribution,omitempty" yaml:"distribution"`
}

// DefaultOptions returns the standard 0.15 m chain, 0.70 m axis and 1.22 m vault setup.
func DefaultOptions() Options {
	return Options{
		ChainWidth:          DefaultChainWidth,
		AxisSpacing:         DefaultAxisSpacing,
		VaultLength:         DefaultVaultLength,
		AdjustmentTolerance: DefaultAdjustmentTolerance,
	}
}

func (o Options) withDefaults() Options {
	if o.ChainWidth == 0 {
		o.ChainWidth = DefaultChainWidth
	}
	if o.AxisSpacing == 0 {
		o.AxisSpacing = DefaultAxisSpacing
	}
	if o.VaultLength == 0 {
		o.VaultLength = DefaultVaultLength
	}
	if o.AdjustmentTolerance == 0 {
		o.AdjustmentTolerance = DefaultAdjustmentTolerance
	}
	return o
}

// Validate reports every malformed option at once.
func (o Options) Validate() error {
	var err error
	check := func(name string, v float64) {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			err = multierr.Append(err, fmt.Errorf("%w: %s=%v", ErrInvalidOptions, name, v))
		}
	}
	module := func(name string, v float64) {
		if v > 0 && v < MinModule {
			err = multierr.Append(err, fmt.Errorf("%w: %s=%v is below %.2f m", ErrInvalidOptions, name, v, MinModule))
		}
	}
	check("chain_width", o.ChainWidth)
	check("axis_spacing", o.AxisSpacing)
	check("vault_length", o.VaultLength)
	check("adjustment_tolerance", o.AdjustmentTolerance)
	module("axis_spacing", o.AxisSpacing)
	module("vault_length", o.VaultLength)

	for class, count := range o.Distribution {
		if !class.Valid() {
			err = multierr.Append(err, fmt.Errorf("%w: unknown depth class %d", ErrInvalidOptions, class))
		}
		if count < 0 {
			err = multierr.Append(err, fmt.Errorf("%w: negative count %d for depth class %d", ErrInvalidOptions, count, class))
		}
	}
	return err
}

// Valid reports whether d is one of the manufactured depth classes.
func (d DepthClass) Valid() bool {
	for _, c := range depthClasses {
		if c == d {
			return true
		}
	}
	return false
}

// DepthClassFor selects the depth class from the clear span.
func DepthClassFor(clearSpan float64) DepthClass {
	switch {
	case clearSpan <= 4:
		return Depth15
	case clearSpan <= 5:
		return Depth20
	default:
		return Depth25
	}
}

// Joist is one precast beam bearing on the perimeter chain at both ends.
type Joist struct {
	Index    int        `json:"index"`
	Position float64    `json:"position"` // centreline offset along the longest side
	Length   float64    `json:"length"`
	Depth    DepthClass `json:"depth"`
}

// VaultPiece is a single infill block. Offset is measured from the inner face of the chain.
type VaultPiece struct {
	Offset       float64 `json:"offset"`
	Width        float64 `json:"width"`
	IsAdjustment bool    `json:"is_adjustment"`
}

// VaultRow is the infill of one bay. Pieces plus Residual cover Available exactly;
// Residual is a sliver under the adjustment tolerance closed by the pour.
type VaultRow struct {
	Index     int          `json:"index"`
	Offset    float64      `json:"offset"`
	BayWidth  float64      `json:"bay_width"`
	Available float64      `json:"available"`
	Pieces    []VaultPiece `json:"pieces"`
	Residual  float64      `json:"residual"`
}

// Covered returns the summed width of the row's pieces.
func (r VaultRow) Covered() float64 {
	var sum float64
	for _, p := range r.Pieces {
		sum += p.Width
	}
	return sum
}

// Totals aggregates the bill of materials of a layout.
type Totals struct {
	Joists              int     `json:"joists"`
	VaultPieces         int     `json:"vault_pieces"`
	FullVaultPieces     int     `json:"full_vault_pieces"`
	AdjustmentPieces    int     `json:"adjustment_pieces"`
	JoistMeters         float64 `json:"joist_meters"`
	SuppliedJoistMeters float64 `json:"supplied_joist_meters"`
	VaultVolume         float64 `json:"vault_volume"`
	MeshArea            float64 `json:"mesh_area"`
}

// Result is a fully positioned joist-and-vault layout.
type Result struct {
	Length          float64    `json:"length"`
	Width           float64    `json:"width"`
	LongestSide     float64    `json:"longest_side"`
	ShortestSide    float64    `json:"shortest_side"`
	UsableSpan      float64    `json:"usable_span"`
	Spacing         float64    `json:"spacing"`
	Depth           DepthClass `json:"depth"`
	MixedRequested  bool       `json:"mixed_requested"`
	Joists          []Joist    `json:"joists"`
	Rows            []VaultRow `json:"rows"`
	Stock           StockPlan  `json:"stock"`
	Totals          Totals     `json:"totals"`
	WastePercent    float64    `json:"waste_percent"`
	Recommendations []string   `json:"recommendations"`
}

// Area is the slab footprint in m².
func (r Result) Area() float64 {
	return r.Length * r.Width
}

// PlanLayout positions joists and vault pieces for a rectangular slab.
// It never mutates opts and keeps no state between calls.
func PlanLayout(length, width float64, opts Options) (Result, error) {
	if !validSide(length) || !validSide(width) {
		return Result{}, fmt.Errorf("%w: length=%v width=%v", ErrInvalidDimensions, length, width)
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	opts = opts.withDefaults()

	longest := math.Max(length, width)
	shortest := math.Min(length, width)
	usable := longest - 2*opts.ChainWidth
	available := shortest - 2*opts.ChainWidth
	if usable <= epsilon || available <= epsilon {
		return Result{}, fmt.Errorf("%w: %.2f x %.2f m with a %.2f m chain", ErrDegenerateSpan, length, width, opts.ChainWidth)
	}

	depth, mixed := resolveDepth(shortest, opts.Distribution)

	numJoists := int(math.Floor(usable/opts.AxisSpacing + epsilon))
	spacing := usable / float64(numJoists+1)

	joists := make([]Joist, numJoists)
	for i := range joists {
		joists[i] = Joist{
			Index:    i,
			Position: opts.ChainWidth + spacing*float64(i+1),
			Length:   shortest,
			Depth:    depth,
		}
	}

	rows := make([]VaultRow, numJoists+1)
	totals := Totals{Joists: numJoists}
	for i := range rows {
		pieces, residual := tileRow(available, opts.VaultLength, opts.AdjustmentTolerance)
		rows[i] = VaultRow{
			Index:     i,
			Offset:    opts.ChainWidth + spacing*float64(i),
			BayWidth:  spacing,
			Available: available,
			Pieces:    pieces,
			Residual:  residual,
		}

		clearWidth := spacing - JoistWidth/2*float64(boundingJoists(i, numJoists))
		if clearWidth < 0 {
			clearWidth = 0
		}
		for _, p := range pieces {
			if p.IsAdjustment {
				totals.AdjustmentPieces++
			} else {
				totals.FullVaultPieces++
			}
			totals.VaultVolume += p.Width * clearWidth * vaultHeight(depth)
		}
	}
	totals.VaultPieces = totals.FullVaultPieces + totals.AdjustmentPieces

	stock := PlanStock(shortest)
	totals.JoistMeters = float64(numJoists) * shortest
	totals.SuppliedJoistMeters = float64(numJoists) * stock.Supplied
	totals.MeshArea = length * width * MeshOverlapFactor

	waste := 0.0
	if numJoists > 0 {
		waste = stock.WastePercent()
	}

	res := Result{
		Length:         length,
		Width:          width,
		LongestSide:    longest,
		ShortestSide:   shortest,
		UsableSpan:     usable,
		Spacing:        spacing,
		Depth:          depth,
		MixedRequested: mixed,
		Joists:         joists,
		Rows:           rows,
		Stock:          stock,
		Totals:         totals,
		WastePercent:   waste,
	}
	res.Recommendations = recommend(res)
	return res, nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func validSide(v float64) bool {
	return positiveFinite(v) && v <= MaxSide
}

// resolveDepth applies the dominant non-zero class of a custom distribution,
// preferring the deeper class on ties. An empty distribution uses the span rule.
func resolveDepth(shortest float64, dist map[DepthClass]int) (DepthClass, bool) {
	var (
		best      DepthClass
		bestCount int
		nonZero   int
	)
	for _, class := range depthClasses {
		count := dist[class]
		if count <= 0 {
			continue
		}
		nonZero++
		if count >= bestCount {
			best, bestCount = class, count
		}
	}
	if nonZero == 0 {
		return DepthClassFor(shortest), false
	}
	return best, nonZero > 1
}

func tileRow(available, vaultLength, tolerance float64) ([]VaultPiece, float64) {
	full := int(math.Floor(available/vaultLength + epsilon))
	remainder := available - float64(full)*vaultLength
	if remainder < 0 {
		remainder = 0
	}

	pieces := make([]VaultPiece, 0, full+1)
	for i := 0; i < full; i++ {
		pieces = append(pieces, VaultPiece{Offset: float64(i) * vaultLength, Width: vaultLength})
	}
	if remainder > tolerance {
		pieces = append(pieces, VaultPiece{
			Offset:       float64(full) * vaultLength,
			Width:        remainder,
			IsAdjustment: true,
		})
		return pieces, 0
	}
	return pieces, remainder
}

// boundingJoists counts the joists flanking bay i; end bays lean on the chain.
func boundingJoists(i, numJoists int) int {
	n := 0
	if i > 0 {
		n++
	}
	if i < numJoists {
		n++
	}
	return n
}

func vaultHeight(d DepthClass) float64 {
	return float64(d)/100 - CompressionLayer
}
