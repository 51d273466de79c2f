package pricing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/layout"
)

// Key identifies a priced material.
type Key string

const (
	KeyCement  Key = "cement"
	KeySand    Key = "sand"
	KeyGravel  Key = "gravel"
	KeyWater   Key = "water"
	KeyJoist15 Key = "joist_15"
	KeyJoist20 Key = "joist_20"
	KeyJoist25 Key = "joist_25"
	KeyVault   Key = "vault"
	KeyMesh    Key = "mesh"
)

var ErrInvalidPrice = errors.New("invalid price")

// PriceTable holds unit prices. Every price defaults to zero and zero is valid.
type PriceTable struct {
	Cement  float64 `json:"cement" yaml:"cement"`     // 50 kg bag
	Sand    float64 `json:"sand" yaml:"sand"`         // m³
	Gravel  float64 `json:"gravel" yaml:"gravel"`     // m³
	Water   float64 `json:"water" yaml:"water"`       // litre
	Joist15 float64 `json:"joist_15" yaml:"joist_15"` // linear metre
	Joist20 float64 `json:"joist_20" yaml:"joist_20"`
	Joist25 float64 `json:"joist_25" yaml:"joist_25"`
	Vault   float64 `json:"vault" yaml:"vault"` // piece
	Mesh    float64 `json:"mesh" yaml:"mesh"`   // m²
}

// Item is one row of a price table, as stored and displayed.
type Item struct {
	Key   Key     `json:"key"`
	Unit  string  `json:"unit"`
	Price float64 `json:"price"`
}

// Keys lists every price key in display order.
func Keys() []Key {
	return []Key{KeyCement, KeySand, KeyGravel, KeyWater, KeyJoist15, KeyJoist20, KeyJoist25, KeyVault, KeyMesh}
}

// Unit is the unit a key is priced in.
func (k Key) Unit() string {
	switch k {
	case KeyCement:
		return "bulto"
	case KeySand, KeyGravel:
		return "m3"
	case KeyWater:
		return "L"
	case KeyJoist15, KeyJoist20, KeyJoist25:
		return "ml"
	case KeyVault:
		return "pza"
	case KeyMesh:
		return "m2"
	default:
		return ""
	}
}

func (p *PriceTable) field(k Key) *float64 {
	switch k {
	case KeyCement:
		return &p.Cement
	case KeySand:
		return &p.Sand
	case KeyGravel:
		return &p.Gravel
	case KeyWater:
		return &p.Water
	case KeyJoist15:
		return &p.Joist15
	case KeyJoist20:
		return &p.Joist20
	case KeyJoist25:
		return &p.Joist25
	case KeyVault:
		return &p.Vault
	case KeyMesh:
		return &p.Mesh
	default:
		return nil
	}
}

// Get returns the price for k, or false for an unknown key.
func (p PriceTable) Get(k Key) (float64, bool) {
	f := p.field(k)
	if f == nil {
		return 0, false
	}
	return *f, true
}

// Set assigns the price for k.
func (p *PriceTable) Set(k Key, v float64) error {
	f := p.field(k)
	if f == nil {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidPrice, k)
	}
	*f = v
	return nil
}

// Joist returns the linear-metre price for a depth class.
func (p PriceTable) Joist(d layout.DepthClass) float64 {
	switch d {
	case layout.Depth20:
		return p.Joist20
	case layout.Depth25:
		return p.Joist25
	default:
		return p.Joist15
	}
}

// Items flattens the table in Keys order.
func (p PriceTable) Items() []Item {
	items := make([]Item, 0, len(Keys()))
	for _, k := range Keys() {
		v, _ := p.Get(k)
		items = append(items, Item{Key: k, Unit: k.Unit(), Price: v})
	}
	return items
}

// FromItems builds a table from stored rows, rejecting unknown keys.
func FromItems(items []Item) (PriceTable, error) {
	var p PriceTable
	var err error
	for _, it := range items {
		err = multierr.Append(err, p.Set(it.Key, it.Price))
	}
	if err != nil {
		return PriceTable{}, err
	}
	return p, nil
}

// Validate rejects negative or non-finite prices.
func (p PriceTable) Validate() error {
	var err error
	for _, it := range p.Items() {
		if it.Price < 0 || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			err = multierr.Append(err, fmt.Errorf("%w: %s=%v", ErrInvalidPrice, it.Key, it.Price))
		}
	}
	return err
}

// LoadPrices reads a YAML price table. Unknown keys are an error.
func LoadPrices(path string) (PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PriceTable{}, fmt.Errorf("reading price file: %w", err)
	}

	var p PriceTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return PriceTable{}, fmt.Errorf("parsing price YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return PriceTable{}, err
	}
	return p, nil
}
