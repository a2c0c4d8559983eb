// Package model reads model definitions and compiles them into an
// interpreter: a grid plus a tree of engine nodes.
package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gridweave.dev/internal/grid"
)

var (
	ErrUnknownLabel = grid.ErrUnknownLabel
	ErrUnknownNode  = errors.New("unknown node kind")
)

// Model is a definition as written in YAML.
type Model struct {
	Name     string            `yaml:"name"`
	Values   string            `yaml:"values"`
	Unions   map[string]string `yaml:"unions"`
	Size     []int             `yaml:"size"`
	Origin   bool              `yaml:"origin"`
	Symmetry string            `yaml:"symmetry"`
	Root     Node              `yaml:"root"`
}

type Node struct {
	Kind     string `yaml:"kind"`
	Children []Node `yaml:"children"`
	Symmetry string `yaml:"symmetry"`

	Rules            []Rule    `yaml:"rules"`
	Steps            int       `yaml:"steps"`
	Temperature      float64   `yaml:"temperature"`
	Search           bool      `yaml:"search"`
	Limit            int       `yaml:"limit"`
	DepthCoefficient float64   `yaml:"depthCoefficient"`
	Fields           []Field   `yaml:"fields"`
	Observe          []Observe `yaml:"observe"`

	// path
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	On       string `yaml:"on"`
	Color    string `yaml:"color"`
	Inertia  bool   `yaml:"inertia"`
	Longest  bool   `yaml:"longest"`
	Edges    bool   `yaml:"edges"`
	Vertices bool   `yaml:"vertices"`

	// convolution
	Neighborhood string `yaml:"neighborhood"`
	Periodic     bool   `yaml:"periodic"`

	// convchain and wfc_overlap
	Sample string `yaml:"sample"`
	N      int    `yaml:"n"`
	Black  string `yaml:"black"`
	White  string `yaml:"white"`

	// map, wfc_overlap and wfc_tile
	Scale  string `yaml:"scale"`
	Values string `yaml:"values"`

	PeriodicInput *bool      `yaml:"periodicInput"`
	Shannon       bool       `yaml:"shannon"`
	Tries         int        `yaml:"tries"`
	Tiles         []Tile     `yaml:"tiles"`
	Neighbors     []Neighbor `yaml:"neighbors"`
	FullSymmetry  bool       `yaml:"fullSymmetry"`
	Overlap       int        `yaml:"overlap"`
	OverlapZ      int        `yaml:"overlapz"`
}

type Rule struct {
	In       string   `yaml:"in"`
	Out      string   `yaml:"out"`
	P        *float64 `yaml:"p"`
	Symmetry string   `yaml:"symmetry"`
	// Values and Sum constrain convolution rules.
	Values string `yaml:"values"`
	Sum    string `yaml:"sum"`
}

type Field struct {
	For       string `yaml:"for"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	On        string `yaml:"on"`
	Recompute bool   `yaml:"recompute"`
	Essential bool   `yaml:"essential"`
}

type Observe struct {
	Value string `yaml:"value"`
	From  string `yaml:"from"`
	To    string `yaml:"to"`
}

type Tile struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
	Layers string  `yaml:"layers"`
}

type Neighbor struct {
	Left   string `yaml:"left"`
	Right  string `yaml:"right"`
	Top    string `yaml:"top"`
	Bottom string `yaml:"bottom"`
}

// Load reads and validates the definition at path. A model without a name
// takes the file name.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		base := filepath.Base(path)
		m.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return m, nil
}

// Parse validates raw YAML against the model schema and decodes it.
func Parse(raw []byte) (*Model, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var m Model
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	return &m, nil
}

// Dims returns the grid size, defaulting MZ to 1.
func (m *Model) Dims() (mx, my, mz int, err error) {
	switch len(m.Size) {
	case 2:
		return m.Size[0], m.Size[1], 1, nil
	case 3:
		return m.Size[0], m.Size[1], m.Size[2], nil
	}
	return 0, 0, 0, fmt.Errorf("model: size needs 2 or 3 entries, got %d", len(m.Size))
}
