// Package grid holds the cell state rewritten by the engine, its label
// alphabet, and the rules that match and write against it.
package grid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Wildcard matches every value of the alphabet.
const Wildcard byte = '*'

var ErrUnknownLabel = errors.New("unknown label")

type Grid struct {
	MX, MY, MZ int
	State      []byte
	Mask       []bool

	C          int
	Characters []byte
	Values     map[byte]byte
	Waves      map[byte]uint32

	// Log is shared by every grid of a run so that a grid swapped in by a
	// node keeps the turn indexing of the one it replaced.
	Log *ChangeLog
}

// New builds an empty grid. values lists the alphabet in value order; unions
// maps extra labels to the member labels they match.
func New(mx, my, mz int, values string, unions map[byte]string) (*Grid, error) {
	if mx <= 0 || my <= 0 || mz <= 0 {
		return nil, fmt.Errorf("bad grid size %dx%dx%d", mx, my, mz)
	}
	if len(values) == 0 {
		return nil, errors.New("empty alphabet")
	}
	if len(values) > 32 {
		return nil, fmt.Errorf("alphabet of %d values does not fit a wave", len(values))
	}
	g := &Grid{
		MX:         mx,
		MY:         my,
		MZ:         mz,
		State:      make([]byte, mx*my*mz),
		Mask:       make([]bool, mx*my*mz),
		C:          len(values),
		Characters: []byte(values),
		Values:     make(map[byte]byte, len(values)),
		Waves:      make(map[byte]uint32, len(values)+len(unions)+1),
		Log:        NewChangeLog(),
	}
	for i := 0; i < len(values); i++ {
		ch := values[i]
		if ch == Wildcard {
			return nil, fmt.Errorf("label %q is reserved", ch)
		}
		if _, dup := g.Values[ch]; dup {
			return nil, fmt.Errorf("label %q repeated in alphabet", ch)
		}
		g.Values[ch] = byte(i)
		g.Waves[ch] = 1 << uint(i)
	}
	g.Waves[Wildcard] = (1 << uint(g.C)) - 1

	// Deterministic order so error messages are stable.
	keys := make([]byte, 0, len(unions))
	for k := range unions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, sym := range keys {
		if _, taken := g.Waves[sym]; taken {
			return nil, fmt.Errorf("union label %q already defined", sym)
		}
		w, err := g.Wave(unions[sym])
		if err != nil {
			return nil, fmt.Errorf("union %q: %w", sym, err)
		}
		g.Waves[sym] = w
	}
	return g, nil
}

// Resized returns an empty grid with the same alphabet and unions and new
// dimensions. The change log is shared.
func (g *Grid) Resized(mx, my, mz int) *Grid {
	n := &Grid{
		MX:         mx,
		MY:         my,
		MZ:         mz,
		State:      make([]byte, mx*my*mz),
		Mask:       make([]bool, mx*my*mz),
		C:          g.C,
		Characters: g.Characters,
		Values:     g.Values,
		Waves:      g.Waves,
		Log:        g.Log,
	}
	return n
}

// Wave returns the OR of the waves of every label in labels.
func (g *Grid) Wave(labels string) (uint32, error) {
	var w uint32
	for i := 0; i < len(labels); i++ {
		lw, ok := g.Waves[labels[i]]
		if !ok {
			return 0, fmt.Errorf("%w %q", ErrUnknownLabel, labels[i])
		}
		w |= lw
	}
	return w, nil
}

// Value returns the value of a single, non-union label.
func (g *Grid) Value(label byte) (byte, error) {
	v, ok := g.Values[label]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownLabel, label)
	}
	return v, nil
}

func (g *Grid) Clear() {
	for i := range g.State {
		g.State[i] = 0
	}
}

func (g *Grid) Index(x, y, z int) int {
	return x + y*g.MX + z*g.MX*g.MY
}

func (g *Grid) Coords(i int) (x, y, z int) {
	return i % g.MX, (i % (g.MX * g.MY)) / g.MX, i / (g.MX * g.MY)
}

// Matches reports whether r's input accepts the cells anchored at (x, y, z).
// The caller keeps the anchor inside the grid.
func (g *Grid) Matches(r *Rule, x, y, z int) bool {
	dx, dy, dz := 0, 0, 0
	for di := 0; di < len(r.Input); di++ {
		v := g.State[x+dx+(y+dy)*g.MX+(z+dz)*g.MX*g.MY]
		if r.Input[di]&(1<<v) == 0 {
			return false
		}
		dx++
		if dx == r.IMX {
			dx = 0
			dy++
			if dy == r.IMY {
				dy = 0
				dz++
			}
		}
	}
	return true
}

// Apply writes r's output at (x, y, z) and records every cell whose value
// changed.
func (g *Grid) Apply(r *Rule, x, y, z int) {
	for dz := 0; dz < r.OMZ; dz++ {
		for dy := 0; dy < r.OMY; dy++ {
			for dx := 0; dx < r.OMX; dx++ {
				nv := r.Output[dx+dy*r.OMX+dz*r.OMX*r.OMY]
				if nv == 0xff {
					continue
				}
				si := x + dx + (y+dy)*g.MX + (z+dz)*g.MX*g.MY
				if g.State[si] != nv {
					g.State[si] = nv
					g.Log.Add(si)
				}
			}
		}
	}
}

// Set writes one cell and records it when it changes.
func (g *Grid) Set(i int, v byte) {
	if g.State[i] != v {
		g.State[i] = v
		g.Log.Add(i)
	}
}

// Load fills the grid from a pattern string in the same layout as rule
// patterns: rows split by '/', layers split by ' ' listed from the top.
func (g *Grid) Load(pattern string) error {
	cells, mx, my, mz, err := ParsePattern(pattern)
	if err != nil {
		return err
	}
	if mx != g.MX || my != g.MY || mz != g.MZ {
		return fmt.Errorf("pattern is %dx%dx%d, grid is %dx%dx%d", mx, my, mz, g.MX, g.MY, g.MZ)
	}
	for i, ch := range cells {
		v, err := g.Value(ch)
		if err != nil {
			return err
		}
		g.State[i] = v
	}
	return nil
}

// String renders the state in the layout accepted by Load.
func (g *Grid) String() string {
	var b strings.Builder
	for z := g.MZ - 1; z >= 0; z-- {
		if z != g.MZ-1 {
			b.WriteByte(' ')
		}
		for y := 0; y < g.MY; y++ {
			if y > 0 {
				b.WriteByte('/')
			}
			for x := 0; x < g.MX; x++ {
				b.WriteByte(g.Characters[g.State[g.Index(x, y, z)]])
			}
		}
	}
	return b.String()
}

// Count returns the number of cells holding value v.
func (g *Grid) Count(v byte) int {
	n := 0
	for _, s := range g.State {
		if s == v {
			n++
		}
	}
	return n
}
