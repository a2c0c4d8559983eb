package engine

import (
	"fmt"
	"strconv"
	"strings"

	"gridweave.dev/internal/grid"
)

// Scale is a rational factor applied to one grid axis.
type Scale struct{ Num, Den int }

// ParseScale reads "n" or "n/d".
func ParseScale(s string) (Scale, error) {
	num, den, frac := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.Atoi(num)
	if err != nil {
		return Scale{}, fmt.Errorf("scale %q: %w", s, err)
	}
	d := 1
	if frac {
		if d, err = strconv.Atoi(den); err != nil {
			return Scale{}, fmt.Errorf("scale %q: %w", s, err)
		}
	}
	if n <= 0 || d <= 0 {
		return Scale{}, fmt.Errorf("scale %q must be positive", s)
	}
	return Scale{n, d}, nil
}

// Apply scales a length or coordinate, rounding down.
func (s Scale) Apply(v int) int { return v * s.Num / s.Den }

// Map rewrites the grid into a new grid of scaled size. Rules are matched
// periodically on the current grid and written, wrapping, at the scaled
// anchor. Once the new grid is swapped in, the children run on it in order.
type Map struct {
	Rules    []*grid.Rule
	Scale    [3]Scale
	children *Branch

	newgrid *grid.Grid
	scratch []byte
	mapped  bool
}

// NewMap writes into newgrid, whose dimensions must already be the scaled
// dimensions of the grid the node will see.
func NewMap(newgrid *grid.Grid, rules []*grid.Rule, scale [3]Scale, children ...Node) *Map {
	return &Map{Rules: rules, Scale: scale, children: NewSequence(children...), newgrid: newgrid}
}

func (n *Map) Reset() {
	n.mapped = false
	n.children.Reset()
}

func (n *Map) Go(ctx *Context) bool {
	if n.mapped {
		if n.children.Go(ctx) {
			return true
		}
		n.Reset()
		return false
	}

	src, dst := ctx.Grid, n.newgrid
	if len(n.scratch) != len(dst.State) {
		n.scratch = make([]byte, len(dst.State))
	}
	for i := range n.scratch {
		n.scratch[i] = 0
	}
	for _, r := range n.Rules {
		for z := 0; z < src.MZ; z++ {
			for y := 0; y < src.MY; y++ {
				for x := 0; x < src.MX; x++ {
					if periodicMatch(src, r, x, y, z) {
						n.write(r, n.Scale[0].Apply(x), n.Scale[1].Apply(y), n.Scale[2].Apply(z))
					}
				}
			}
		}
	}
	copy(dst.State, n.scratch)
	ctx.Grid = dst
	n.mapped = true
	return true
}

func periodicMatch(g *grid.Grid, r *grid.Rule, x, y, z int) bool {
	for dz := 0; dz < r.IMZ; dz++ {
		for dy := 0; dy < r.IMY; dy++ {
			for dx := 0; dx < r.IMX; dx++ {
				sx := (x + dx) % g.MX
				sy := (y + dy) % g.MY
				sz := (z + dz) % g.MZ
				v := g.State[g.Index(sx, sy, sz)]
				if r.Input[dx+dy*r.IMX+dz*r.IMX*r.IMY]&(1<<v) == 0 {
					return false
				}
			}
		}
	}
	return true
}

func (n *Map) write(r *grid.Rule, x, y, z int) {
	g := n.newgrid
	for dz := 0; dz < r.OMZ; dz++ {
		for dy := 0; dy < r.OMY; dy++ {
			for dx := 0; dx < r.OMX; dx++ {
				v := r.Output[dx+dy*r.OMX+dz*r.OMX*r.OMY]
				if v == 0xff {
					continue
				}
				sx := (x + dx) % g.MX
				sy := (y + dy) % g.MY
				sz := (z + dz) % g.MZ
				n.scratch[g.Index(sx, sy, sz)] = v
			}
		}
	}
}
