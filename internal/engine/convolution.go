package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// maxSum bounds a neighbourhood count: 27 cells in a 3×3×3 kernel.
const maxSum = 28

// ConvolutionRule turns a cell holding Input into Output. When Sums is set,
// the number of neighbours holding any of Values must be an allowed sum.
type ConvolutionRule struct {
	Input, Output byte
	Values        []byte
	Sums          []bool
	P             float64
}

// ParseSums reads an interval list such as "2,5..7" into a set of allowed
// neighbour counts.
func ParseSums(s string) ([]bool, error) {
	sums := make([]bool, maxSum)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "..")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("sum %q: %w", part, err)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("sum %q: %w", part, err)
			}
		}
		if from < 0 || to >= maxSum || from > to {
			return nil, fmt.Errorf("sum %q out of range 0..%d", part, maxSum-1)
		}
		for i := from; i <= to; i++ {
			sums[i] = true
		}
	}
	return sums, nil
}

var kernels2D = map[string][]int{
	"VonNeumann": {0, 1, 0, 1, 0, 1, 0, 1, 0},
	"Moore":      {1, 1, 1, 1, 0, 1, 1, 1, 1},
}

var kernels3D = map[string][]int{
	"VonNeumann": {
		0, 0, 0, 0, 1, 0, 0, 0, 0,
		0, 1, 0, 1, 0, 1, 0, 1, 0,
		0, 0, 0, 0, 1, 0, 0, 0, 0,
	},
	"NoCorners": {
		0, 1, 0, 1, 1, 1, 0, 1, 0,
		1, 1, 1, 1, 0, 1, 1, 1, 1,
		0, 1, 0, 1, 1, 1, 0, 1, 0,
	},
}

// Convolution is a synchronous cellular automaton step: every cell looks at
// neighbour counts taken before the tick and takes the first rule that
// applies.
type Convolution struct {
	Rules    []ConvolutionRule
	Periodic bool
	Steps    int

	kernel  []int
	c       int
	counter int
	sums    [][]int
}

// NewConvolution picks the kernel named neighborhood for a 2-D or 3-D grid
// with c values.
func NewConvolution(rules []ConvolutionRule, neighborhood string, d3 bool, periodic bool, steps, c int) (*Convolution, error) {
	table := kernels2D
	if d3 {
		table = kernels3D
	}
	kernel, ok := table[neighborhood]
	if !ok {
		return nil, fmt.Errorf("unknown neighborhood %q", neighborhood)
	}
	return &Convolution{Rules: rules, Periodic: periodic, Steps: steps, kernel: kernel, c: c}, nil
}

func (n *Convolution) Reset() { n.counter = 0 }

func (n *Convolution) Go(ctx *Context) bool {
	if n.Steps > 0 && n.counter >= n.Steps {
		return false
	}
	g := ctx.Grid
	n.count(ctx)

	changed := false
	for i, sums := range n.sums {
		v := g.State[i]
		for _, r := range n.Rules {
			if r.Input != v || r.Output == v {
				continue
			}
			if r.P < 1 && ctx.Random.NextDouble() >= r.P {
				continue
			}
			if r.Sums != nil {
				total := 0
				for _, c := range r.Values {
					if int(c) < len(sums) {
						total += sums[c]
					}
				}
				if total >= len(r.Sums) || !r.Sums[total] {
					continue
				}
			}
			g.State[i] = r.Output
			g.Log.Add(i)
			changed = true
			break
		}
	}
	n.counter++
	return changed
}

// count fills n.sums[i][c] with the kernel-weighted number of neighbours of
// cell i holding value c.
func (n *Convolution) count(ctx *Context) {
	g := ctx.Grid
	if len(n.sums) != len(g.State) {
		n.sums = make([][]int, len(g.State))
		for i := range n.sums {
			n.sums[i] = make([]int, n.c)
		}
	}
	rz := 0
	if len(n.kernel) == 27 {
		rz = 1
	}
	for z := 0; z < g.MZ; z++ {
		for y := 0; y < g.MY; y++ {
			for x := 0; x < g.MX; x++ {
				sums := n.sums[g.Index(x, y, z)]
				for c := range sums {
					sums[c] = 0
				}
				for dz := -rz; dz <= rz; dz++ {
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							k := n.kernel[(dx+1)+(dy+1)*3+(dz+rz)*9]
							if k == 0 {
								continue
							}
							sx, sy, sz := x+dx, y+dy, z+dz
							if n.Periodic {
								sx, sy, sz = wrap(sx, g.MX), wrap(sy, g.MY), wrap(sz, g.MZ)
							} else if sx < 0 || sy < 0 || sz < 0 || sx >= g.MX || sy >= g.MY || sz >= g.MZ {
								continue
							}
							if v := int(g.State[g.Index(sx, sy, sz)]); v < n.c {
								sums[v] += k
							}
						}
					}
				}
			}
		}
	}
}

func wrap(v, n int) int {
	if v < 0 {
		return v + n
	}
	if v >= n {
		return v - n
	}
	return v
}
