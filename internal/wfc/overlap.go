package wfc

import (
	"fmt"

	"gridweave.dev/internal/rng"
	"gridweave.dev/internal/symmetry"
)

// Overlap is the pattern set learned from a sample: every N×N window and its
// symmetry variants, weighted by occurrence.
type Overlap struct {
	N          int
	Patterns   [][]byte
	Weights    []float64
	Propagator [][][]int
}

// NewOverlap extracts the patterns of sample (smx×smy, values below c).
// Windows start at every position when periodicInput, otherwise only where
// they fit. Patterns keep the order in which they first appear.
func NewOverlap(sample []byte, smx, smy, n, c int, periodicInput bool, subgroup []bool) (*Overlap, error) {
	if n <= 0 || smx <= 0 || smy <= 0 || len(sample) != smx*smy {
		return nil, fmt.Errorf("wfc: bad sample %dx%d with pattern size %d", smx, smy, n)
	}
	for _, v := range sample {
		if int(v) >= c {
			return nil, fmt.Errorf("%w: sample value %d, alphabet size %d", ErrAlphabet, v, c)
		}
	}

	xmax, ymax := smx, smy
	if !periodicInput {
		xmax, ymax = smx-n+1, smy-n+1
	}
	if xmax <= 0 || ymax <= 0 {
		return nil, fmt.Errorf("wfc: sample %dx%d smaller than pattern size %d", smx, smy, n)
	}

	rotate := func(p []byte) []byte { return rotatePattern(p, n) }
	reflect := func(p []byte) []byte { return reflectPattern(p, n) }

	o := &Overlap{N: n}
	index := map[string]int{}
	for y := 0; y < ymax; y++ {
		for x := 0; x < xmax; x++ {
			window := extractPattern(sample, smx, smy, x, y, n)
			for _, p := range symmetry.Square(window, rotate, reflect, nil, subgroup) {
				key := string(p)
				if t, ok := index[key]; ok {
					o.Weights[t]++
					continue
				}
				index[key] = len(o.Patterns)
				o.Patterns = append(o.Patterns, p)
				o.Weights = append(o.Weights, 1)
			}
		}
	}

	o.Propagator = make([][][]int, 4)
	for d := range o.Propagator {
		o.Propagator[d] = make([][]int, len(o.Patterns))
		for t1, p1 := range o.Patterns {
			for t2, p2 := range o.Patterns {
				if agrees(p1, p2, DX[d], DY[d], n) {
					o.Propagator[d][t1] = append(o.Propagator[d][t1], t2)
				}
			}
		}
	}
	return o, nil
}

func extractPattern(sample []byte, smx, smy, x, y, n int) []byte {
	p := make([]byte, n*n)
	for dy := 0; dy < n; dy++ {
		for dx := 0; dx < n; dx++ {
			p[dx+dy*n] = sample[(x+dx)%smx+((y+dy)%smy)*smx]
		}
	}
	return p
}

func rotatePattern(p []byte, n int) []byte {
	out := make([]byte, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[x+y*n] = p[n-1-y+x*n]
		}
	}
	return out
}

func reflectPattern(p []byte, n int) []byte {
	out := make([]byte, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			out[x+y*n] = p[n-1-x+y*n]
		}
	}
	return out
}

// agrees reports whether p2 shifted by (dx, dy) matches p1 on their overlap.
func agrees(p1, p2 []byte, dx, dy, n int) bool {
	xmin, xmax := dx, n
	if dx < 0 {
		xmin, xmax = 0, dx+n
	}
	ymin, ymax := dy, n
	if dy < 0 {
		ymin, ymax = 0, dy+n
	}
	for y := ymin; y < ymax; y++ {
		for x := xmin; x < xmax; x++ {
			if p1[x+n*y] != p2[x-dx+n*(y-dy)] {
				return false
			}
		}
	}
	return true
}

// Map builds the ban table for Solver.Init. allowed maps an input value to
// the wave of output values a pattern's top-left cell may take there; input
// values without an entry allow every pattern.
func (o *Overlap) Map(inputC int, allowed map[byte]uint32) [][]bool {
	m := make([][]bool, inputC)
	for v := range m {
		m[v] = make([]bool, len(o.Patterns))
		w, ok := allowed[byte(v)]
		for t, p := range o.Patterns {
			m[v][t] = !ok || w&(1<<p[0]) != 0
		}
	}
	return m
}

// Model returns the collapse model for an mx×my output.
func (o *Overlap) Model(mx, my int, periodic, shannon bool) *Model {
	return &Model{
		Propagator: o.Propagator,
		Weights:    o.Weights,
		N:          o.N,
		MX:         mx,
		MY:         my,
		MZ:         1,
		Periodic:   periodic,
		Shannon:    shannon,
	}
}

// Vote writes into state, for every cell, the value most patterns still
// possible around it agree on. Ties are broken with noise from random.
func (o *Overlap) Vote(w *Wave, state []byte, mx, my, c int, random *rng.Random) {
	votes := make([]int, len(state)*c)
	for i := 0; i < w.Len(); i++ {
		x, y := i%mx, i/mx
		for t, p := range o.Patterns {
			if !w.Possible(i, t) {
				continue
			}
			for dy := 0; dy < o.N; dy++ {
				ydy := wrap(y+dy, my)
				for dx := 0; dx < o.N; dx++ {
					xdx := wrap(x+dx, mx)
					votes[(xdx+ydy*mx)*c+int(p[dx+dy*o.N])]++
				}
			}
		}
	}
	for i := range state {
		state[i] = argmaxVote(votes[i*c:(i+1)*c], random)
	}
}

func argmaxVote(v []int, random *rng.Random) byte {
	best := -1.0
	argmax := byte(0xff)
	for c, n := range v {
		value := float64(n) + 0.1*random.NextDouble()
		if value > best {
			best = value
			argmax = byte(c)
		}
	}
	return argmax
}
