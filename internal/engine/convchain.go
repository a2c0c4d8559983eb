package engine

import (
	"fmt"
	"math"

	"gridweave.dev/internal/symmetry"
)

// ConvChain grows a two-colour texture over the substrate cells by
// Metropolis sampling against N×N pattern weights learned from a sample.
type ConvChain struct {
	N           int
	Temperature float64
	Weights     []float64
	// C0 and C1 are the black and white values, Substrate the value of the
	// cells the chain may rewrite.
	C0, C1, Substrate byte
	Steps             int

	counter   int
	substrate []bool
}

// LearnWeights counts every periodic n×n window of sample (true = white)
// under the subgroup's square transforms. Patterns never seen get a small
// positive weight.
func LearnWeights(sample []bool, smx, smy, n int, subgroup []bool) ([]float64, error) {
	if n <= 0 || smx*smy != len(sample) || smx < 1 || smy < 1 {
		return nil, fmt.Errorf("convchain: bad sample %dx%d for n=%d", smx, smy, n)
	}
	if n*n > 24 {
		return nil, fmt.Errorf("convchain: n=%d gives too many patterns", n)
	}
	weights := make([]float64, 1<<(n*n))
	rotate := func(p []bool) []bool {
		out := make([]bool, len(p))
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				out[x+y*n] = p[n-1-y+x*n]
			}
		}
		return out
	}
	reflect := func(p []bool) []bool {
		out := make([]bool, len(p))
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				out[x+y*n] = p[n-1-x+y*n]
			}
		}
		return out
	}
	for y := 0; y < smy; y++ {
		for x := 0; x < smx; x++ {
			p := make([]bool, n*n)
			for dy := 0; dy < n; dy++ {
				for dx := 0; dx < n; dx++ {
					p[dx+dy*n] = sample[(x+dx)%smx+((y+dy)%smy)*smx]
				}
			}
			for _, q := range symmetry.Square(p, rotate, reflect, nil, subgroup) {
				weights[patternIndex(q)]++
			}
		}
	}
	for k, w := range weights {
		if w <= 0 {
			weights[k] = 0.1
		}
	}
	return weights, nil
}

func patternIndex(p []bool) int {
	result, power := 0, 1
	for _, b := range p {
		if b {
			result += power
		}
		power *= 2
	}
	return result
}

func (n *ConvChain) Reset() {
	n.counter = 0
	for i := range n.substrate {
		n.substrate[i] = false
	}
}

func (n *ConvChain) Go(ctx *Context) bool {
	if n.Steps > 0 && n.counter >= n.Steps {
		return false
	}
	g := ctx.Grid
	if len(n.substrate) != len(g.State) {
		n.substrate = make([]bool, len(g.State))
	}

	if n.counter == 0 {
		found := false
		for i, v := range g.State {
			if v != n.Substrate {
				continue
			}
			if ctx.Random.NextN(2) == 0 {
				g.State[i] = n.C0
			} else {
				g.State[i] = n.C1
			}
			g.Log.Add(i)
			n.substrate[i] = true
			found = true
		}
		n.counter++
		return found
	}

	for k := 0; k < len(g.State); k++ {
		r := ctx.Random.NextN(len(g.State))
		if !n.substrate[r] {
			continue
		}
		x, y, _ := g.Coords(r)
		q := 1.0
		for sy := y - n.N + 1; sy <= y+n.N-1; sy++ {
			for sx := x - n.N + 1; sx <= x+n.N-1; sx++ {
				ind, difference := 0, 0
				for dy := 0; dy < n.N; dy++ {
					for dx := 0; dx < n.N; dx++ {
						px := wrapAny(sx+dx, g.MX)
						py := wrapAny(sy+dy, g.MY)
						power := 1 << (dy*n.N + dx)
						white := g.State[px+py*g.MX] == n.C1
						if white {
							ind += power
						}
						if px == x && py == y {
							if white {
								difference = power
							} else {
								difference = -power
							}
						}
					}
				}
				if before := n.Weights[ind]; before > 0 {
					q *= n.Weights[ind-difference] / before
				}
			}
		}

		if q >= 1 {
			n.toggle(ctx, r)
			continue
		}
		if n.Temperature != 1 {
			q = math.Pow(q, 1/n.Temperature)
		}
		if q > ctx.Random.NextDouble() {
			n.toggle(ctx, r)
		}
	}
	n.counter++
	return true
}

func (n *ConvChain) toggle(ctx *Context, i int) {
	g := ctx.Grid
	if g.State[i] == n.C0 {
		g.State[i] = n.C1
	} else {
		g.State[i] = n.C0
	}
	g.Log.Add(i)
}

// wrapAny wraps v into [0, n) for offsets up to one period away.
func wrapAny(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
