package field

import "gridweave.dev/internal/grid"

// Observation says that cells currently holding some value are to be reset to
// From and must eventually hold one of the values in To.
type Observation struct {
	From byte
	To   uint32
}

// ComputeFutureSetPresent writes the goal wave of every cell into future and
// replaces observed values in state with their From value. observations is
// indexed by value, nil where a value is not observed. It reports false when
// an observed value does not occur in state.
func ComputeFutureSetPresent(future []uint32, state []byte, observations []*Observation) bool {
	mask := make([]bool, len(observations))
	for k, o := range observations {
		if o == nil {
			mask[k] = true
		}
	}
	for i, v := range state {
		mask[v] = true
		if o := observations[v]; o != nil {
			future[i] = o.To
			state[i] = o.From
		} else {
			future[i] = 1 << v
		}
	}
	for _, m := range mask {
		if !m {
			return false
		}
	}
	return true
}

// ComputeForwardPotentials sets potentials[c][i] to the number of rule
// applications needed before cell i can hold c, starting from state.
func ComputeForwardPotentials(potentials [][]int, state []byte, mx, my, mz int, rules []*grid.Rule) {
	for _, p := range potentials {
		for i := range p {
			p[i] = -1
		}
	}
	for i, v := range state {
		potentials[v][i] = 0
	}
	computePotentials(potentials, mx, my, mz, rules, false)
}

// ComputeBackwardPotentials sets potentials[c][i] to the number of rule
// applications needed to get from c at cell i to the future.
func ComputeBackwardPotentials(potentials [][]int, future []uint32, mx, my, mz int, rules []*grid.Rule) {
	for c, p := range potentials {
		for i := range future {
			if future[i]&(1<<uint(c)) != 0 {
				p[i] = 0
			} else {
				p[i] = -1
			}
		}
	}
	computePotentials(potentials, mx, my, mz, rules, true)
}

type entry struct {
	v       byte
	x, y, z int
}

func computePotentials(potentials [][]int, mx, my, mz int, rules []*grid.Rule, backwards bool) {
	var queue []entry
	for c, p := range potentials {
		for i, t := range p {
			if t == 0 {
				queue = append(queue, entry{byte(c), i % mx, (i % (mx * my)) / mx, i / (mx * my)})
			}
		}
	}

	matchMask := make([][]bool, len(rules))
	for r := range matchMask {
		matchMask[r] = make([]bool, mx*my*mz)
	}

	for head := 0; head < len(queue); head++ {
		e := queue[head]
		i := e.x + e.y*mx + e.z*mx*my
		t := potentials[e.v][i]
		for r, rule := range rules {
			maskr := matchMask[r]
			shifts := rule.IShifts
			if backwards {
				shifts = rule.OShifts
			}
			if int(e.v) >= len(shifts) {
				continue
			}
			for _, s := range shifts[e.v] {
				sx, sy, sz := e.x-s.X, e.y-s.Y, e.z-s.Z
				if sx < 0 || sy < 0 || sz < 0 || sx+rule.IMX > mx || sy+rule.IMY > my || sz+rule.IMZ > mz {
					continue
				}
				si := sx + sy*mx + sz*mx*my
				if !maskr[si] && forwardMatches(rule, sx, sy, sz, potentials, t, mx, my, backwards) {
					maskr[si] = true
					queue = applyForward(rule, sx, sy, sz, potentials, t, mx, my, queue, backwards)
				}
			}
		}
	}
}

func forwardMatches(r *grid.Rule, x, y, z int, potentials [][]int, t, mx, my int, backwards bool) bool {
	a := r.BInput
	if backwards {
		a = r.Output
	}
	dx, dy, dz := 0, 0, 0
	for di := 0; di < len(a); di++ {
		if v := a[di]; v != 0xff {
			cur := potentials[v][x+dx+(y+dy)*mx+(z+dz)*mx*my]
			if cur > t || cur == -1 {
				return false
			}
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

func applyForward(r *grid.Rule, x, y, z int, potentials [][]int, t, mx, my int, queue []entry, backwards bool) []entry {
	a := r.Output
	if backwards {
		a = r.BInput
	}
	for dz := 0; dz < r.IMZ; dz++ {
		zdz := z + dz
		for dy := 0; dy < r.IMY; dy++ {
			ydy := y + dy
			for dx := 0; dx < r.IMX; dx++ {
				xdx := x + dx
				idi := xdx + ydy*mx + zdz*mx*my
				o := a[dx+dy*r.IMX+dz*r.IMX*r.IMY]
				if o != 0xff && potentials[o][idi] == -1 {
					potentials[o][idi] = t + 1
					queue = append(queue, entry{o, xdx, ydy, zdz})
				}
			}
		}
	}
	return queue
}

// IsGoalReached reports whether every cell of present is allowed by future.
func IsGoalReached(present []byte, future []uint32) bool {
	for i, v := range present {
		if future[i]&(1<<v) == 0 {
			return false
		}
	}
	return true
}

// ForwardPointwise sums, over cells, the smallest forward potential among the
// values the future allows there. It returns -1 when some cell cannot reach
// any allowed value.
func ForwardPointwise(potentials [][]int, future []uint32) int {
	sum := 0
	for i := range future {
		f := future[i]
		min, argmin := 1000, -1
		for c := range potentials {
			p := potentials[c][i]
			if f&1 == 1 && p >= 0 && p < min {
				min = p
				argmin = c
			}
			f >>= 1
		}
		if argmin < 0 {
			return -1
		}
		sum += min
	}
	return sum
}

// BackwardPointwise sums the backward potential of every present value, or
// returns -1 when one is unreachable.
func BackwardPointwise(potentials [][]int, present []byte) int {
	sum := 0
	for i, v := range present {
		p := potentials[v][i]
		if p < 0 {
			return -1
		}
		sum += p
	}
	return sum
}
