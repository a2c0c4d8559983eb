// Package field computes the distance potentials that steer rule selection
// toward goals: per-value BFS fields and the forward/backward potentials
// derived from observations.
package field

import "gridweave.dev/internal/grid"

// Field is a BFS distance from the cells whose value is in Zero, walking
// through cells whose value is in Substrate.
type Field struct {
	Recompute bool
	Inversed  bool
	Essential bool
	Substrate uint32
	Zero      uint32
}

// Compute fills potential with BFS distances, -1 where unreachable. It
// reports false when no cell belongs to Zero.
func (f *Field) Compute(potential []int, g *grid.Grid) bool {
	type node struct{ t, x, y, z int }
	var front []node
	ix, iy, iz := 0, 0, 0
	for i, v := range g.State {
		potential[i] = -1
		if f.Zero&(1<<v) != 0 {
			potential[i] = 0
			front = append(front, node{0, ix, iy, iz})
		}
		ix++
		if ix == g.MX {
			ix = 0
			iy++
			if iy == g.MY {
				iy = 0
				iz++
			}
		}
	}
	if len(front) == 0 {
		return false
	}
	for head := 0; head < len(front); head++ {
		n := front[head]
		for _, nb := range neighbors(n.x, n.y, n.z, g.MX, g.MY, g.MZ) {
			i := nb[0] + nb[1]*g.MX + nb[2]*g.MX*g.MY
			if potential[i] == -1 && f.Substrate&(1<<g.State[i]) != 0 {
				front = append(front, node{n.t + 1, nb[0], nb[1], nb[2]})
				potential[i] = n.t + 1
			}
		}
	}
	return true
}

// neighbors lists in-bounds neighbours in the order -x, +x, -y, +y, -z, +z.
func neighbors(x, y, z, mx, my, mz int) [][3]int {
	out := make([][3]int, 0, 6)
	if x > 0 {
		out = append(out, [3]int{x - 1, y, z})
	}
	if x < mx-1 {
		out = append(out, [3]int{x + 1, y, z})
	}
	if y > 0 {
		out = append(out, [3]int{x, y - 1, z})
	}
	if y < my-1 {
		out = append(out, [3]int{x, y + 1, z})
	}
	if z > 0 {
		out = append(out, [3]int{x, y, z - 1})
	}
	if z < mz-1 {
		out = append(out, [3]int{x, y, z + 1})
	}
	return out
}

// DeltaPointwise scores applying r at (x, y, z) as the summed change in
// potential over the cells it must change. fields may be nil; an inversed
// field counts its potential negatively. ok is false when a written value is
// unreachable at its cell.
func DeltaPointwise(state []byte, r *grid.Rule, x, y, z int, fields []*Field, potentials [][]int, mx, my int) (sum int, ok bool) {
	dx, dy, dz := 0, 0, 0
	for di := 0; di < len(r.Input); di++ {
		nv := r.Output[di]
		if nv != 0xff && r.Input[di]&(1<<nv) == 0 {
			i := x + dx + (y+dy)*mx + (z+dz)*mx*my
			np := potentials[nv][i]
			if np == -1 {
				return 0, false
			}
			ov := state[i]
			op := potentials[ov][i]
			sum += np - op

			if fields != nil {
				if of := fields[ov]; of != nil && of.Inversed {
					sum += 2 * op
				}
				if nf := fields[nv]; nf != nil && nf.Inversed {
					sum -= 2 * np
				}
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
	return sum, true
}
