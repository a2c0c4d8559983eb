package engine

import (
	"math"

	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/rng"
)

// Path draws a shortest path of Color from a Start cell to a Finish cell
// through Substrate cells.
type Path struct {
	Start, Finish, Substrate uint32
	Color                    byte

	Inertia  bool
	Longest  bool
	Edges    bool
	Vertices bool
}

func (p *Path) Reset() {}

type point struct{ x, y, z int }

func (p *Path) Go(ctx *Context) bool {
	g := ctx.Grid
	generations := make([]int, len(g.State))
	for i := range generations {
		generations[i] = -1
	}

	var starts []point
	var frontier []point
	for z := 0; z < g.MZ; z++ {
		for y := 0; y < g.MY; y++ {
			for x := 0; x < g.MX; x++ {
				i := g.Index(x, y, z)
				v := g.State[i]
				if p.Start&(1<<v) != 0 {
					starts = append(starts, point{x, y, z})
				}
				if p.Finish&(1<<v) != 0 {
					generations[i] = 0
					frontier = append(frontier, point{x, y, z})
				}
			}
		}
	}
	if len(starts) == 0 || len(frontier) == 0 {
		return false
	}

	for head := 0; head < len(frontier); head++ {
		c := frontier[head]
		t := generations[g.Index(c.x, c.y, c.z)]
		for _, d := range directions(c.x, c.y, c.z, g, p.Edges, p.Vertices) {
			i := g.Index(c.x+d.x, c.y+d.y, c.z+d.z)
			v := g.State[i]
			if generations[i] != -1 {
				continue
			}
			if p.Substrate&(1<<v) != 0 {
				generations[i] = t + 1
				frontier = append(frontier, point{c.x + d.x, c.y + d.y, c.z + d.z})
			} else if p.Start&(1<<v) != 0 {
				generations[i] = t + 1
			}
		}
	}

	reachable := false
	for _, s := range starts {
		if generations[g.Index(s.x, s.y, s.z)] > 0 {
			reachable = true
			break
		}
	}
	if !reachable {
		return false
	}

	local := rng.New(int32(ctx.Random.Next()))
	minGen, maxGen := float64(len(g.State)), -2.0
	var argmin, argmax point
	for _, s := range starts {
		gen := generations[g.Index(s.x, s.y, s.z)]
		if gen == -1 {
			continue
		}
		score := float64(gen) + 0.1*local.NextDouble()
		if score < minGen {
			minGen, argmin = score, s
		}
		if score > maxGen {
			maxGen, argmax = score, s
		}
	}
	pen := argmin
	if p.Longest {
		pen = argmax
	}

	dir := p.direction(pen, point{}, generations, g, local)
	pen = point{pen.x + dir.x, pen.y + dir.y, pen.z + dir.z}
	for generations[g.Index(pen.x, pen.y, pen.z)] != 0 {
		i := g.Index(pen.x, pen.y, pen.z)
		g.State[i] = p.Color
		g.Log.Add(i)
		dir = p.direction(pen, dir, generations, g, local)
		pen = point{pen.x + dir.x, pen.y + dir.y, pen.z + dir.z}
	}
	return true
}

// direction picks a step from c to a neighbour one generation closer to
// the finish. With inertia the previous direction d is preferred.
func (p *Path) direction(c, d point, generations []int, g *grid.Grid, random *rng.Random) point {
	gen := generations[g.Index(c.x, c.y, c.z)]
	var candidates []point
	consider := func(s point) {
		x, y, z := c.x+s.x, c.y+s.y, c.z+s.z
		if x < 0 || y < 0 || z < 0 || x >= g.MX || y >= g.MY || z >= g.MZ {
			return
		}
		if generations[g.Index(x, y, z)] == gen-1 {
			candidates = append(candidates, s)
		}
	}
	moving := d != point{}

	if !p.Edges && !p.Vertices {
		if p.Inertia && moving {
			x, y, z := c.x+d.x, c.y+d.y, c.z+d.z
			if x >= 0 && y >= 0 && z >= 0 && x < g.MX && y < g.MY && z < g.MZ && generations[g.Index(x, y, z)] == gen-1 {
				return d
			}
		}
		for _, s := range directions(c.x, c.y, c.z, g, false, false) {
			consider(s)
		}
		if len(candidates) == 0 {
			return point{}
		}
		return candidates[random.NextN(len(candidates))]
	}

	for _, s := range directions(c.x, c.y, c.z, g, p.Edges, p.Vertices) {
		consider(s)
	}
	if len(candidates) == 0 {
		return point{}
	}
	if !p.Inertia || !moving {
		return candidates[random.NextN(len(candidates))]
	}
	best := -4.0
	result := candidates[0]
	dlen := math.Sqrt(float64(d.x*d.x + d.y*d.y + d.z*d.z))
	for _, s := range candidates {
		noise := 0.1 * random.NextDouble()
		dot := float64(s.x*d.x + s.y*d.y + s.z*d.z)
		cos := dot / (math.Sqrt(float64(s.x*s.x+s.y*s.y+s.z*s.z)) * dlen)
		if cos+noise > best {
			best, result = cos+noise, s
		}
	}
	return result
}

// directions lists the in-bounds unit steps from (x, y, z): axis moves, then
// face diagonals with edges, then corner diagonals with vertices (3-D only).
func directions(x, y, z int, g *grid.Grid, edges, vertices bool) []point {
	var out []point
	xl, xh := x > 0, x < g.MX-1
	yl, yh := y > 0, y < g.MY-1
	zl, zh := z > 0, z < g.MZ-1
	add := func(ok bool, dx, dy, dz int) {
		if ok {
			out = append(out, point{dx, dy, dz})
		}
	}
	add(xl, -1, 0, 0)
	add(xh, 1, 0, 0)
	add(yl, 0, -1, 0)
	add(yh, 0, 1, 0)
	if g.MZ > 1 {
		add(zl, 0, 0, -1)
		add(zh, 0, 0, 1)
	}
	if edges {
		add(xl && yl, -1, -1, 0)
		add(xl && yh, -1, 1, 0)
		add(xh && yl, 1, -1, 0)
		add(xh && yh, 1, 1, 0)
		if g.MZ > 1 {
			add(xl && zl, -1, 0, -1)
			add(xl && zh, -1, 0, 1)
			add(xh && zl, 1, 0, -1)
			add(xh && zh, 1, 0, 1)
			add(yl && zl, 0, -1, -1)
			add(yl && zh, 0, -1, 1)
			add(yh && zl, 0, 1, -1)
			add(yh && zh, 0, 1, 1)
		}
	}
	if vertices && g.MZ > 1 {
		add(xl && yl && zl, -1, -1, -1)
		add(xl && yl && zh, -1, -1, 1)
		add(xl && yh && zl, -1, 1, -1)
		add(xl && yh && zh, -1, 1, 1)
		add(xh && yl && zl, 1, -1, -1)
		add(xh && yl && zh, 1, -1, 1)
		add(xh && yh && zl, 1, 1, -1)
		add(xh && yh && zh, 1, 1, 1)
	}
	return out
}
