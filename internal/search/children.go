package search

import "gridweave.dev/internal/grid"

func oneChildStates(state []byte, mx, my int, rules []*grid.Rule) [][]byte {
	var out [][]byte
	for _, r := range rules {
		for y := 0; y < my; y++ {
			for x := 0; x < mx; x++ {
				if matches(r, x, y, state, mx, my) {
					out = append(out, applied(r, x, y, state, mx))
				}
			}
		}
	}
	return out
}

type tile struct{ r, i int }

// allChildStates enumerates every maximal set of non-overlapping matches by
// covering the most contested cell first.
func allChildStates(state []byte, mx, my int, rules []*grid.Rule) [][]byte {
	var list []tile
	amounts := make([]int, len(state))
	for i := range state {
		x, y := i%mx, i/mx
		for r, rule := range rules {
			if !matches(rule, x, y, state, mx, my) {
				continue
			}
			list = append(list, tile{r, i})
			for dy := 0; dy < rule.IMY; dy++ {
				for dx := 0; dx < rule.IMX; dx++ {
					amounts[x+dx+(y+dy)*mx]++
				}
			}
		}
	}
	if len(list) == 0 {
		return nil
	}

	e := &enumerator{
		tiles:   list,
		amounts: amounts,
		mask:    make([]bool, len(list)),
		state:   state,
		mx:      mx,
		rules:   rules,
	}
	for i := range e.mask {
		e.mask[i] = true
	}
	e.enumerate()
	return e.children
}

type enumerator struct {
	tiles    []tile
	amounts  []int
	mask     []bool
	solution []tile
	children [][]byte
	state    []byte
	mx       int
	rules    []*grid.Rule
}

func (e *enumerator) enumerate() {
	best := maxPositiveIndex(e.amounts)
	if best < 0 {
		e.children = append(e.children, e.applySolution())
		return
	}
	bx, by := best%e.mx, best/e.mx

	var cover []tile
	for l, t := range e.tiles {
		if e.mask[l] && inside(bx, by, e.rules[t.r], t.i%e.mx, t.i/e.mx) {
			cover = append(cover, t)
		}
	}

	for _, t := range cover {
		e.solution = append(e.solution, t)
		rule := e.rules[t.r]
		tx, ty := t.i%e.mx, t.i/e.mx

		var intersecting []int
		for l, t1 := range e.tiles {
			if e.mask[l] && overlaps(rule, tx, ty, e.rules[t1.r], t1.i%e.mx, t1.i/e.mx) {
				intersecting = append(intersecting, l)
			}
		}
		for _, l := range intersecting {
			e.hide(l, false)
		}
		e.enumerate()
		for _, l := range intersecting {
			e.hide(l, true)
		}
		e.solution = e.solution[:len(e.solution)-1]
	}
}

func (e *enumerator) hide(l int, unhide bool) {
	e.mask[l] = unhide
	t := e.tiles[l]
	rule := e.rules[t.r]
	x, y := t.i%e.mx, t.i/e.mx
	incr := -1
	if unhide {
		incr = 1
	}
	for dy := 0; dy < rule.IMY; dy++ {
		for dx := 0; dx < rule.IMX; dx++ {
			e.amounts[x+dx+(y+dy)*e.mx] += incr
		}
	}
}

func (e *enumerator) applySolution() []byte {
	out := append([]byte(nil), e.state...)
	for _, t := range e.solution {
		applyInPlace(e.rules[t.r], t.i%e.mx, t.i/e.mx, out, e.mx)
	}
	return out
}

func maxPositiveIndex(amounts []int) int {
	max, argmax := 0, -1
	for i, a := range amounts {
		if a > max {
			max = a
			argmax = i
		}
	}
	return argmax
}

func inside(px, py int, r *grid.Rule, x, y int) bool {
	return x <= px && px < x+r.IMX && y <= py && py < y+r.IMY
}

func overlaps(r0 *grid.Rule, x0, y0 int, r1 *grid.Rule, x1, y1 int) bool {
	for dy := 0; dy < r0.IMY; dy++ {
		for dx := 0; dx < r0.IMX; dx++ {
			if inside(x0+dx, y0+dy, r1, x1, y1) {
				return true
			}
		}
	}
	return false
}

func matches(r *grid.Rule, x, y int, state []byte, mx, my int) bool {
	if x+r.IMX > mx || y+r.IMY > my {
		return false
	}
	dx, dy := 0, 0
	for di := range r.Input {
		if r.Input[di]&(1<<state[x+dx+(y+dy)*mx]) == 0 {
			return false
		}
		dx++
		if dx == r.IMX {
			dx = 0
			dy++
		}
	}
	return true
}

func applied(r *grid.Rule, x, y int, state []byte, mx int) []byte {
	out := append([]byte(nil), state...)
	applyInPlace(r, x, y, out, mx)
	return out
}

func applyInPlace(r *grid.Rule, x, y int, state []byte, mx int) {
	for dy := 0; dy < r.OMY; dy++ {
		for dx := 0; dx < r.OMX; dx++ {
			if v := r.Output[dx+dy*r.OMX]; v != 0xff {
				state[x+dx+(y+dy)*mx] = v
			}
		}
	}
}
