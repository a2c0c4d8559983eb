package engine

import (
	"sort"

	"gridweave.dev/internal/field"
	"gridweave.dev/internal/grid"
)

// All applies every non-overlapping match found in a tick.
type All struct {
	ruleNode
}

func NewAll(cfg RuleConfig) *All {
	return &All{ruleNode: newRuleNode(cfg)}
}

func (n *All) Reset() { n.reset() }

func (n *All) Go(ctx *Context) bool {
	if !n.prepare(ctx, true) {
		return false
	}
	g := ctx.Grid
	n.lastMatchedTurn = ctx.Counter

	if n.trajectory != nil {
		return n.replay(g)
	}
	if n.matchCount == 0 {
		return false
	}

	var order []int
	if n.heuristic() {
		order = n.ranked(ctx)
	} else {
		order = shuffled(n.matchCount, ctx)
	}

	start := len(g.Log.Cells)
	for _, k := range order {
		m := n.matches[k]
		n.matchMask[m.r][g.Index(m.x, m.y, m.z)] = false
		rule := n.cfg.Rules[m.r]
		if rule.P < 1 && ctx.Random.NextDouble() > rule.P {
			continue
		}
		if n.fit(rule, m, g) {
			n.last[m.r] = true
		}
	}
	written := g.Log.Cells[start:]
	for _, i := range written {
		g.Mask[i] = false
	}
	n.counter++
	n.matchCount = 0
	return len(written) > 0
}

// fit writes m unless one of its output cells was already written this tick.
// Every written cell is logged, changed or not.
func (n *All) fit(r *grid.Rule, m match, g *grid.Grid) bool {
	for dz := 0; dz < r.OMZ; dz++ {
		for dy := 0; dy < r.OMY; dy++ {
			for dx := 0; dx < r.OMX; dx++ {
				if r.Output[dx+dy*r.OMX+dz*r.OMX*r.OMY] != 0xff && g.Mask[g.Index(m.x+dx, m.y+dy, m.z+dz)] {
					return false
				}
			}
		}
	}
	for dz := 0; dz < r.OMZ; dz++ {
		for dy := 0; dy < r.OMY; dy++ {
			for dx := 0; dx < r.OMX; dx++ {
				v := r.Output[dx+dy*r.OMX+dz*r.OMX*r.OMY]
				if v == 0xff {
					continue
				}
				si := g.Index(m.x+dx, m.y+dy, m.z+dz)
				g.Mask[si] = true
				g.State[si] = v
				g.Log.Add(si)
			}
		}
	}
	return true
}

// ranked orders matches by potential score, best first. Matches that would
// write an unreachable value are dropped.
func (n *All) ranked(ctx *Context) []int {
	g := ctx.Grid
	type keyed struct {
		k   int
		key float64
	}
	var list []keyed
	first, haveFirst := 0, false
	for k := 0; k < n.matchCount; k++ {
		m := n.matches[k]
		delta, ok := field.DeltaPointwise(g.State, n.cfg.Rules[m.r], m.x, m.y, m.z, n.cfg.Fields, n.potentials, g.MX, g.MY)
		if !ok {
			continue
		}
		if !haveFirst {
			first, haveFirst = delta, true
		}
		list = append(list, keyed{k, score(delta, first, n.cfg.Temperature, ctx.Random.NextDouble())})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].key > list[j].key })
	order := make([]int, len(list))
	for i, e := range list {
		order[i] = e.k
	}
	return order
}

// shuffled is an inside-out Fisher-Yates permutation of 0..n-1.
func shuffled(n int, ctx *Context) []int {
	a := make([]int, n)
	for i := 0; i < n; i++ {
		j := ctx.Random.NextN(i + 1)
		a[i] = a[j]
		a[j] = i
	}
	return a
}
