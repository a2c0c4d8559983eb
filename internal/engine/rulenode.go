package engine

import (
	"math"

	"gridweave.dev/internal/field"
	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/search"
)

// RuleConfig holds the options shared by One, All and Parallel nodes.
type RuleConfig struct {
	Rules []*grid.Rule
	// Steps caps the number of successful ticks; 0 means no cap.
	Steps       int
	Temperature float64

	// Fields and Observations are indexed by value, nil where a value has
	// none. A nil slice disables the feature.
	Fields       []*field.Field
	Observations []*field.Observation

	Search           bool
	Limit            int
	DepthCoefficient float64
}

type match struct{ r, x, y, z int }

// ruleNode is the matching machinery behind One, All and Parallel.
type ruleNode struct {
	cfg RuleConfig

	counter int
	last    []bool

	matches         []match
	matchCount      int
	matchMask       [][]bool
	lastMatchedTurn int
	scanned         *grid.Grid

	potentials     [][]int
	future         []uint32
	futureComputed bool
	trajectory     [][]byte
}

func newRuleNode(cfg RuleConfig) ruleNode {
	return ruleNode{
		cfg:             cfg,
		last:            make([]bool, len(cfg.Rules)),
		matchMask:       make([][]bool, len(cfg.Rules)),
		lastMatchedTurn: -1,
	}
}

func (n *ruleNode) heuristic() bool {
	return n.cfg.Fields != nil || (n.cfg.Observations != nil && !n.cfg.Search)
}

func (n *ruleNode) reset() {
	n.lastMatchedTurn = -1
	n.counter = 0
	n.trajectory = nil
	n.futureComputed = false
	for r := range n.last {
		n.last[r] = false
	}
	n.clearMatches()
}

func (n *ruleNode) clearMatches() {
	for _, m := range n.matchMask {
		for i := range m {
			m[i] = false
		}
	}
	n.matchCount = 0
}

// bind sizes per-grid buffers for g. A node moved onto a different grid
// forgets its matches and rescans.
func (n *ruleNode) bind(g *grid.Grid) {
	if n.scanned == g {
		return
	}
	size := len(g.State)
	for r := range n.matchMask {
		n.matchMask[r] = make([]bool, size)
	}
	n.matchCount = 0
	n.lastMatchedTurn = -1
	if n.heuristic() {
		n.potentials = make([][]int, g.C)
		for c := range n.potentials {
			n.potentials[c] = make([]int, size)
		}
	}
	if n.cfg.Observations != nil {
		n.future = make([]uint32, size)
	}
	n.scanned = g
}

func (n *ruleNode) add(r, x, y, z int, g *grid.Grid) {
	si := g.Index(x, y, z)
	n.matchMask[r][si] = true
	m := match{r, x, y, z}
	if n.matchCount < len(n.matches) {
		n.matches[n.matchCount] = m
	} else {
		n.matches = append(n.matches, m)
	}
	n.matchCount++
}

func (n *ruleNode) remove(k int, g *grid.Grid) {
	m := n.matches[k]
	n.matchMask[m.r][g.Index(m.x, m.y, m.z)] = false
	n.matches[k] = n.matches[n.matchCount-1]
	n.matchCount--
}

// fits reports whether the larger of r's input and output anchored at
// (sx, sy, sz) stays inside g.
func fits(r *grid.Rule, sx, sy, sz int, g *grid.Grid) bool {
	w := max(r.IMX, r.OMX)
	h := max(r.IMY, r.OMY)
	d := max(r.IMZ, r.OMZ)
	return sx >= 0 && sy >= 0 && sz >= 0 && sx+w <= g.MX && sy+h <= g.MY && sz+d <= g.MZ
}

// scan visits every (rule, anchor) whose input might accept the grid,
// sampling one cell per input-sized block.
func scan(rules []*grid.Rule, g *grid.Grid, visit func(r, sx, sy, sz int)) {
	for r, rule := range rules {
		for z := rule.IMZ - 1; z < g.MZ; z += rule.IMZ {
			for y := rule.IMY - 1; y < g.MY; y += rule.IMY {
				for x := rule.IMX - 1; x < g.MX; x += rule.IMX {
					v := int(g.State[g.Index(x, y, z)])
					if v >= len(rule.IShifts) {
						continue
					}
					for _, s := range rule.IShifts[v] {
						sx, sy, sz := x-s.X, y-s.Y, z-s.Z
						if fits(rule, sx, sy, sz, g) {
							visit(r, sx, sy, sz)
						}
					}
				}
			}
		}
	}
}

func (n *ruleNode) scanAll(g *grid.Grid) {
	n.matchCount = 0
	scan(n.cfg.Rules, g, func(r, sx, sy, sz int) {
		if !n.matchMask[r][g.Index(sx, sy, sz)] && g.Matches(n.cfg.Rules[r], sx, sy, sz) {
			n.add(r, sx, sy, sz, g)
		}
	})
}

func (n *ruleNode) scanChanges(g *grid.Grid) {
	for _, i := range g.Log.Since(n.lastMatchedTurn) {
		if i >= len(g.State) {
			continue
		}
		x, y, z := g.Coords(i)
		v := int(g.State[i])
		for r, rule := range n.cfg.Rules {
			if v >= len(rule.IShifts) {
				continue
			}
			mask := n.matchMask[r]
			for _, s := range rule.IShifts[v] {
				sx, sy, sz := x-s.X, y-s.Y, z-s.Z
				if !fits(rule, sx, sy, sz, g) {
					continue
				}
				if !mask[g.Index(sx, sy, sz)] && g.Matches(rule, sx, sy, sz) {
					n.add(r, sx, sy, sz, g)
				}
			}
		}
	}
}

// prepare runs the per-tick work shared by One and All: the step cap, goal
// setup from observations, match discovery and field computation. It
// reports false when the node cannot act this tick.
func (n *ruleNode) prepare(ctx *Context, all bool) bool {
	for r := range n.last {
		n.last[r] = false
	}
	if n.cfg.Steps > 0 && n.counter >= n.cfg.Steps {
		return false
	}
	g := ctx.Grid
	n.bind(g)

	if n.cfg.Observations != nil && !n.futureComputed {
		if !field.ComputeFutureSetPresent(n.future, g.State, n.cfg.Observations) {
			return false
		}
		n.futureComputed = true
		if n.cfg.Search {
			n.trajectory = nil
			tries := 20
			if n.cfg.Limit < 0 {
				tries = 1
			}
			for k := 0; k < tries && n.trajectory == nil; k++ {
				n.trajectory = search.Run(g.State, n.future, n.cfg.Rules, g.MX, g.MY, g.MZ, g.C, search.Params{
					All:              all,
					Limit:            n.cfg.Limit,
					DepthCoefficient: n.cfg.DepthCoefficient,
					Seed:             int32(ctx.Random.Next()),
				})
			}
			if n.trajectory == nil {
				ctx.logf("search found no trajectory")
			}
		} else {
			field.ComputeBackwardPotentials(n.potentials, n.future, g.MX, g.MY, g.MZ, n.cfg.Rules)
		}
	}

	if n.lastMatchedTurn >= 0 {
		n.scanChanges(g)
	} else {
		n.scanAll(g)
	}

	if n.cfg.Fields != nil {
		anySuccess, anyComputation := false, false
		for c, f := range n.cfg.Fields {
			if f == nil || (n.counter != 0 && !f.Recompute) {
				continue
			}
			ok := f.Compute(n.potentials[c], g)
			if !ok && f.Essential {
				ctx.logf("essential field for %q has no source", g.Characters[c])
				return false
			}
			anySuccess = anySuccess || ok
			anyComputation = true
		}
		if anyComputation && !anySuccess {
			return false
		}
	}
	return true
}

// replay copies the next trajectory state into the grid. The copy is not
// recorded in the change log, so incremental matchers do not see it.
func (n *ruleNode) replay(g *grid.Grid) bool {
	if n.counter >= len(n.trajectory) {
		return false
	}
	copy(g.State, n.trajectory[n.counter])
	n.counter++
	return true
}

// score turns a potential delta into a sort key: higher is better. The
// first delta seen in a tick anchors the temperature scale.
func score(delta, first int, temperature, u float64) float64 {
	if temperature > 0 {
		return math.Pow(u, math.Exp(float64(delta-first)/temperature))
	}
	return -float64(delta) + 0.001*u
}
