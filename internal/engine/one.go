package engine

import "gridweave.dev/internal/field"

// One applies a single randomly chosen match per tick.
type One struct {
	ruleNode
}

func NewOne(cfg RuleConfig) *One {
	return &One{ruleNode: newRuleNode(cfg)}
}

func (n *One) Reset() { n.reset() }

func (n *One) Go(ctx *Context) bool {
	if !n.prepare(ctx, false) {
		return false
	}
	g := ctx.Grid
	n.lastMatchedTurn = ctx.Counter

	if n.trajectory != nil {
		return n.replay(g)
	}

	m, ok := n.pick(ctx)
	if !ok {
		return false
	}
	n.last[m.r] = true
	g.Apply(n.cfg.Rules[m.r], m.x, m.y, m.z)
	n.counter++
	return true
}

func (n *One) pick(ctx *Context) (match, bool) {
	g := ctx.Grid
	if !n.heuristic() {
		for n.matchCount > 0 {
			k := ctx.Random.NextN(n.matchCount)
			m := n.matches[k]
			n.remove(k, g)
			if g.Matches(n.cfg.Rules[m.r], m.x, m.y, m.z) {
				return m, true
			}
		}
		return match{}, false
	}

	if n.cfg.Observations != nil && field.IsGoalReached(g.State, n.future) {
		n.futureComputed = false
		return match{}, false
	}

	best, argmax := -1000.0, -1
	first, haveFirst := 0, false
	for k := 0; k < n.matchCount; {
		m := n.matches[k]
		if !g.Matches(n.cfg.Rules[m.r], m.x, m.y, m.z) {
			n.remove(k, g)
			continue
		}
		delta, ok := field.DeltaPointwise(g.State, n.cfg.Rules[m.r], m.x, m.y, m.z, n.cfg.Fields, n.potentials, g.MX, g.MY)
		if ok {
			if !haveFirst {
				first, haveFirst = delta, true
			}
			key := score(delta, first, n.cfg.Temperature, ctx.Random.NextDouble())
			if key > best {
				best, argmax = key, k
			}
		}
		k++
	}
	if argmax < 0 {
		return match{}, false
	}
	return n.matches[argmax], true
}
