package engine

// Parallel applies every match found at the start of a tick at once, each
// with its rule's probability. Writes go to a scratch state and are
// committed together, so matches never see each other's output.
type Parallel struct {
	ruleNode
	newstate []byte
}

func NewParallel(cfg RuleConfig) *Parallel {
	return &Parallel{ruleNode: newRuleNode(cfg)}
}

func (n *Parallel) Reset() { n.reset() }

func (n *Parallel) Go(ctx *Context) bool {
	for r := range n.last {
		n.last[r] = false
	}
	if n.cfg.Steps > 0 && n.counter >= n.cfg.Steps {
		return false
	}
	g := ctx.Grid
	if len(n.newstate) != len(g.State) {
		n.newstate = make([]byte, len(g.State))
	}

	var found []match
	scan(n.cfg.Rules, g, func(r, sx, sy, sz int) {
		if g.Matches(n.cfg.Rules[r], sx, sy, sz) {
			found = append(found, match{r, sx, sy, sz})
		}
	})

	start := len(g.Log.Cells)
	applied := 0
	for _, m := range found {
		rule := n.cfg.Rules[m.r]
		if ctx.Random.NextDouble() > rule.P {
			continue
		}
		n.last[m.r] = true
		changed := false
		for dz := 0; dz < rule.OMZ; dz++ {
			for dy := 0; dy < rule.OMY; dy++ {
				for dx := 0; dx < rule.OMX; dx++ {
					v := rule.Output[dx+dy*rule.OMX+dz*rule.OMX*rule.OMY]
					si := g.Index(m.x+dx, m.y+dy, m.z+dz)
					if v != 0xff && v != g.State[si] {
						n.newstate[si] = v
						g.Log.Add(si)
						changed = true
					}
				}
			}
		}
		if changed {
			applied++
		}
	}
	for _, i := range g.Log.Cells[start:] {
		g.State[i] = n.newstate[i]
	}
	n.counter++
	return applied > 0
}
