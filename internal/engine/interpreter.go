package engine

import (
	"log"

	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/rng"
)

// Interpreter owns a loaded node tree and the grid it starts on.
type Interpreter struct {
	Root Node
	Grid *grid.Grid
	// Origin puts value 1 in the centre cell at the start of every run.
	Origin bool
	Logger *log.Logger

	ctx     Context
	running bool
}

// Reset prepares a run with seed without ticking.
func (ip *Interpreter) Reset(seed int32) {
	g := ip.Grid
	g.Clear()
	if ip.Origin {
		g.State[g.Index(g.MX/2, g.MY/2, g.MZ/2)] = 1
	}
	g.Log.Reset()
	ip.Root.Reset()
	logger := ip.Logger
	if logger == nil {
		logger = DiscardLogger
	}
	ip.ctx = Context{Grid: g, Random: rng.New(seed), Logger: logger}
	ip.running = true
}

// Step runs one tick and reports whether the tree made progress. The tick
// in which the tree stops is counted like any other. Once the tree stops,
// Step keeps returning false until the next Reset.
func (ip *Interpreter) Step() bool {
	if !ip.running {
		return false
	}
	ok := ip.Root.Go(&ip.ctx)
	ip.ctx.Counter++
	ip.ctx.Grid.Log.EndTick()
	if !ok {
		ip.running = false
	}
	return ok
}

// Run resets with seed and ticks until the tree stops or steps ticks have
// run (steps <= 0 means no limit). It returns the number of ticks.
func (ip *Interpreter) Run(seed int32, steps int) int {
	ip.Reset(seed)
	for steps <= 0 || ip.ctx.Counter < steps {
		if !ip.Step() {
			break
		}
	}
	return ip.ctx.Counter
}

// State is the grid as it stands, which may have been replaced by a node
// that builds its own grid.
func (ip *Interpreter) State() *grid.Grid {
	if ip.ctx.Grid == nil {
		return ip.Grid
	}
	return ip.ctx.Grid
}

// Counter is the number of completed ticks.
func (ip *Interpreter) Counter() int { return ip.ctx.Counter }

// Running reports whether the tree may still make progress.
func (ip *Interpreter) Running() bool { return ip.running }
