package engine

import (
	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/rng"
	"gridweave.dev/internal/wfc"
)

// WFCOptions are the collapse settings shared by overlap and tile nodes.
type WFCOptions struct {
	Periodic bool
	Shannon  bool
	// Tries bounds the number of seeds tried before the node gives up.
	Tries int
}

type wfcPhase int

const (
	wfcIdle wfcPhase = iota
	wfcCollapsing
	wfcChildren
)

// WFC collapses a wave constrained by the current grid, one observation per
// tick, then writes the result into its own grid and runs its children
// there.
type WFC struct {
	solver   *wfc.Solver
	mapping  [][]bool
	opts     WFCOptions
	newgrid  *grid.Grid
	vote     func(w *wfc.Wave, out []byte, random *rng.Random)
	children *Branch

	phase  wfcPhase
	buffer []byte
}

// NewOverlapWFC collapses patterns learned from a sample. newgrid must have
// the size of the grid the node will see; mapping comes from Overlap.Map.
func NewOverlapWFC(o *wfc.Overlap, mapping [][]bool, newgrid *grid.Grid, opts WFCOptions, children ...Node) *WFC {
	m := o.Model(newgrid.MX, newgrid.MY, opts.Periodic, opts.Shannon)
	return &WFC{
		solver:   wfc.NewSolver(m),
		mapping:  mapping,
		opts:     opts,
		newgrid:  newgrid,
		children: NewSequence(children...),
		vote: func(w *wfc.Wave, out []byte, random *rng.Random) {
			o.Vote(w, out, newgrid.MX, newgrid.MY, newgrid.C, random)
		},
	}
}

// NewTileWFC collapses a tile set over a wave the size of the input grid,
// mx×my×mz, and writes the blocks into newgrid, which must have the size
// given by Tiles.OutputSize.
func NewTileWFC(tl *wfc.Tiles, mapping [][]bool, mx, my, mz, overlap, overlapz int, newgrid *grid.Grid, opts WFCOptions, children ...Node) *WFC {
	m := tl.Model(mx, my, mz, opts.Periodic, opts.Shannon)
	return &WFC{
		solver:   wfc.NewSolver(m),
		mapping:  mapping,
		opts:     opts,
		newgrid:  newgrid,
		children: NewSequence(children...),
		vote: func(w *wfc.Wave, out []byte, random *rng.Random) {
			tl.Vote(w, mx, my, mz, overlap, overlapz, out, newgrid.MX, newgrid.MY, newgrid.MZ, newgrid.C, random)
		},
	}
}

func (n *WFC) Reset() {
	n.phase = wfcIdle
	n.children.Reset()
}

func (n *WFC) Go(ctx *Context) bool {
	switch n.phase {
	case wfcIdle:
		return n.start(ctx)
	case wfcCollapsing:
		switch n.solver.Step() {
		case wfc.Running:
			return true
		case wfc.Contradiction:
			ctx.logf("wfc: contradiction after a good seed")
			n.Reset()
			return false
		}
		n.write(ctx)
		n.phase = wfcChildren
		return true
	}
	if n.children.Go(ctx) {
		return true
	}
	n.Reset()
	return false
}

func (n *WFC) start(ctx *Context) bool {
	if !n.solver.Init(ctx.Grid.State, n.mapping) {
		ctx.logf("wfc: initial conditions are contradictive")
		return false
	}
	tries := n.opts.Tries
	if tries <= 0 {
		tries = 1000
	}
	seed, ok := n.solver.GoodSeed(ctx.Random, tries, ctx.Logger)
	if !ok {
		return false
	}
	n.solver.Start(seed)
	n.newgrid.Clear()
	ctx.Grid = n.newgrid
	n.phase = wfcCollapsing
	return true
}

// write votes the collapsed wave into the node's grid and records the cells
// that changed.
func (n *WFC) write(ctx *Context) {
	g := n.newgrid
	if len(n.buffer) != len(g.State) {
		n.buffer = make([]byte, len(g.State))
	}
	copy(n.buffer, g.State)
	n.vote(n.solver.Wave(), n.buffer, n.solver.Random())
	for i, v := range n.buffer {
		g.Set(i, v)
	}
}
