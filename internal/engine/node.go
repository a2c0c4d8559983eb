// Package engine runs a tree of rewrite nodes against a grid, one tick at a
// time.
package engine

import (
	"io"
	"log"

	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/rng"
)

// Context is the state shared by every node during a run. Nodes that build
// a new grid replace Grid; the change log stays the same.
type Context struct {
	Grid   *grid.Grid
	Random *rng.Random
	Logger *log.Logger
	// Counter is the number of completed ticks.
	Counter int
}

func (c *Context) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// DiscardLogger drops everything.
var DiscardLogger = log.New(io.Discard, "", 0)

// Node is one element of the tree. Go performs at most one unit of work and
// reports whether it made progress. Reset returns the node to its freshly
// loaded state.
type Node interface {
	Go(ctx *Context) bool
	Reset()
}

// branchNode marks nodes that take over their parent's subsequent ticks once
// they succeed.
type branchNode interface {
	Node
	isBranch()
}

// Branch runs its children in order. A Markov branch restarts from its
// first child on every tick; a sequence stays on the current child until it
// stops making progress.
type Branch struct {
	Children []Node
	Markov   bool

	n      int
	active int // 1 + index of the child branch running our ticks, 0 if none
}

// NewSequence returns a branch that runs children one after the other.
func NewSequence(children ...Node) *Branch {
	return &Branch{Children: children}
}

// NewMarkov returns a branch that always retries from its first child.
func NewMarkov(children ...Node) *Branch {
	return &Branch{Children: children, Markov: true}
}

func (b *Branch) isBranch() {}

func (b *Branch) Go(ctx *Context) bool {
	if b.active > 0 {
		if b.Children[b.active-1].Go(ctx) {
			return true
		}
		// The child has reset itself. Spend this tick handing control back
		// and retry the same index next tick.
		b.active = 0
		return true
	}
	if b.Markov {
		b.n = 0
	}
	for ; b.n < len(b.Children); b.n++ {
		child := b.Children[b.n]
		if child.Go(ctx) {
			if _, ok := child.(branchNode); ok {
				b.active = b.n + 1
			}
			return true
		}
	}
	b.Reset()
	return false
}

func (b *Branch) Reset() {
	for _, c := range b.Children {
		c.Reset()
	}
	b.n = 0
	b.active = 0
}
