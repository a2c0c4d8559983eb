// Package search finds a sequence of rule applications that takes a grid
// state to one satisfying an observed future. The search is best-first over
// whole-grid states and supports 2-D grids only.
package search

import (
	"container/heap"

	"gridweave.dev/internal/field"
	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/rng"
)

type board struct {
	state    []byte
	parent   int
	depth    int
	backward int
	forward  int
}

func (b *board) rank(r *rng.Random, depthCoefficient float64) float64 {
	var result float64
	if depthCoefficient < 0 {
		result = 1000 - float64(b.depth)
	} else {
		result = float64(b.forward+b.backward) + 2*depthCoefficient*float64(b.depth)
	}
	return result + 0.0001*r.NextDouble()
}

// Params bounds and biases a search.
type Params struct {
	// All expands each state into every maximal set of non-overlapping
	// matches rather than into single applications.
	All bool
	// Limit caps the number of distinct states visited; negative means no cap.
	Limit int
	// DepthCoefficient weighs path length against the goal estimate. A
	// negative value searches depth-first.
	DepthCoefficient float64
	Seed             int32
}

// Run returns the states after each step of a shortest-found path from
// present to a state allowed by future, excluding present itself. A present
// state that already satisfies the goal yields an empty, non-nil trajectory.
// Run returns nil when the goal cannot be reached within the limit.
func Run(present []byte, future []uint32, rules []*grid.Rule, mx, my, mz, c int, p Params) [][]byte {
	n := mx * my * mz
	bpot := newPotentials(c, n)
	fpot := newPotentials(c, n)

	field.ComputeBackwardPotentials(bpot, future, mx, my, mz, rules)
	rootBackward := field.BackwardPointwise(bpot, present)
	field.ComputeForwardPotentials(fpot, present, mx, my, mz, rules)
	rootForward := field.ForwardPointwise(fpot, future)

	if rootBackward < 0 || rootForward < 0 {
		return nil
	}
	if rootBackward == 0 {
		return [][]byte{}
	}

	root := &board{state: append([]byte(nil), present...), parent: -1, backward: rootBackward, forward: rootForward}
	db := []*board{root}
	visited := map[string]int{string(present): 0}
	random := rng.New(p.Seed)

	frontier := &queue{}
	heap.Push(frontier, item{index: 0, priority: root.rank(random, p.DepthCoefficient)})

	for frontier.Len() > 0 && (p.Limit < 0 || len(db) < p.Limit) {
		parentIndex := heap.Pop(frontier).(item).index
		parent := db[parentIndex]

		var children [][]byte
		if p.All {
			children = allChildStates(parent.state, mx, my, rules)
		} else {
			children = oneChildStates(parent.state, mx, my, rules)
		}

		for _, cs := range children {
			key := string(cs)
			if ci, ok := visited[key]; ok {
				old := db[ci]
				if parent.depth+1 < old.depth {
					old.depth = parent.depth + 1
					old.parent = parentIndex
					if old.backward >= 0 && old.forward >= 0 {
						heap.Push(frontier, item{index: ci, priority: old.rank(random, p.DepthCoefficient)})
					}
				}
				continue
			}

			cb := field.BackwardPointwise(bpot, cs)
			field.ComputeForwardPotentials(fpot, cs, mx, my, mz, rules)
			cf := field.ForwardPointwise(fpot, future)
			if cb < 0 || cf < 0 {
				continue
			}

			child := &board{state: cs, parent: parentIndex, depth: parent.depth + 1, backward: cb, forward: cf}
			db = append(db, child)
			ci := len(db) - 1
			visited[key] = ci

			if cf == 0 {
				return trajectory(ci, db)
			}
			heap.Push(frontier, item{index: ci, priority: child.rank(random, p.DepthCoefficient)})
		}
	}
	return nil
}

func newPotentials(c, n int) [][]int {
	p := make([][]int, c)
	for i := range p {
		p[i] = make([]int, n)
	}
	return p
}

func trajectory(index int, db []*board) [][]byte {
	var rev [][]byte
	for b := db[index]; b.parent >= 0; b = db[b.parent] {
		rev = append(rev, b.state)
	}
	out := make([][]byte, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

type item struct {
	index    int
	priority float64
}

// queue is a min-heap on priority.
type queue []item

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return q[i].priority < q[j].priority }
func (q queue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)        { *q = append(*q, x.(item)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
