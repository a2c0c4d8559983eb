package field

import (
	"testing"

	"gridweave.dev/internal/grid"
)

func newGrid(t *testing.T, mx, my int, values, state string) *grid.Grid {
	t.Helper()
	g, err := grid.New(mx, my, 1, values, nil)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	if err := g.Load(state); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return g
}

func TestFieldCompute_BFSDistances(t *testing.T) {
	g := newGrid(t, 4, 1, "BWR", "RBBW")
	f := &Field{Substrate: g.Waves['B'], Zero: g.Waves['R']}
	pot := make([]int, 4)
	if !f.Compute(pot, g) {
		t.Fatalf("Compute failed")
	}
	want := []int{0, 1, 2, -1}
	for i := range want {
		if pot[i] != want[i] {
			t.Fatalf("pot=%v want %v", pot, want)
		}
	}
}

func TestFieldCompute_NoZeroFails(t *testing.T) {
	g := newGrid(t, 3, 1, "BWR", "BBW")
	f := &Field{Substrate: g.Waves['B'], Zero: g.Waves['R']}
	if f.Compute(make([]int, 3), g) {
		t.Fatalf("expected failure without zero cells")
	}
}

func TestDeltaPointwise(t *testing.T) {
	g := newGrid(t, 3, 1, "BW", "BBB")
	r, _ := grid.ParseRule(g, g, "B", "W", 1)
	potentials := [][]int{{0, 0, 0}, {5, 2, -1}}

	if d, ok := DeltaPointwise(g.State, r, 0, 0, 0, nil, potentials, 3, 1); !ok || d != 5 {
		t.Fatalf("delta=%d ok=%v", d, ok)
	}
	if _, ok := DeltaPointwise(g.State, r, 2, 0, 0, nil, potentials, 3, 1); ok {
		t.Fatalf("expected unreachable")
	}
	fields := []*Field{nil, {Inversed: true}}
	if d, _ := DeltaPointwise(g.State, r, 1, 0, 0, fields, potentials, 3, 1); d != 2-4 {
		t.Fatalf("inversed delta=%d", d)
	}
}

func TestComputeFutureSetPresent(t *testing.T) {
	g := newGrid(t, 3, 1, "BWR", "BRB")
	obs := []*Observation{nil, nil, {From: 0, To: g.Waves['W']}}
	future := make([]uint32, 3)
	if !ComputeFutureSetPresent(future, g.State, obs) {
		t.Fatalf("expected success")
	}
	if g.String() != "BBB" {
		t.Fatalf("present=%s", g)
	}
	if future[1] != g.Waves['W'] || future[0] != g.Waves['B'] {
		t.Fatalf("future=%v", future)
	}
	// R no longer present: the observation cannot be satisfied.
	if ComputeFutureSetPresent(future, g.State, obs) {
		t.Fatalf("expected failure when observed value is absent")
	}
}

func TestPotentials_LineGrowth(t *testing.T) {
	g := newGrid(t, 4, 1, "BW", "WBBB")
	r, _ := grid.ParseRule(g, g, "WB", "WW", 1)
	rules := []*grid.Rule{r}

	pots := [][]int{make([]int, 4), make([]int, 4)}
	ComputeForwardPotentials(pots, g.State, 4, 1, 1, rules)
	if got := pots[1]; got[0] != 0 || got[1] != 1 || got[2] != 2 || got[3] != 3 {
		t.Fatalf("forward W potentials=%v", got)
	}

	future := []uint32{g.Waves['W'], g.Waves['W'], g.Waves['W'], g.Waves['W']}
	if IsGoalReached(g.State, future) {
		t.Fatalf("goal reached too early")
	}
	if got := ForwardPointwise(pots, future); got != 6 {
		t.Fatalf("ForwardPointwise=%d want 6", got)
	}

	back := [][]int{make([]int, 4), make([]int, 4)}
	ComputeBackwardPotentials(back, future, 4, 1, 1, rules)
	if got := BackwardPointwise(back, g.State); got < 0 {
		t.Fatalf("BackwardPointwise=%d", got)
	}
	if got := BackwardPointwise(back, []byte{1, 1, 1, 1}); got != 0 {
		t.Fatalf("goal backward=%d", got)
	}
}
