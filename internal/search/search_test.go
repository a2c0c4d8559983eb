package search

import (
	"testing"

	"gridweave.dev/internal/grid"
)

func setup(t *testing.T, state string) (*grid.Grid, []*grid.Rule, []uint32) {
	t.Helper()
	g, err := grid.New(len(state), 1, 1, "BW", nil)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	if err := g.Load(state); err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, err := grid.ParseRule(g, g, "WB", "WW", 1)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	future := make([]uint32, len(state))
	for i := range future {
		future[i] = g.Waves['W']
	}
	return g, []*grid.Rule{r}, future
}

func TestRun_OneFindsShortestTrajectory(t *testing.T) {
	g, rules, future := setup(t, "WBBB")
	traj := Run(g.State, future, rules, 4, 1, 1, 2, Params{Limit: -1, DepthCoefficient: 0.5, Seed: 1})
	if len(traj) != 3 {
		t.Fatalf("trajectory length %d want 3", len(traj))
	}
	want := [][]byte{{1, 1, 0, 0}, {1, 1, 1, 0}, {1, 1, 1, 1}}
	for i := range want {
		if string(traj[i]) != string(want[i]) {
			t.Fatalf("step %d: %v want %v", i, traj[i], want[i])
		}
	}
}

func TestRun_AllAppliesDisjointMatchesTogether(t *testing.T) {
	g, rules, future := setup(t, "WBWB")
	traj := Run(g.State, future, rules, 4, 1, 1, 2, Params{All: true, Limit: -1, Seed: 3})
	if len(traj) != 1 || string(traj[0]) != string([]byte{1, 1, 1, 1}) {
		t.Fatalf("trajectory=%v", traj)
	}
}

func TestRun_GoalAlreadyReached(t *testing.T) {
	g, rules, future := setup(t, "WWWW")
	traj := Run(g.State, future, rules, 4, 1, 1, 2, Params{Limit: -1})
	if traj == nil || len(traj) != 0 {
		t.Fatalf("want empty non-nil trajectory, got %v", traj)
	}
}

func TestRun_UnreachableAndLimit(t *testing.T) {
	g, rules, future := setup(t, "BBBB")
	if traj := Run(g.State, future, rules, 4, 1, 1, 2, Params{Limit: -1}); traj != nil {
		t.Fatalf("no W to grow from, got %v", traj)
	}
	g, rules, future = setup(t, "WBBB")
	if traj := Run(g.State, future, rules, 4, 1, 1, 2, Params{Limit: 1}); traj != nil {
		t.Fatalf("limit should stop the search, got %v", traj)
	}
}

func TestRun_Deterministic(t *testing.T) {
	g, rules, future := setup(t, "WBBBWBBB")
	p := Params{Limit: -1, DepthCoefficient: 0.5, Seed: 42}
	a := Run(g.State, future, rules, 8, 1, 1, 2, p)
	b := Run(g.State, future, rules, 8, 1, 1, 2, p)
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("lengths %d %d", len(a), len(b))
	}
	for i := range a {
		if string(a[i]) != string(b[i]) {
			t.Fatalf("runs diverged at %d", i)
		}
	}
}
