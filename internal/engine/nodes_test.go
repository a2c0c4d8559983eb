package engine

import (
	"testing"

	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/wfc"
)

func TestParseSums(t *testing.T) {
	sums, err := ParseSums("2,5..7")
	if err != nil {
		t.Fatalf("ParseSums: %v", err)
	}
	for i, want := range map[int]bool{1: false, 2: true, 3: false, 4: false, 5: true, 6: true, 7: true, 8: false} {
		if sums[i] != want {
			t.Fatalf("sums[%d]=%v", i, sums[i])
		}
	}
	for _, bad := range []string{"", "x", "3..30", "5..2", "-1"} {
		if _, err := ParseSums(bad); err == nil {
			t.Fatalf("ParseSums(%q) accepted", bad)
		}
	}
}

func TestConvolution_FirstRuleWins(t *testing.T) {
	g := newGrid(t, 3, 3, "DA", nil, "DDD/DAD/DDD")
	ctx := newContext(g, 1)
	c, err := NewConvolution([]ConvolutionRule{{Input: 1, Output: 0, P: 1}}, "Moore", false, false, 0, g.C)
	if err != nil {
		t.Fatalf("NewConvolution: %v", err)
	}
	if !c.Go(ctx) {
		t.Fatalf("no change")
	}
	if g.String() != "DDD/DDD/DDD" {
		t.Fatalf("state=%s", g.String())
	}
	if c.Go(ctx) {
		t.Fatalf("second tick changed something")
	}
}

func TestConvolution_SumsFromPreTickState(t *testing.T) {
	g := newGrid(t, 5, 5, "DA", nil, "DDDDD/DDDDD/DDADD/DDDDD/DDDDD")
	ctx := newContext(g, 1)
	sums, _ := ParseSums("1")
	rules := []ConvolutionRule{{Input: 0, Output: 1, Values: []byte{1}, Sums: sums, P: 1}}
	c, err := NewConvolution(rules, "Moore", false, false, 0, g.C)
	if err != nil {
		t.Fatalf("NewConvolution: %v", err)
	}
	c.Go(ctx)
	if g.String() != "DDDDD/DAAAD/DAAAD/DAAAD/DDDDD" {
		t.Fatalf("state=%s", g.String())
	}
	if len(g.Log.Cells) != 8 {
		t.Fatalf("logged %d cells", len(g.Log.Cells))
	}
}

func TestConvolution_PeriodicAndSteps(t *testing.T) {
	g := newGrid(t, 3, 1, "DA", nil, "ADD")
	ctx := newContext(g, 1)
	sums, _ := ParseSums("1")
	rules := []ConvolutionRule{{Input: 0, Output: 1, Values: []byte{1}, Sums: sums, P: 1}}
	c, err := NewConvolution(rules, "VonNeumann", false, true, 1, g.C)
	if err != nil {
		t.Fatalf("NewConvolution: %v", err)
	}
	if !c.Go(ctx) || g.String() != "AAA" {
		t.Fatalf("state=%s", g.String())
	}
	if c.Go(ctx) {
		t.Fatalf("step cap ignored")
	}
	if _, err := NewConvolution(nil, "Moore", true, false, 0, 2); err == nil {
		t.Fatalf("Moore accepted in 3-D")
	}
}

func TestLearnWeights(t *testing.T) {
	w, err := LearnWeights(make([]bool, 4), 2, 2, 2, nil)
	if err != nil {
		t.Fatalf("LearnWeights: %v", err)
	}
	if len(w) != 16 {
		t.Fatalf("len=%d", len(w))
	}
	if w[0] != 32 {
		t.Fatalf("w[0]=%v", w[0])
	}
	for k := 1; k < 16; k++ {
		if w[k] != 0.1 {
			t.Fatalf("w[%d]=%v", k, w[k])
		}
	}
	if _, err := LearnWeights(make([]bool, 3), 2, 2, 2, nil); err == nil {
		t.Fatalf("bad sample accepted")
	}
}

func TestConvChain_FillsSubstrate(t *testing.T) {
	g := newGrid(t, 4, 4, "BWS", nil, "SSSS/SSSS/SSBB/SSBB")
	ctx := newContext(g, 2)
	sample := []bool{true, false, false, true}
	weights, err := LearnWeights(sample, 2, 2, 2, nil)
	if err != nil {
		t.Fatalf("LearnWeights: %v", err)
	}
	n := &ConvChain{N: 2, Temperature: 1, Weights: weights, C0: 0, C1: 1, Substrate: 2, Steps: 5}
	ticks := 0
	for n.Go(ctx) {
		ticks++
	}
	if ticks != 5 {
		t.Fatalf("ticks=%d", ticks)
	}
	if g.Count(2) != 0 {
		t.Fatalf("substrate left: %s", g.String())
	}
	// Cells outside the substrate are never toggled.
	for _, i := range []int{10, 11, 14, 15} {
		if g.State[i] != 0 {
			t.Fatalf("cell %d rewritten: %s", i, g.String())
		}
	}

	n.Reset()
	if n.Go(ctx) {
		t.Fatalf("first tick without substrate should fail")
	}
}

func TestParseScale(t *testing.T) {
	cases := []struct {
		in   string
		want Scale
		ok   bool
	}{
		{"2", Scale{2, 1}, true},
		{"1/2", Scale{1, 2}, true},
		{" 3/4 ", Scale{3, 4}, true},
		{"0", Scale{}, false},
		{"a", Scale{}, false},
		{"1/0", Scale{}, false},
	}
	for _, tc := range cases {
		got, err := ParseScale(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("ParseScale(%q)=%v, %v", tc.in, got, err)
		}
	}
}

func TestMap_UpscalesAndSwaps(t *testing.T) {
	g := newGrid(t, 2, 1, "AB", nil, "AB")
	big := g.Resized(4, 2, 1)
	rules := []*grid.Rule{mustRule(t, g, big, "A", "AA/AA"), mustRule(t, g, big, "B", "BB/BB")}
	m := NewMap(big, rules, [3]Scale{{2, 1}, {2, 1}, {1, 1}})
	ctx := newContext(g, 1)
	if !m.Go(ctx) {
		t.Fatalf("map failed")
	}
	if ctx.Grid != big {
		t.Fatalf("grid not swapped")
	}
	if big.String() != "AABB/AABB" {
		t.Fatalf("state=%s", big.String())
	}
	if m.Go(ctx) {
		t.Fatalf("childless map should finish")
	}
}

func TestMap_RunsChildrenOnNewGrid(t *testing.T) {
	g := newGrid(t, 2, 1, "AB", nil, "AA")
	big := g.Resized(4, 1, 1)
	rules := []*grid.Rule{mustRule(t, g, big, "A", "AB")}
	child := NewAll(RuleConfig{Rules: []*grid.Rule{mustRule(t, big, big, "B", "A")}})
	ip := &Interpreter{Root: NewSequence(NewMap(big, rules, [3]Scale{{2, 1}, {1, 1}, {1, 1}}, child)), Grid: g}
	ip.Reset(1)
	if err := g.Load("AA"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for ip.Step() {
	}
	if ip.State() != big || big.String() != "AAAA" {
		t.Fatalf("state=%s", ip.State().String())
	}
	if ip.Counter() != 3 {
		t.Fatalf("ticks=%d", ip.Counter())
	}
}

func checkerOverlap(t *testing.T) *wfc.Overlap {
	t.Helper()
	o, err := wfc.NewOverlap([]byte{0, 1, 1, 0}, 2, 2, 2, 2, true, nil)
	if err != nil {
		t.Fatalf("NewOverlap: %v", err)
	}
	return o
}

func TestWFC_OverlapCollapsesToChecker(t *testing.T) {
	g := newGrid(t, 4, 4, "BW", nil, "")
	o := checkerOverlap(t)
	out := g.Resized(4, 4, 1)
	node := NewOverlapWFC(o, o.Map(g.C, nil), out, WFCOptions{Periodic: true, Tries: 5})
	ip := &Interpreter{Root: NewSequence(node), Grid: g}
	ticks := ip.Run(17, 0)
	if ticks < 2 {
		t.Fatalf("ticks=%d", ticks)
	}
	if ip.State() != out {
		t.Fatalf("grid not swapped")
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v := out.State[out.Index(x, y, 0)]
			if v == out.State[out.Index((x+1)%4, y, 0)] || v == out.State[out.Index(x, (y+1)%4, 0)] {
				t.Fatalf("not a checkerboard:\n%s", out.String())
			}
		}
	}
}

func TestWFC_TilesFollowInput(t *testing.T) {
	g := newGrid(t, 3, 1, "BW", nil, "")
	ts := wfc.TileSet{
		S: 2, SZ: 1,
		Tiles: []wfc.Tile{
			{Name: "black", Data: []byte{0, 0, 0, 0}},
			{Name: "white", Data: []byte{1, 1, 1, 1}},
		},
		Neighbors: []wfc.Neighbor{
			{Left: "black", Right: "black"},
			{Left: "white", Right: "white"},
			{Left: "black", Right: "white"},
			{Left: "white", Right: "black"},
		},
	}
	tl, err := wfc.NewTiles(ts, g.C)
	if err != nil {
		t.Fatalf("NewTiles: %v", err)
	}
	mapping, err := tl.Map(g.C, map[byte][]string{0: {"black"}, 1: {"white"}})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	omx, omy, omz := tl.OutputSize(3, 1, 1, 0, 0)
	out := g.Resized(omx, omy, omz)
	node := NewTileWFC(tl, mapping, 3, 1, 1, 0, 0, out, WFCOptions{Tries: 3})

	ctx := newContext(g, 4)
	if err := g.Load("BWB"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for node.Go(ctx) {
		tick(ctx)
	}
	if out.String() != "BBWWBB/BBWWBB" {
		t.Fatalf("state=%s", out.String())
	}
}
