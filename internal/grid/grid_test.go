package grid

import (
	"errors"
	"testing"

	"gridweave.dev/internal/symmetry"
)

func mustGrid(t *testing.T, mx, my, mz int, values string, unions map[byte]string) *Grid {
	t.Helper()
	g, err := New(mx, my, mz, values, unions)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNew_WavesAndUnions(t *testing.T) {
	g := mustGrid(t, 3, 1, 1, "BRY", map[byte]string{'?': "RY"})
	if g.Waves['B'] != 1 || g.Waves['R'] != 2 || g.Waves['Y'] != 4 {
		t.Fatalf("waves: %v", g.Waves)
	}
	if g.Waves['*'] != 7 {
		t.Fatalf("wildcard=%d", g.Waves['*'])
	}
	if g.Waves['?'] != 6 {
		t.Fatalf("union=%d", g.Waves['?'])
	}
}

func TestNew_Errors(t *testing.T) {
	cases := []struct {
		name   string
		values string
		unions map[byte]string
	}{
		{"repeated", "BB", nil},
		{"reserved", "B*", nil},
		{"union member unknown", "BR", map[byte]string{'?': "RQ"}},
		{"union shadows label", "BR", map[byte]string{'R': "B"}},
		{"empty", "", nil},
	}
	for _, tc := range cases {
		if _, err := New(2, 2, 1, tc.values, tc.unions); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	_, err := New(2, 2, 1, "BR", map[byte]string{'?': "RQ"})
	if !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("want ErrUnknownLabel, got %v", err)
	}
}

func TestLoadString_RoundTrip(t *testing.T) {
	g := mustGrid(t, 3, 2, 2, "BW", nil)
	const s = "BWB/WWW BBB/BWW"
	if err := g.Load(s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := g.String(); got != s {
		t.Fatalf("String=%q want %q", got, s)
	}
	// Bottom layer is listed last.
	if g.State[g.Index(1, 1, 0)] != 1 || g.State[g.Index(1, 0, 1)] != 1 {
		t.Fatalf("layer order wrong: %v", g.State)
	}
	if err := g.Load("BB/BB"); err == nil {
		t.Fatalf("expected size mismatch")
	}
}

func TestMatchesApply_RecordsChangedCellsOnly(t *testing.T) {
	g := mustGrid(t, 3, 1, 1, "BW", nil)
	r, err := ParseRule(g, g, "BB", "WB", 1)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if !g.Matches(r, 1, 0, 0) {
		t.Fatalf("expected match")
	}
	g.Apply(r, 1, 0, 0)
	if g.String() != "BWB" {
		t.Fatalf("state=%s", g)
	}
	if len(g.Log.Cells) != 1 || g.Log.Cells[0] != 1 {
		t.Fatalf("changes=%v", g.Log.Cells)
	}
	if g.Matches(r, 1, 0, 0) {
		t.Fatalf("stale match accepted")
	}
}

func TestParseRule_Validation(t *testing.T) {
	g := mustGrid(t, 3, 3, 1, "BW", nil)
	if _, err := ParseRule(g, g, "BQ", "WW", 1); !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("want unknown label, got %v", err)
	}
	if _, err := ParseRule(g, g, "BB", "W", 1); err == nil {
		t.Fatalf("expected size mismatch")
	}
	if _, err := ParseRule(g, g, "BB/B", "WW/W", 1); err == nil {
		t.Fatalf("expected non-rectangular error")
	}
	r, err := ParseRule(g, g, "B*", "*W", 1)
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	if r.BInput[1] != 0xff || r.Output[0] != 0xff {
		t.Fatalf("wildcards: binput=%v output=%v", r.BInput, r.Output)
	}
	if len(r.IShifts[0]) != 2 || len(r.IShifts[1]) != 1 {
		t.Fatalf("ishifts=%v", r.IShifts)
	}
}

func TestRotations(t *testing.T) {
	g := mustGrid(t, 4, 4, 4, "ABCD", nil)
	r, _ := ParseRule(g, g, "AB", "CD", 1)

	z := r.ZRotated()
	if z.IMX != 1 || z.IMY != 2 {
		t.Fatalf("zrot dims %dx%d", z.IMX, z.IMY)
	}
	// new(x,y) = old(IMX-1-y, x): column reads B then A.
	if z.Input[0] != g.Waves['B'] || z.Input[1] != g.Waves['A'] {
		t.Fatalf("zrot input %v", z.Input)
	}

	f := r.Reflected()
	if f.Input[0] != g.Waves['B'] || f.Output[0] != 3 {
		t.Fatalf("reflect %v %v", f.Input, f.Output)
	}

	y := r.YRotated()
	if y.IMX != 1 || y.IMY != 1 || y.IMZ != 2 {
		t.Fatalf("yrot dims %dx%dx%d", y.IMX, y.IMY, y.IMZ)
	}
	if y.Input[0] != g.Waves['B'] || y.Input[1] != g.Waves['A'] {
		t.Fatalf("yrot input %v", y.Input)
	}
}

func TestSymmetries_KeepIdenticalVariants(t *testing.T) {
	g := mustGrid(t, 5, 5, 1, "BW", nil)
	r, _ := ParseRule(g, g, "BBB/BBB/BBB", "WWW/WWW/WWW", 1)
	all, _ := symmetry.Subgroup("(xy)", true)
	if got := len(r.Symmetries(all, true)); got != 8 {
		t.Fatalf("variants=%d want 8", got)
	}
	none, _ := symmetry.Subgroup("()", true)
	if got := len(r.Symmetries(none, true)); got != 1 {
		t.Fatalf("variants=%d want 1", got)
	}

	g3 := mustGrid(t, 3, 3, 3, "BW", nil)
	r3, _ := ParseRule(g3, g3, "B", "W", 1)
	cube, _ := symmetry.Subgroup("", false)
	if got := len(r3.Symmetries(cube, false)); got != 48 {
		t.Fatalf("cube variants=%d want 48", got)
	}
}

func TestChangeLog_Turns(t *testing.T) {
	l := NewChangeLog()
	l.Add(3)
	l.EndTick()
	l.Add(5)
	l.Add(6)
	l.EndTick()
	if got := l.Since(1); len(got) != 2 || got[0] != 5 {
		t.Fatalf("Since(1)=%v", got)
	}
	if got := l.Tick(0); len(got) != 1 || got[0] != 3 {
		t.Fatalf("Tick(0)=%v", got)
	}
	l.Reset()
	if len(l.Cells) != 0 || len(l.First) != 1 {
		t.Fatalf("reset: %+v", l)
	}
}
