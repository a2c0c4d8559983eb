package log

import (
	"errors"
	"testing"

	"gridweave.dev/internal/grid"
)

func mustGrid(t *testing.T, mx, my int, values string) *grid.Grid {
	t.Helper()
	g, err := grid.New(mx, my, 1, values, nil)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return g
}

func endTick(g *grid.Grid) { g.Log.EndTick() }

func TestFrameLogger_PlaysBack(t *testing.T) {
	dir := t.TempDir()
	l := NewFrameLogger(dir, 0, 0)

	g := mustGrid(t, 3, 2, "BW")
	if err := l.Record(0, g); err != nil {
		t.Fatalf("Record: %v", err)
	}
	g.Set(0, 1)
	g.Set(4, 1)
	g.Set(0, 0)
	g.Set(0, 1)
	endTick(g)
	if err := l.Record(1, g); err != nil {
		t.Fatalf("Record: %v", err)
	}
	endTick(g)
	if err := l.Record(2, g); err != nil {
		t.Fatalf("Record: %v", err)
	}
	want := g.String()

	// A grid with other dimensions takes over.
	h := mustGrid(t, 2, 2, "XYZ")
	h.Log = g.Log
	h.Set(3, 2)
	endTick(h)
	if err := l.Record(3, h); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var frames []Frame
	var p Player
	err := ReadFrames(dir, func(f Frame) error {
		frames = append(frames, f)
		if err := p.Apply(f); err != nil {
			return err
		}
		if f.Tick == 2 && p.Grid.String() != want {
			t.Fatalf("tick 2 state=%s want %s", p.Grid.String(), want)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(frames) != 4 {
		t.Fatalf("frames=%d", len(frames))
	}
	if !frames[0].Keyframe() || frames[1].Keyframe() || frames[2].Keyframe() || !frames[3].Keyframe() {
		t.Fatalf("keyframes: %v %v %v %v", frames[0].Keyframe(), frames[1].Keyframe(), frames[2].Keyframe(), frames[3].Keyframe())
	}
	if len(frames[1].Cells) != 2 || frames[1].Values != "WW" {
		t.Fatalf("tick 1 cells=%v values=%q", frames[1].Cells, frames[1].Values)
	}
	if got := p.Grid.String(); got != "XX/XZ" {
		t.Fatalf("final=%s", got)
	}
}

func TestFrameLogger_KeepsUnloggedWrites(t *testing.T) {
	dir := t.TempDir()
	l := NewFrameLogger(dir, 0, 0)
	g := mustGrid(t, 3, 1, "BW")
	if err := l.Record(0, g); err != nil {
		t.Fatalf("Record: %v", err)
	}
	copy(g.State, []byte{1, 0, 1})
	endTick(g)
	if err := l.Record(1, g); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var p Player
	var last Frame
	err := ReadFrames(dir, func(f Frame) error {
		last = f
		return p.Apply(f)
	})
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if last.Keyframe() || len(last.Cells) != 2 || last.Values != "WW" {
		t.Fatalf("tick 1 cells=%v values=%q", last.Cells, last.Values)
	}
	if got := p.Grid.String(); got != "WBW" {
		t.Fatalf("final=%s", got)
	}
}

func TestFrameLogger_KeyframeEveryAndRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewFrameLogger(dir, 2, 1)
	g := mustGrid(t, 4, 1, "BW")
	for tick := 0; tick < 5; tick++ {
		if tick > 0 {
			g.Set(tick-1, 1)
			endTick(g)
		}
		if err := l.Record(tick, g); err != nil {
			t.Fatalf("Record %d: %v", tick, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(dir, "frames")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 5 {
		t.Fatalf("files=%d want one per frame", len(files))
	}

	var keys []int
	var p Player
	err = ReadFrames(dir, func(f Frame) error {
		if f.Keyframe() {
			keys = append(keys, f.Tick)
		}
		return p.Apply(f)
	})
	if err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(keys) != 3 || keys[0] != 0 || keys[1] != 2 || keys[2] != 4 {
		t.Fatalf("keyframes at %v", keys)
	}
	if p.Grid.String() != "WWWW" {
		t.Fatalf("final=%s", p.Grid.String())
	}
}

func TestPlayer_Rejects(t *testing.T) {
	var p Player
	if err := p.Apply(Frame{Tick: 1, Cells: []int{0}, Values: "B"}); err == nil {
		t.Fatalf("delta before keyframe accepted")
	}

	dir := t.TempDir()
	l := NewFrameLogger(dir, 0, 0)
	g := mustGrid(t, 2, 1, "BW")
	if err := l.Record(0, g); err != nil {
		t.Fatalf("Record: %v", err)
	}
	l.Close()
	var first Frame
	if err := ReadFrames(dir, func(f Frame) error { first = f; return nil }); err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}

	p = Player{}
	if err := p.Apply(first); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := p.Apply(Frame{Tick: 3, Digest: first.Digest}); err == nil {
		t.Fatalf("tick gap accepted")
	}
	err := p.Apply(Frame{Tick: 1, Cells: []int{1}, Values: "W", Digest: first.Digest})
	if !errors.Is(err, ErrDigest) {
		t.Fatalf("err=%v", err)
	}
}

func TestReadFrames_EmptyDir(t *testing.T) {
	if err := ReadFrames(t.TempDir(), func(Frame) error { return nil }); err == nil {
		t.Fatalf("expected error")
	}
}
