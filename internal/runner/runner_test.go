package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	persistlog "gridweave.dev/internal/persistence/log"
	"gridweave.dev/internal/runcfg"
)

const growth = `
name: grow
values: BW
size: [5, 5]
origin: true
root:
  kind: one
  rules: [{in: WB, out: WW}]
`

func writeModel(t *testing.T, src string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(p, []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestRun_RecordingReplaysToSnapshot(t *testing.T) {
	path := writeModel(t, growth)
	dir := filepath.Join(t.TempDir(), "frames")
	res, err := Run(context.Background(), Options{
		Model:  path,
		Seed:   5,
		Record: runcfg.Record{Dir: dir, KeyframeEvery: 7, RotateBytes: 256},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 24 growth ticks plus the tick in which the rule finds nothing.
	if res.Ticks != 25 {
		t.Fatalf("ticks=%d want 25", res.Ticks)
	}
	if res.Snapshot.Header.Model != "grow" || res.Snapshot.Header.Steps != 25 {
		t.Fatalf("header=%+v", res.Snapshot.Header)
	}

	var p persistlog.Player
	n := 0
	if err := persistlog.ReadFrames(dir, func(f persistlog.Frame) error {
		n++
		return p.Apply(f)
	}); err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if n != 26 || p.Tick != res.Ticks {
		t.Fatalf("frames=%d last tick=%d, want 26 frames ending at %d", n, p.Tick, res.Ticks)
	}
	if p.Grid.Digest() != res.Snapshot.Digest() {
		t.Fatalf("replayed %s, ran %s", p.Grid.String(), res.Snapshot.String())
	}
}

func TestRun_StepsAndDeterminism(t *testing.T) {
	path := writeModel(t, growth)
	a, err := Run(context.Background(), Options{Model: path, Seed: 9, Steps: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := Run(context.Background(), Options{Model: path, Seed: 9, Steps: 10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if a.Ticks != 10 || a.Snapshot.Digest() != b.Snapshot.Digest() {
		t.Fatalf("ticks=%d digests %s %s", a.Ticks, a.Snapshot.Digest(), b.Snapshot.Digest())
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, Options{Model: writeModel(t, growth), Seed: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestRun_BadModel(t *testing.T) {
	if _, err := Run(context.Background(), Options{Model: writeModel(t, "values: BW\n")}); err == nil {
		t.Fatalf("expected error")
	}
}
