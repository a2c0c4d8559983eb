package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"gridweave.dev/internal/persistence/indexdb"
	"gridweave.dev/internal/runcfg"
)

const growth = `
name: grow
values: BW
size: [3, 1]
origin: true
root:
  kind: one
  rules: [{in: WB, out: WW}]
`

func testConfig(t *testing.T) runcfg.Config {
	t.Helper()
	dir := t.TempDir()
	model := filepath.Join(dir, "grow.yaml")
	if err := os.WriteFile(model, []byte(growth), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := runcfg.Default()
	cfg.Model = model
	cfg.Seed = 3
	cfg.SnapshotDir = filepath.Join(dir, "snapshots")
	cfg.ArchiveDir = filepath.Join(dir, "data")
	cfg.DB = filepath.Join(dir, "index.sqlite")
	return cfg
}

func runs(t *testing.T, path string) []indexdb.Run {
	t.Helper()
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()
	out, err := idx.Runs(context.Background(), "grow")
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	return out
}

func TestRun_PrintsAndIndexes(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	if err := run(context.Background(), cfg, true, true, &out, log.New(io.Discard, "", 0)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "WWW\n" {
		t.Fatalf("printed %q", got)
	}
	rs := runs(t, cfg.DB)
	if len(rs) != 1 || rs[0].Seed != 3 || rs[0].Ticks != 3 {
		t.Fatalf("runs=%+v", rs)
	}
}

func TestRun_IndexFlushedWhenArchiveFails(t *testing.T) {
	cfg := testConfig(t)
	// A file where the archive directory should be.
	if err := os.WriteFile(cfg.ArchiveDir, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := run(context.Background(), cfg, true, false, io.Discard, log.New(io.Discard, "", 0)); err == nil {
		t.Fatalf("expected archive error")
	}
	if rs := runs(t, cfg.DB); len(rs) != 1 {
		t.Fatalf("runs=%d want 1", len(rs))
	}
}
