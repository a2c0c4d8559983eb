package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestSQLiteIndex_RecordRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	idx.RecordRun(Run{Model: "maze", Seed: 7, Steps: 100, Ticks: 41, Digest: "abc", Snapshot: "/s/maze_7.snap.zst", Started: started, Duration: 1500 * time.Millisecond})
	idx.RecordRun(Run{ID: "fixed", Model: "maze", Seed: 8, Ticks: 3, Digest: "def", Started: started.Add(time.Second)})
	idx.RecordRun(Run{Model: "cave", Seed: 1, Digest: "x", Started: started})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 3 {
		t.Fatalf("runs=%d want 3", n)
	}

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	runs, err := idx.Runs(context.Background(), "maze")
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("maze runs=%d", len(runs))
	}
	if runs[0].ID == "" || runs[0].Ticks != 41 || runs[0].Duration != 1500*time.Millisecond || !runs[0].Started.Equal(started) {
		t.Fatalf("run[0]=%+v", runs[0])
	}
	if runs[1].ID != "fixed" || runs[1].Seed != 8 {
		t.Fatalf("run[1]=%+v", runs[1])
	}
}

func TestSQLiteIndex_References(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	if _, ok, err := idx.LookupReference(ctx, "maze", 1); err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	for _, d := range []string{"first", "second"} {
		if err := idx.SetReference(ctx, Reference{Model: "maze", Seed: 1, Digest: d, Snapshot: "ref.snap.zst"}); err != nil {
			t.Fatalf("SetReference: %v", err)
		}
	}
	ref, ok, err := idx.LookupReference(ctx, "maze", 1)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if ref.Digest != "second" || ref.Snapshot != "ref.snap.zst" || ref.Updated.IsZero() {
		t.Fatalf("ref=%+v", ref)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan Run, 1)}
	s.RecordRun(Run{Model: "a"})
	s.RecordRun(Run{Model: "b"})

	st := s.Stats()
	if st.DroppedTotal != 1 {
		t.Fatalf("DroppedTotal=%d want=1", st.DroppedTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
	if r := <-s.ch; r.ID == "" {
		t.Fatalf("queued run has no id")
	}

	var nilIndex *SQLiteIndex
	nilIndex.RecordRun(Run{})
}
