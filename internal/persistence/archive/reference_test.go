package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gridweave.dev/internal/persistence/snapshot"
)

func TestArchiveReference_CopiesSnapshotAndMeta(t *testing.T) {
	dir := t.TempDir()
	snap := snapshot.Grid{
		Header:     snapshot.Header{Version: snapshot.Version, Model: "maze", Seed: 42, Steps: 9},
		MX:         2,
		MY:         1,
		MZ:         1,
		Characters: "BW",
		State:      []byte{0, 1},
	}
	src := filepath.Join(dir, "snapshots", snapshot.FileName("maze", 42))
	if err := snapshot.Write(src, snap); err != nil {
		t.Fatalf("Write: %v", err)
	}

	dst, err := ArchiveReference(dir, src, snap)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if dst != ReferencePath(dir, "maze", 42) {
		t.Fatalf("dst=%s", dst)
	}
	got, err := snapshot.Read(dst)
	if err != nil {
		t.Fatalf("read archived: %v", err)
	}
	if got.Digest() != snap.Digest() {
		t.Fatalf("archived snapshot differs")
	}

	b, err := os.ReadFile(filepath.Join(filepath.Dir(dst), "maze_42.meta.json"))
	if err != nil {
		t.Fatalf("expected meta file: %v", err)
	}
	var meta ReferenceMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Steps != 9 || meta.Digest != snap.Digest() || meta.Snapshot != "maze_42.snap.zst" {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestArchiveReference_NeedsModel(t *testing.T) {
	if _, err := ArchiveReference(t.TempDir(), "missing", snapshot.Grid{}); err == nil {
		t.Fatalf("expected error")
	}
}
