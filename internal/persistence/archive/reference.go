package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gridweave.dev/internal/persistence/snapshot"
)

type ReferenceMeta struct {
	Model     string `json:"model"`
	Seed      int32  `json:"seed"`
	Steps     int    `json:"steps"`
	Digest    string `json:"digest"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveReference copies a snapshot into `baseDir/references/<model>/` so
// later runs of the same model and seed can be verified against it.
func ArchiveReference(baseDir, snapshotPath string, snap snapshot.Grid) (string, error) {
	if snap.Header.Model == "" {
		return "", fmt.Errorf("archive: snapshot has no model name")
	}
	dir := filepath.Join(baseDir, "references", snap.Header.Model)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	dst := filepath.Join(dir, snapshot.FileName(snap.Header.Model, snap.Header.Seed))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", err
	}

	meta := ReferenceMeta{
		Model:     snap.Header.Model,
		Seed:      snap.Header.Seed,
		Steps:     snap.Header.Steps,
		Digest:    snap.Digest(),
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	metaPath := filepath.Join(dir, fmt.Sprintf("%s_%d.meta.json", snap.Header.Model, snap.Header.Seed))
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// ReferencePath is where ArchiveReference puts the snapshot for (model, seed).
func ReferencePath(baseDir, model string, seed int32) string {
	return filepath.Join(baseDir, "references", model, snapshot.FileName(model, seed))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
