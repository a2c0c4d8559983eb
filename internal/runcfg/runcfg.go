// Package runcfg loads run.yaml, the settings a CLI run starts from before
// flags are applied.
package runcfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Model string `yaml:"model"`
	Seed  int32  `yaml:"seed"`
	// Steps caps the number of ticks; 0 runs until the model stops.
	Steps int `yaml:"steps"`

	SnapshotDir string `yaml:"snapshot_dir"`
	// ArchiveDir holds references/<model>/ for verification.
	ArchiveDir string `yaml:"archive_dir"`
	Record     Record `yaml:"record"`
	DB         string `yaml:"db"`
}

type Record struct {
	Dir string `yaml:"dir"`
	// KeyframeEvery writes a full frame every N ticks; 0 means only the first.
	KeyframeEvery int   `yaml:"keyframe_every"`
	RotateBytes   int64 `yaml:"rotate_bytes"`
}

func Default() Config {
	return Config{
		SnapshotDir: "data/snapshots",
		ArchiveDir:  "data",
		Record:      Record{KeyframeEvery: 100, RotateBytes: 64 << 20},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("run.yaml: %w", err)
	}
	if c.Steps < 0 {
		return c, fmt.Errorf("run.yaml: steps must not be negative")
	}
	return c, nil
}
