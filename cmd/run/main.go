package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gridweave.dev/internal/persistence/archive"
	"gridweave.dev/internal/persistence/indexdb"
	"gridweave.dev/internal/persistence/snapshot"
	"gridweave.dev/internal/runcfg"
	"gridweave.dev/internal/runner"
)

func main() {
	var (
		configPath = flag.String("config", "run.yaml", "run config (optional)")
		modelPath  = flag.String("model", "", "model definition (overrides config)")
		seed       = flag.Int("seed", 0, "run seed (overrides config)")
		steps      = flag.Int("steps", 0, "max ticks, 0 = until the model stops (overrides config)")
		snapDir    = flag.String("snapshots", "", "snapshot directory (overrides config)")
		recordDir  = flag.String("record", "", "frame log directory (overrides config)")
		keyframes  = flag.Int("keyframe_every", 0, "full frame every N ticks (overrides config)")
		dbPath     = flag.String("db", "", "sqlite run index (overrides config)")
		reference  = flag.Bool("reference", false, "archive the result as the reference for this model and seed")
		show       = flag.Bool("print", false, "print the final state")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[run] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := runcfg.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model = *modelPath
		case "seed":
			cfg.Seed = int32(*seed)
		case "steps":
			cfg.Steps = *steps
		case "snapshots":
			cfg.SnapshotDir = *snapDir
		case "record":
			cfg.Record.Dir = *recordDir
		case "keyframe_every":
			cfg.Record.KeyframeEvery = *keyframes
		case "db":
			cfg.DB = *dbPath
		}
	})
	if cfg.Model == "" {
		fmt.Fprintln(os.Stderr, "missing -model")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *reference, *show, os.Stdout, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

// run executes one model run and stores its outputs. The index is closed
// before run returns, so queued rows are written even when a later step fails.
func run(ctx context.Context, cfg runcfg.Config, reference, show bool, out io.Writer, logger *log.Logger) error {
	res, err := runner.Run(ctx, runner.Options{
		Model:  cfg.Model,
		Seed:   cfg.Seed,
		Steps:  cfg.Steps,
		Record: cfg.Record,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	snap := res.Snapshot
	logger.Printf("model=%s seed=%d ticks=%d elapsed=%s", snap.Header.Model, snap.Header.Seed, res.Ticks, res.Duration)

	snapPath := filepath.Join(cfg.SnapshotDir, snapshot.FileName(snap.Header.Model, snap.Header.Seed))
	if err := snapshot.Write(snapPath, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logger.Printf("snapshot %s digest=%s", snapPath, snap.Digest())

	var idx *indexdb.SQLiteIndex
	if cfg.DB != "" {
		idx, err = indexdb.OpenSQLite(cfg.DB)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer idx.Close()
		idx.RecordRun(indexdb.Run{
			Model:    snap.Header.Model,
			Seed:     snap.Header.Seed,
			Steps:    cfg.Steps,
			Ticks:    res.Ticks,
			Digest:   snap.Digest(),
			Snapshot: snapPath,
			Started:  res.Started,
			Duration: res.Duration,
		})
	}

	if reference {
		dst, err := archive.ArchiveReference(cfg.ArchiveDir, snapPath, snap)
		if err != nil {
			return fmt.Errorf("archive reference: %w", err)
		}
		if idx != nil {
			err := idx.SetReference(ctx, indexdb.Reference{
				Model:    snap.Header.Model,
				Seed:     snap.Header.Seed,
				Digest:   snap.Digest(),
				Snapshot: dst,
			})
			if err != nil {
				return fmt.Errorf("index reference: %w", err)
			}
		}
		logger.Printf("reference %s", dst)
	}

	if show {
		fmt.Fprintln(out, snap.String())
	}
	return nil
}
