package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"gridweave.dev/internal/persistence/archive"
	"gridweave.dev/internal/persistence/indexdb"
	"gridweave.dev/internal/persistence/snapshot"
	"gridweave.dev/internal/runner"
	"gridweave.dev/internal/verify"
)

func main() {
	var (
		modelPath  = flag.String("model", "", "model definition")
		seed       = flag.Int("seed", 0, "run seed")
		steps      = flag.Int("steps", 0, "max ticks, 0 = until the model stops")
		archiveDir = flag.String("archive", "data", "directory holding references/<model>/")
		refPath    = flag.String("reference", "", "reference snapshot (default: looked up in -db, then -archive)")
		dbPath     = flag.String("db", "", "sqlite run index (optional)")
		showDiffs  = flag.Int("diffs", 10, "max differing cells to print")
		asJSON     = flag.Bool("json", false, "print the comparison as JSON")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[verify] ", log.LstdFlags|log.Lmicroseconds)

	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "missing -model")
		os.Exit(2)
	}
	ctx := context.Background()

	res, err := runner.Run(ctx, runner.Options{
		Model:  *modelPath,
		Seed:   int32(*seed),
		Steps:  *steps,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("run: %v", err)
	}
	actual := res.Snapshot

	path := *refPath
	if path == "" && *dbPath != "" {
		idx, err := indexdb.OpenSQLite(*dbPath)
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		ref, ok, err := idx.LookupReference(ctx, actual.Header.Model, actual.Header.Seed)
		_ = idx.Close()
		if err != nil {
			logger.Fatalf("lookup reference: %v", err)
		}
		if ok {
			path = ref.Snapshot
		}
	}
	if path == "" {
		path = archive.ReferencePath(*archiveDir, actual.Header.Model, actual.Header.Seed)
	}

	expected, err := snapshot.Read(path)
	if err != nil {
		logger.Fatalf("read reference: %v", err)
	}

	r := verify.Compare(expected, actual)
	if *asJSON {
		b, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(b))
	} else {
		fmt.Println(r.Summary(*showDiffs))
	}
	if !r.Perfect() {
		os.Exit(1)
	}
}
