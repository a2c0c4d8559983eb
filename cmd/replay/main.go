package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	persistlog "gridweave.dev/internal/persistence/log"
	"gridweave.dev/internal/persistence/snapshot"
	"gridweave.dev/internal/verify"
)

var errStop = errors.New("stop")

func main() {
	var (
		framesDir = flag.String("frames", "", "frame log directory containing frames-*.jsonl.zst")
		snapPath  = flag.String("snapshot", "", "path to .snap.zst to check the final state against (optional)")
		toTick    = flag.Int("to_tick", -1, "stop after this tick (optional)")
		show      = flag.Bool("print", false, "print the replayed state")
	)
	flag.Parse()

	if *framesDir == "" {
		fmt.Fprintln(os.Stderr, "missing -frames")
		os.Exit(2)
	}

	var (
		p         persistlog.Player
		checked   int
		keyframes int
	)
	err := persistlog.ReadFrames(*framesDir, func(f persistlog.Frame) error {
		if *toTick >= 0 && f.Tick > *toTick {
			return errStop
		}
		if err := p.Apply(f); err != nil {
			return err
		}
		checked++
		if f.Keyframe() {
			keyframes++
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d frames keyframes=%d last tick=%d dims=%dx%dx%d\n",
		checked, keyframes, p.Tick, p.Grid.MX, p.Grid.MY, p.Grid.MZ)

	if *show {
		fmt.Println(p.Grid.String())
	}
	if *snapPath == "" {
		return
	}

	snap, err := snapshot.Read(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d model=%s seed=%d steps=%d\n", snap.Header.Version, snap.Header.Model, snap.Header.Seed, snap.Header.Steps)
	if snap.Header.Steps != p.Tick {
		fmt.Fprintf(os.Stderr, "snapshot is at tick %d, replay stopped at %d\n", snap.Header.Steps, p.Tick)
		os.Exit(1)
	}
	r := verify.Compare(snap, p.Grid)
	fmt.Println(r.Summary(10))
	if !r.Perfect() {
		os.Exit(1)
	}
}
