// Package runner drives one model run from a definition file to a final
// snapshot, optionally recording every tick.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"gridweave.dev/internal/model"
	persistlog "gridweave.dev/internal/persistence/log"
	"gridweave.dev/internal/persistence/snapshot"
	"gridweave.dev/internal/runcfg"
)

type Options struct {
	Model string
	Seed  int32
	// Steps caps the number of ticks; 0 runs until the model stops.
	Steps int
	// Record.Dir empty disables the frame log.
	Record runcfg.Record
	Logger *log.Logger
}

type Result struct {
	Snapshot snapshot.Grid
	Ticks    int
	Started  time.Time
	Duration time.Duration
}

// Run loads, compiles and runs the model. ctx is checked between ticks; a
// cancelled run returns ctx.Err().
func Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	m, err := model.Load(opts.Model)
	if err != nil {
		return res, err
	}
	ip, err := model.Compile(m)
	if err != nil {
		return res, fmt.Errorf("%s: %w", opts.Model, err)
	}
	ip.Logger = opts.Logger

	var frames *persistlog.FrameLogger
	if opts.Record.Dir != "" {
		frames = persistlog.NewFrameLogger(opts.Record.Dir, opts.Record.KeyframeEvery, opts.Record.RotateBytes)
		defer frames.Close()
	}

	res.Started = time.Now()
	ip.Reset(opts.Seed)
	if frames != nil {
		if err := frames.Record(0, ip.State()); err != nil {
			return res, fmt.Errorf("record: %w", err)
		}
	}
	for opts.Steps <= 0 || ip.Counter() < opts.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		running := ip.Step()
		if frames != nil {
			if err := frames.Record(ip.Counter(), ip.State()); err != nil {
				return res, fmt.Errorf("record: %w", err)
			}
		}
		if !running {
			break
		}
	}
	res.Duration = time.Since(res.Started)
	res.Ticks = ip.Counter()
	res.Snapshot = snapshot.FromGrid(m.Name, opts.Seed, res.Ticks, ip.State())

	if frames != nil {
		if err := frames.Close(); err != nil {
			return res, fmt.Errorf("record: %w", err)
		}
	}
	return res, nil
}
