package log

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gridweave.dev/internal/encoding"
	"gridweave.dev/internal/grid"
	"gridweave.dev/internal/persistence/snapshot"
)

const framePrefix = "frames"

var ErrDigest = errors.New("frame digest mismatch")

// Frame is one line of the frame log. A keyframe carries the whole grid;
// any other frame carries the cells that changed during its tick.
type Frame struct {
	Tick int `json:"tick"`

	Dims  []int  `json:"dims,omitempty"`
	Chars string `json:"chars,omitempty"`
	State string `json:"state,omitempty"`

	Cells  []int  `json:"cells,omitempty"`
	Values string `json:"values,omitempty"`

	Digest string `json:"digest"`
}

func (f Frame) Keyframe() bool { return f.State != "" }

// FrameLogger records a run tick by tick. Deltas are taken against the
// state it recorded last, so writes that bypass the change log are kept.
type FrameLogger struct {
	w     *JSONLZstdWriter
	every int
	last  *grid.Grid
	prev  []byte
}

// NewFrameLogger writes frames-NNNNN.jsonl.zst files into dir. every > 0
// forces a keyframe on ticks that are multiples of it.
func NewFrameLogger(dir string, every int, rotateBytes int64) *FrameLogger {
	return &FrameLogger{w: NewJSONLZstdWriter(dir, framePrefix, rotateBytes), every: every}
}

// Record writes the frame for tick, the state of g after tick ticks. The
// first frame, and any frame whose grid is not the one recorded before it,
// is a keyframe.
func (l *FrameLogger) Record(tick int, g *grid.Grid) error {
	f := Frame{Tick: tick, Digest: snapshot.StateDigest(g.MX, g.MY, g.MZ, g.State)}
	if tick == 0 || g != l.last || len(l.prev) != len(g.State) || (l.every > 0 && tick%l.every == 0) {
		f.Dims = []int{g.MX, g.MY, g.MZ}
		f.Chars = string(g.Characters)
		f.State = encoding.EncodeRLE(g.State)
		l.last = g
		l.prev = append(l.prev[:0], g.State...)
		return l.w.Write(f)
	}

	var values []byte
	for i, v := range g.State {
		if v == l.prev[i] {
			continue
		}
		f.Cells = append(f.Cells, i)
		values = append(values, g.Characters[v])
		l.prev[i] = v
	}
	f.Values = string(values)
	return l.w.Write(f)
}

func (l *FrameLogger) Close() error { return l.w.Close() }

// ReadFrames calls fn with every frame in dir in tick order.
func ReadFrames(dir string, fn func(Frame) error) error {
	files, err := ListFiles(dir, framePrefix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no frame files in %s", dir)
	}
	for _, path := range files {
		err := ScanFile(path, func(line []byte) error {
			var f Frame
			if err := json.Unmarshal(line, &f); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			return fn(f)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Player rebuilds grid states from a frame log.
type Player struct {
	Tick int
	Grid snapshot.Grid
}

// Apply advances the player by one frame and checks the frame digest.
func (p *Player) Apply(f Frame) error {
	started := p.Grid.State != nil
	if started && f.Tick != p.Tick+1 {
		return fmt.Errorf("tick mismatch: want=%d got=%d", p.Tick+1, f.Tick)
	}
	if f.Keyframe() {
		if len(f.Dims) != 3 {
			return fmt.Errorf("tick %d: keyframe dims %v", f.Tick, f.Dims)
		}
		state, err := encoding.DecodeRLE(f.State, f.Dims[0]*f.Dims[1]*f.Dims[2])
		if err != nil {
			return fmt.Errorf("tick %d: %w", f.Tick, err)
		}
		p.Grid.MX, p.Grid.MY, p.Grid.MZ = f.Dims[0], f.Dims[1], f.Dims[2]
		p.Grid.Characters = f.Chars
		p.Grid.State = state
	} else {
		if !started {
			return fmt.Errorf("tick %d: delta before first keyframe", f.Tick)
		}
		if len(f.Cells) != len(f.Values) {
			return fmt.Errorf("tick %d: %d cells for %d values", f.Tick, len(f.Cells), len(f.Values))
		}
		for k, i := range f.Cells {
			if i < 0 || i >= len(p.Grid.State) {
				return fmt.Errorf("tick %d: cell %d out of range", f.Tick, i)
			}
			v := strings.IndexByte(p.Grid.Characters, f.Values[k])
			if v < 0 {
				return fmt.Errorf("tick %d: unknown value %q", f.Tick, f.Values[k])
			}
			p.Grid.State[i] = byte(v)
		}
	}
	p.Tick = f.Tick
	if got := p.Grid.Digest(); got != f.Digest {
		return fmt.Errorf("%w at tick %d: got=%s want=%s", ErrDigest, f.Tick, got, f.Digest)
	}
	return nil
}
