package snapshot

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"gridweave.dev/internal/grid"
)

const Version = 1

var ErrVersion = errors.New("snapshot: unsupported version")

type Header struct {
	Version int    `json:"version"`
	Model   string `json:"model"`
	Seed    int32  `json:"seed"`
	// Steps is the number of ticks the run completed.
	Steps int `json:"steps"`
}

// Grid is the final state of one run.
type Grid struct {
	Header Header `json:"header"`

	MX, MY, MZ int
	Characters string
	State      []byte
}

// FromGrid captures g after a run of model with seed.
func FromGrid(model string, seed int32, steps int, g *grid.Grid) Grid {
	state := make([]byte, len(g.State))
	copy(state, g.State)
	return Grid{
		Header:     Header{Version: Version, Model: model, Seed: seed, Steps: steps},
		MX:         g.MX,
		MY:         g.MY,
		MZ:         g.MZ,
		Characters: string(g.Characters),
		State:      state,
	}
}

// FileName is the conventional name of the snapshot for (model, seed).
func FileName(model string, seed int32) string {
	return fmt.Sprintf("%s_%d.snap.zst", model, seed)
}

// String renders the state row by row, layers split by spaces from the top.
func (s Grid) String() string {
	b := make([]byte, 0, len(s.State)+s.MY*s.MZ)
	for z := s.MZ - 1; z >= 0; z-- {
		if z != s.MZ-1 {
			b = append(b, ' ')
		}
		for y := 0; y < s.MY; y++ {
			if y > 0 {
				b = append(b, '/')
			}
			for x := 0; x < s.MX; x++ {
				v := s.State[x+y*s.MX+z*s.MX*s.MY]
				if int(v) < len(s.Characters) {
					b = append(b, s.Characters[v])
				} else {
					b = append(b, '?')
				}
			}
		}
	}
	return string(b)
}

func (s Grid) Digest() string { return StateDigest(s.MX, s.MY, s.MZ, s.State) }

// StateDigest is a sha256 over the dimensions and the state.
func StateDigest(mx, my, mz int, state []byte) string {
	h := sha256.New()
	var dims [12]byte
	binary.LittleEndian.PutUint32(dims[0:], uint32(mx))
	binary.LittleEndian.PutUint32(dims[4:], uint32(my))
	binary.LittleEndian.PutUint32(dims[8:], uint32(mz))
	h.Write(dims[:])
	h.Write(state)
	return hex.EncodeToString(h.Sum(nil))
}

func Write(path string, snap Grid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func Read(path string) (Grid, error) {
	var snap Grid
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("%w %d", ErrVersion, h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if len(snap.State) != snap.MX*snap.MY*snap.MZ {
		return snap, fmt.Errorf("snapshot: %d cells for %dx%dx%d", len(snap.State), snap.MX, snap.MY, snap.MZ)
	}
	return snap, nil
}
