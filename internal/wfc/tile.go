package wfc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gridweave.dev/internal/rng"
	"gridweave.dev/internal/symmetry"
)

// Tile is one named S×S×SZ block, values in the output grid's alphabet.
type Tile struct {
	Name   string
	Weight float64
	Data   []byte
}

// Neighbor declares that Right may sit at +x of Left, or Top at +z of
// Bottom. Tile references may carry a rotation prefix such as "zz corner",
// applied right to left.
type Neighbor struct {
	Left, Right string
	Top, Bottom string
}

// TileSet is a tile model as written in a model definition.
type TileSet struct {
	S, SZ        int
	Tiles        []Tile
	Neighbors    []Neighbor
	FullSymmetry bool
}

// Tiles is a compiled tile set: every distinct variant of every tile and the
// adjacency between variants along the six directions.
type Tiles struct {
	S, SZ      int
	Data       [][]byte
	Weights    []float64
	Positions  map[string][]int
	Propagator [][][]int
}

// NewTiles expands ts into variants and builds its propagator. c is the
// size of the output alphabet.
func NewTiles(ts TileSet, c int) (*Tiles, error) {
	s, sz := ts.S, ts.SZ
	if s <= 0 || sz <= 0 {
		return nil, fmt.Errorf("wfc: bad tile size %dx%dx%d", s, s, sz)
	}
	if len(ts.Tiles) == 0 {
		return nil, errors.New("wfc: tile set has no tiles")
	}
	if ts.FullSymmetry && s != sz {
		return nil, fmt.Errorf("wfc: full symmetry needs cubic tiles, got %dx%dx%d", s, s, sz)
	}

	tr := transforms{s, sz}
	same := func(a, b []byte) bool { return bytes.Equal(a, b) }
	tl := &Tiles{S: s, SZ: sz, Positions: map[string][]int{}}
	for _, tile := range ts.Tiles {
		if len(tile.Data) != s*s*sz {
			return nil, fmt.Errorf("wfc: tile %q has %d cells, want %d", tile.Name, len(tile.Data), s*s*sz)
		}
		for _, v := range tile.Data {
			if int(v) >= c {
				return nil, fmt.Errorf("%w: tile %q value %d", ErrAlphabet, tile.Name, v)
			}
		}
		if _, dup := tl.Positions[tile.Name]; dup {
			return nil, fmt.Errorf("wfc: duplicate tile %q", tile.Name)
		}
		var variants [][]byte
		if ts.FullSymmetry {
			variants = symmetry.Cube(tile.Data, tr.zRotate, tr.yRotate, tr.xReflect, same, nil)
		} else {
			variants = symmetry.Square(tile.Data, tr.zRotate, tr.xReflect, same, nil)
		}
		weight := tile.Weight
		if weight == 0 {
			weight = 1
		}
		for _, v := range variants {
			tl.Positions[tile.Name] = append(tl.Positions[tile.Name], len(tl.Data))
			tl.Data = append(tl.Data, v)
			tl.Weights = append(tl.Weights, weight)
		}
	}

	dense := make([][][]bool, 6)
	for d := range dense {
		dense[d] = make([][]bool, len(tl.Data))
		for t := range dense[d] {
			dense[d][t] = make([]bool, len(tl.Data))
		}
	}
	link := func(d int, a, b []byte) {
		i, j := tl.index(a), tl.index(b)
		if i >= 0 && j >= 0 {
			dense[d][i][j] = true
		}
	}

	for _, nb := range ts.Neighbors {
		horizontal := nb.Left != "" && nb.Right != ""
		vertical := nb.Top != "" && nb.Bottom != ""
		if horizontal == vertical {
			return nil, fmt.Errorf("wfc: neighbor needs either left/right or top/bottom: %+v", nb)
		}
		if horizontal {
			left, err := tl.resolve(nb.Left, tr)
			if err != nil {
				return nil, err
			}
			right, err := tl.resolve(nb.Right, tr)
			if err != nil {
				return nil, err
			}
			if ts.FullSymmetry {
				pairs := func(d int, a, b []byte, rotate, reflect func([]byte) []byte) {
					asym := symmetry.Square(a, rotate, reflect, nil, nil)
					bsym := symmetry.Square(b, rotate, reflect, nil, nil)
					for i := range asym {
						link(d, asym[i], bsym[i])
						link(d, reflect(bsym[i]), reflect(asym[i]))
					}
				}
				pairs(0, left, right, tr.xRotate, tr.yReflect)
				pairs(1, tr.zRotate(left), tr.zRotate(right), tr.yRotate, tr.zReflect)
				pairs(4, tr.yRotate(left), tr.yRotate(right), tr.zRotate, tr.xReflect)
				continue
			}
			link(0, left, right)
			link(0, tr.yReflect(left), tr.yReflect(right))
			link(0, tr.xReflect(right), tr.xReflect(left))
			link(0, tr.yReflect(tr.xReflect(right)), tr.yReflect(tr.xReflect(left)))

			down, up := tr.zRotate(left), tr.zRotate(right)
			link(1, down, up)
			link(1, tr.xReflect(down), tr.xReflect(up))
			link(1, tr.yReflect(up), tr.yReflect(down))
			link(1, tr.xReflect(tr.yReflect(up)), tr.xReflect(tr.yReflect(down)))
			continue
		}
		if ts.FullSymmetry {
			return nil, errors.New("wfc: full-symmetry tile sets take left/right neighbors only")
		}
		bottom, err := tl.resolve(nb.Bottom, tr)
		if err != nil {
			return nil, err
		}
		top, err := tl.resolve(nb.Top, tr)
		if err != nil {
			return nil, err
		}
		bsym := symmetry.Square(bottom, tr.zRotate, tr.xReflect, nil, nil)
		tsym := symmetry.Square(top, tr.zRotate, tr.xReflect, nil, nil)
		for i := range bsym {
			link(4, bsym[i], tsym[i])
		}
	}

	for t2 := range tl.Data {
		for t1 := range tl.Data {
			dense[2][t2][t1] = dense[0][t1][t2]
			dense[3][t2][t1] = dense[1][t1][t2]
			dense[5][t2][t1] = dense[4][t1][t2]
		}
	}
	tl.Propagator = make([][][]int, 6)
	for d := range dense {
		tl.Propagator[d] = make([][]int, len(tl.Data))
		for t1 := range dense[d] {
			for t2, ok := range dense[d][t1] {
				if ok {
					tl.Propagator[d][t1] = append(tl.Propagator[d][t1], t2)
				}
			}
		}
	}
	return tl, nil
}

func (tl *Tiles) index(p []byte) int {
	for t, d := range tl.Data {
		if bytes.Equal(d, p) {
			return t
		}
	}
	return -1
}

// resolve turns "prefix name" into the named tile's base variant rotated by
// the prefix.
func (tl *Tiles) resolve(ref string, tr transforms) ([]byte, error) {
	prefix, name := "", ref
	if i := strings.LastIndexByte(ref, ' '); i >= 0 {
		prefix, name = ref[:i], ref[i+1:]
	}
	pos, ok := tl.Positions[name]
	if !ok {
		return nil, fmt.Errorf("wfc: unknown tile %q", name)
	}
	out := tl.Data[pos[0]]
	for i := len(prefix) - 1; i >= 0; i-- {
		switch prefix[i] {
		case 'x':
			out = tr.xRotate(out)
		case 'y':
			out = tr.yRotate(out)
		case 'z':
			out = tr.zRotate(out)
		case ' ':
		default:
			return nil, fmt.Errorf("wfc: bad rotation %q in %q", prefix[i], ref)
		}
	}
	return out, nil
}

// Map builds the ban table for Solver.Init: allowed maps an input value to
// the tile names permitted there. Input values without an entry allow every
// variant.
func (tl *Tiles) Map(inputC int, allowed map[byte][]string) ([][]bool, error) {
	m := make([][]bool, inputC)
	for v := range m {
		m[v] = make([]bool, len(tl.Data))
		names, ok := allowed[byte(v)]
		if !ok {
			for t := range m[v] {
				m[v][t] = true
			}
			continue
		}
		for _, name := range names {
			pos, ok := tl.Positions[name]
			if !ok {
				return nil, fmt.Errorf("wfc: unknown tile %q", name)
			}
			for _, t := range pos {
				m[v][t] = true
			}
		}
	}
	return m, nil
}

// Model returns the collapse model for an mx×my×mz wave. Flat waves use the
// four in-plane directions only.
func (tl *Tiles) Model(mx, my, mz int, periodic, shannon bool) *Model {
	prop := tl.Propagator
	if mz == 1 {
		prop = prop[:4]
	}
	return &Model{
		Propagator: prop,
		Weights:    tl.Weights,
		N:          1,
		MX:         mx,
		MY:         my,
		MZ:         mz,
		Periodic:   periodic,
		Shannon:    shannon,
	}
}

// OutputSize is the size of the grid a wave of mx×my×mz tiles is written to.
func (tl *Tiles) OutputSize(mx, my, mz, overlap, overlapz int) (int, int, int) {
	return (tl.S-overlap)*mx + overlap, (tl.S-overlap)*my + overlap, (tl.SZ-overlapz)*mz + overlapz
}

// Vote writes the block of every wave cell into out (omx×omy×omz), each voxel
// taking the value most still-possible variants agree on.
func (tl *Tiles) Vote(w *Wave, mx, my, mz, overlap, overlapz int, out []byte, omx, omy, omz, c int, random *rng.Random) {
	s, sz := tl.S, tl.SZ
	votes := make([]int, s*s*sz*c)
	for z := 0; z < mz; z++ {
		for y := 0; y < my; y++ {
			for x := 0; x < mx; x++ {
				i := x + y*mx + z*mx*my
				for k := range votes {
					votes[k] = 0
				}
				for t, data := range tl.Data {
					if !w.Possible(i, t) {
						continue
					}
					for di, v := range data {
						votes[di*c+int(v)]++
					}
				}
				for dz := 0; dz < sz; dz++ {
					for dy := 0; dy < s; dy++ {
						for dx := 0; dx < s; dx++ {
							di := dx + dy*s + dz*s*s
							v := argmaxVote(votes[di*c:(di+1)*c], random)
							ox := x*(s-overlap) + dx
							oy := y*(s-overlap) + dy
							oz := z*(sz-overlapz) + dz
							if ox < omx && oy < omy && oz < omz {
								out[ox+oy*omx+oz*omx*omy] = v
							}
						}
					}
				}
			}
		}
	}
}

// transforms are the voxel rotations and reflections of an S×S×SZ block.
type transforms struct{ s, sz int }

func (tr transforms) build(f func(x, y, z int) int, p []byte) []byte {
	s := tr.s
	out := make([]byte, len(p))
	for z := 0; z < tr.sz; z++ {
		for y := 0; y < s; y++ {
			for x := 0; x < s; x++ {
				out[x+y*s+z*s*s] = p[f(x, y, z)]
			}
		}
	}
	return out
}

func (tr transforms) zRotate(p []byte) []byte {
	s := tr.s
	return tr.build(func(x, y, z int) int { return y + (s-1-x)*s + z*s*s }, p)
}

func (tr transforms) yRotate(p []byte) []byte {
	s := tr.s
	return tr.build(func(x, y, z int) int { return z + y*s + (s-1-x)*s*s }, p)
}

func (tr transforms) xRotate(p []byte) []byte {
	s := tr.s
	return tr.build(func(x, y, z int) int { return x + z*s + (s-1-y)*s*s }, p)
}

func (tr transforms) xReflect(p []byte) []byte {
	s := tr.s
	return tr.build(func(x, y, z int) int { return s - 1 - x + y*s + z*s*s }, p)
}

func (tr transforms) yReflect(p []byte) []byte {
	s := tr.s
	return tr.build(func(x, y, z int) int { return x + (s-1-y)*s + z*s*s }, p)
}

func (tr transforms) zReflect(p []byte) []byte {
	s, sz := tr.s, tr.sz
	return tr.build(func(x, y, z int) int { return x + y*s + (sz-1-z)*s*s }, p)
}
