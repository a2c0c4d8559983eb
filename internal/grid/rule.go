package grid

import (
	"fmt"
	"math/bits"
	"strings"

	"gridweave.dev/internal/symmetry"
)

// Shift is an offset inside a rule pattern.
type Shift struct{ X, Y, Z int }

// Rule rewrites an input block of waves into an output block of values.
// Output value 0xff leaves the cell untouched.
type Rule struct {
	IMX, IMY, IMZ int
	OMX, OMY, OMZ int
	Input         []uint32
	Output        []byte
	// BInput is the single value each input cell accepts, or 0xff for the
	// wildcard.
	BInput []byte
	P      float64
	C      int

	// IShifts[c] lists the input offsets that accept value c.
	IShifts [][]Shift
	// OShifts[c] lists the output offsets that may hold value c afterwards.
	// Only set when input and output have the same shape.
	OShifts [][]Shift
}

func NewRule(input []uint32, imx, imy, imz int, output []byte, omx, omy, omz, c int, p float64) *Rule {
	r := &Rule{
		IMX: imx, IMY: imy, IMZ: imz,
		OMX: omx, OMY: omy, OMZ: omz,
		Input:  input,
		Output: output,
		P:      p,
		C:      c,
	}

	lists := make([][]Shift, c)
	for z := 0; z < imz; z++ {
		for y := 0; y < imy; y++ {
			for x := 0; x < imx; x++ {
				w := input[x+y*imx+z*imx*imy]
				for v := 0; v < c; v, w = v+1, w>>1 {
					if w&1 == 1 {
						lists[v] = append(lists[v], Shift{x, y, z})
					}
				}
			}
		}
	}
	r.IShifts = lists

	if omx == imx && omy == imy && omz == imz {
		olists := make([][]Shift, c)
		for z := 0; z < omz; z++ {
			for y := 0; y < omy; y++ {
				for x := 0; x < omx; x++ {
					o := output[x+y*omx+z*omx*omy]
					if o != 0xff {
						olists[o] = append(olists[o], Shift{x, y, z})
						continue
					}
					for v := 0; v < c; v++ {
						olists[v] = append(olists[v], Shift{x, y, z})
					}
				}
			}
		}
		r.OShifts = olists
	}

	wildcard := uint32(1)<<uint(c) - 1
	r.BInput = make([]byte, len(input))
	for i, w := range input {
		if w == wildcard {
			r.BInput[i] = 0xff
		} else {
			r.BInput[i] = byte(bits.TrailingZeros32(w))
		}
	}
	return r
}

// ParseRule compiles in/out pattern strings against the alphabets of gin and
// gout. Output '*' leaves the cell untouched. When gin == gout both patterns
// must have the same shape.
func ParseRule(gin, gout *Grid, in, out string, p float64) (*Rule, error) {
	icells, imx, imy, imz, err := ParsePattern(in)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", in, err)
	}
	ocells, omx, omy, omz, err := ParsePattern(out)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", out, err)
	}
	if gin == gout && (imx != omx || imy != omy || imz != omz) {
		return nil, fmt.Errorf("rule %q -> %q: pattern sizes differ", in, out)
	}

	input := make([]uint32, len(icells))
	for i, ch := range icells {
		w, ok := gin.Waves[ch]
		if !ok {
			return nil, fmt.Errorf("rule input %q: %w %q", in, ErrUnknownLabel, ch)
		}
		input[i] = w
	}
	output := make([]byte, len(ocells))
	for i, ch := range ocells {
		if ch == Wildcard {
			output[i] = 0xff
			continue
		}
		v, ok := gout.Values[ch]
		if !ok {
			return nil, fmt.Errorf("rule output %q: %w %q", out, ErrUnknownLabel, ch)
		}
		output[i] = v
	}
	return NewRule(input, imx, imy, imz, output, omx, omy, omz, gin.C, p), nil
}

// ParsePattern splits a pattern into cells in x, y, z order. Layers are
// separated by spaces and listed from the top; rows by '/'.
func ParsePattern(s string) ([]byte, int, int, int, error) {
	layers := strings.Split(s, " ")
	lines := make([][]string, len(layers))
	for i, l := range layers {
		lines[i] = strings.Split(l, "/")
	}
	mz := len(lines)
	my := len(lines[0])
	mx := len(lines[0][0])
	if mx == 0 {
		return nil, 0, 0, 0, fmt.Errorf("empty pattern")
	}
	out := make([]byte, mx*my*mz)
	for z := 0; z < mz; z++ {
		rows := lines[mz-1-z]
		if len(rows) != my {
			return nil, 0, 0, 0, fmt.Errorf("non-rectangular pattern %q", s)
		}
		for y, row := range rows {
			if len(row) != mx {
				return nil, 0, 0, 0, fmt.Errorf("non-rectangular pattern %q", s)
			}
			for x := 0; x < mx; x++ {
				out[x+y*mx+z*mx*my] = row[x]
			}
		}
	}
	return out, mx, my, mz, nil
}

func (r *Rule) ZRotated() *Rule {
	in := make([]uint32, len(r.Input))
	for z := 0; z < r.IMZ; z++ {
		for y := 0; y < r.IMX; y++ {
			for x := 0; x < r.IMY; x++ {
				in[x+y*r.IMY+z*r.IMX*r.IMY] = r.Input[r.IMX-1-y+x*r.IMX+z*r.IMX*r.IMY]
			}
		}
	}
	out := make([]byte, len(r.Output))
	for z := 0; z < r.OMZ; z++ {
		for y := 0; y < r.OMX; y++ {
			for x := 0; x < r.OMY; x++ {
				out[x+y*r.OMY+z*r.OMX*r.OMY] = r.Output[r.OMX-1-y+x*r.OMX+z*r.OMX*r.OMY]
			}
		}
	}
	return NewRule(in, r.IMY, r.IMX, r.IMZ, out, r.OMY, r.OMX, r.OMZ, r.C, r.P)
}

func (r *Rule) YRotated() *Rule {
	in := make([]uint32, len(r.Input))
	for z := 0; z < r.IMX; z++ {
		for y := 0; y < r.IMY; y++ {
			for x := 0; x < r.IMZ; x++ {
				in[x+y*r.IMZ+z*r.IMZ*r.IMY] = r.Input[r.IMX-1-z+y*r.IMX+x*r.IMX*r.IMY]
			}
		}
	}
	out := make([]byte, len(r.Output))
	for z := 0; z < r.OMX; z++ {
		for y := 0; y < r.OMY; y++ {
			for x := 0; x < r.OMZ; x++ {
				out[x+y*r.OMZ+z*r.OMZ*r.OMY] = r.Output[r.OMX-1-z+y*r.OMX+x*r.OMX*r.OMY]
			}
		}
	}
	return NewRule(in, r.IMZ, r.IMY, r.IMX, out, r.OMZ, r.OMY, r.OMX, r.C, r.P)
}

func (r *Rule) Reflected() *Rule {
	in := make([]uint32, len(r.Input))
	for z := 0; z < r.IMZ; z++ {
		for y := 0; y < r.IMY; y++ {
			for x := 0; x < r.IMX; x++ {
				in[x+y*r.IMX+z*r.IMX*r.IMY] = r.Input[r.IMX-1-x+y*r.IMX+z*r.IMX*r.IMY]
			}
		}
	}
	out := make([]byte, len(r.Output))
	for z := 0; z < r.OMZ; z++ {
		for y := 0; y < r.OMY; y++ {
			for x := 0; x < r.OMX; x++ {
				out[x+y*r.OMX+z*r.OMX*r.OMY] = r.Output[r.OMX-1-x+y*r.OMX+z*r.OMX*r.OMY]
			}
		}
	}
	return NewRule(in, r.IMX, r.IMY, r.IMZ, out, r.OMX, r.OMY, r.OMZ, r.C, r.P)
}

// Same reports whether two rules have identical shapes and contents.
func (r *Rule) Same(o *Rule) bool {
	if r.IMX != o.IMX || r.IMY != o.IMY || r.IMZ != o.IMZ || r.OMX != o.OMX || r.OMY != o.OMY || r.OMZ != o.OMZ {
		return false
	}
	for i := range r.Input {
		if r.Input[i] != o.Input[i] {
			return false
		}
	}
	for i := range r.Output {
		if r.Output[i] != o.Output[i] {
			return false
		}
	}
	return true
}

// Symmetries expands r over the selected symmetry subgroup. Structurally
// identical variants are kept: selection weights and field scores count
// every variant.
func (r *Rule) Symmetries(subgroup []bool, d2 bool) []*Rule {
	if d2 {
		return symmetry.Square(r, (*Rule).ZRotated, (*Rule).Reflected, nil, subgroup)
	}
	return symmetry.Cube(r, (*Rule).ZRotated, (*Rule).YRotated, (*Rule).Reflected, nil, subgroup)
}
