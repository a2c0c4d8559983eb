// Package symmetry enumerates the square (8) and cube (48) symmetry groups
// over arbitrary values and resolves the named subgroups used in model files.
package symmetry

import "fmt"

var squareSubgroups = map[string][]bool{
	"()":     {true, false, false, false, false, false, false, false},
	"(x)":    {true, true, false, false, false, false, false, false},
	"(y)":    {true, false, false, false, false, true, false, false},
	"(x)(y)": {true, true, false, false, true, true, false, false},
	"(xy+)":  {true, false, true, false, true, false, true, false},
	"(xy)":   {true, true, true, true, true, true, true, true},
}

var cubeSubgroups = map[string][]bool{
	"()":     cubeMask(func(l int) bool { return l == 0 }),
	"(x)":    cubeMask(func(l int) bool { return l == 0 || l == 1 }),
	"(z)":    cubeMask(func(l int) bool { return l == 0 || l == 17 }),
	"(xy)":   cubeMask(func(l int) bool { return l < 8 }),
	"(xyz+)": cubeMask(func(l int) bool { return l%2 == 0 }),
	"(xyz)":  cubeMask(func(int) bool { return true }),
}

func cubeMask(f func(int) bool) []bool {
	m := make([]bool, 48)
	for i := range m {
		m[i] = f(i)
	}
	return m
}

// Subgroup resolves a subgroup name for a 2-D (square) or 3-D (cube) grid.
// An empty name selects the full group.
func Subgroup(name string, d2 bool) ([]bool, error) {
	table := cubeSubgroups
	full := "(xyz)"
	if d2 {
		table = squareSubgroups
		full = "(xy)"
	}
	if name == "" {
		name = full
	}
	m, ok := table[name]
	if !ok {
		return nil, fmt.Errorf("unknown symmetry %q", name)
	}
	out := make([]bool, len(m))
	copy(out, m)
	return out, nil
}

// Square returns the elements of the square group selected by subgroup, in the
// order e, b, a, ba, a², ba², a³, ba³ (a = rotate, b = reflect). When same is
// nil every selected element is returned, including structural duplicates.
func Square[T any](thing T, rotate, reflect func(T) T, same func(T, T) bool, subgroup []bool) []T {
	things := make([]T, 8)
	things[0] = thing
	things[1] = reflect(things[0])
	things[2] = rotate(things[0])
	things[3] = reflect(things[2])
	things[4] = rotate(things[2])
	things[5] = reflect(things[4])
	things[6] = rotate(things[4])
	things[7] = reflect(things[6])
	return collect(things, same, subgroup)
}

// Cube returns the elements of the 48-element cube group generated by a
// (z-rotation), b (y-rotation) and r (reflection) selected by subgroup.
func Cube[T any](thing T, a, b, r func(T) T, same func(T, T) bool, subgroup []bool) []T {
	s := make([]T, 48)
	s[0] = thing
	s[1] = r(s[0])
	s[2] = a(s[0])
	s[3] = r(s[2])
	s[4] = a(s[2])
	s[5] = r(s[4])
	s[6] = a(s[4])
	s[7] = r(s[6])
	for i := 8; i < 32; i += 2 {
		s[i] = b(s[i-8])
		s[i+1] = r(s[i])
	}
	for i, src := range []int{8, 10, 12, 14, 24, 26, 28, 30} {
		k := 32 + 2*i
		s[k] = a(s[src])
		s[k+1] = r(s[k])
	}
	return collect(s, same, subgroup)
}

func collect[T any](things []T, same func(T, T) bool, subgroup []bool) []T {
	var out []T
	for i, t := range things {
		if subgroup != nil && !subgroup[i] {
			continue
		}
		if same != nil && contains(out, t, same) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func contains[T any](list []T, t T, same func(T, T) bool) bool {
	for _, x := range list {
		if same(x, t) {
			return true
		}
	}
	return false
}
