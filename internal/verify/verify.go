// Package verify compares the final state of a run with a reference
// snapshot cell by cell.
package verify

import (
	"fmt"
	"strings"

	"gridweave.dev/internal/persistence/snapshot"
)

type CellDiff struct {
	Index    int  `json:"index"`
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Z        int  `json:"z"`
	Expected byte `json:"expected"`
	Actual   byte `json:"actual"`
}

type Result struct {
	Model     string     `json:"model"`
	Seed      int32      `json:"seed"`
	DimsMatch bool       `json:"dims_match"`
	Total     int        `json:"total"`
	Matching  int        `json:"matching"`
	Diffs     []CellDiff `json:"diffs,omitempty"`
}

// Compare checks actual against expected. When the dimensions differ no
// cell is compared.
func Compare(expected, actual snapshot.Grid) Result {
	r := Result{
		Model:     expected.Header.Model,
		Seed:      expected.Header.Seed,
		DimsMatch: expected.MX == actual.MX && expected.MY == actual.MY && expected.MZ == actual.MZ,
		Total:     len(expected.State),
	}
	if !r.DimsMatch || len(actual.State) != len(expected.State) {
		r.DimsMatch = false
		return r
	}
	mx, my := expected.MX, expected.MY
	for i, e := range expected.State {
		a := actual.State[i]
		if e == a {
			r.Matching++
			continue
		}
		r.Diffs = append(r.Diffs, CellDiff{
			Index:    i,
			X:        i % mx,
			Y:        (i / mx) % my,
			Z:        i / (mx * my),
			Expected: e,
			Actual:   a,
		})
	}
	return r
}

// Accuracy is the percentage of matching cells.
func (r Result) Accuracy() float64 {
	if r.Total == 0 {
		return 100
	}
	return 100 * float64(r.Matching) / float64(r.Total)
}

func (r Result) Perfect() bool { return r.DimsMatch && len(r.Diffs) == 0 }

// Summary renders r with at most limit diffs.
func (r Result) Summary(limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s seed=%d ", r.Model, r.Seed)
	if !r.DimsMatch {
		b.WriteString("dimensions differ")
		return b.String()
	}
	fmt.Fprintf(&b, "%d/%d cells (%.2f%%)", r.Matching, r.Total, r.Accuracy())
	for i, d := range r.Diffs {
		if i == limit {
			fmt.Fprintf(&b, "\n  ... %d more", len(r.Diffs)-limit)
			break
		}
		fmt.Fprintf(&b, "\n  (%d,%d,%d) expected=%d actual=%d", d.X, d.Y, d.Z, d.Expected, d.Actual)
	}
	return b.String()
}
