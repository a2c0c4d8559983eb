// Package wfc implements wave function collapse over a grid of cells: the
// wave state, constraint propagation, observation, and the two pattern
// sources (overlapping samples and tile sets).
package wfc

import "math"

// Direction tables. Index d and opposite[d] point in reverse directions;
// the first four lie in the xy plane.
var (
	DX       = [6]int{1, 0, -1, 0, 0, 0}
	DY       = [6]int{0, 1, 0, -1, 0, 0}
	DZ       = [6]int{0, 0, 0, 0, 1, -1}
	opposite = [6]int{2, 3, 0, 1, 5, 4}
)

// Wave is the set of patterns still possible at every cell.
type Wave struct {
	data       []bool  // cell*P + t
	compatible []int32 // (cell*P + t)*D + d
	sumsOfOnes []int

	sumsOfWeights          []float64
	sumsOfWeightLogWeights []float64
	entropies              []float64

	length, p, d int
}

func newWave(length, p, d int, shannon bool) *Wave {
	w := &Wave{
		data:       make([]bool, length*p),
		compatible: make([]int32, length*p*d),
		sumsOfOnes: make([]int, length),
		length:     length,
		p:          p,
		d:          d,
	}
	if shannon {
		w.sumsOfWeights = make([]float64, length)
		w.sumsOfWeightLogWeights = make([]float64, length)
		w.entropies = make([]float64, length)
	}
	return w
}

func (w *Wave) init(propagator [][][]int, sumW, sumWLW, startingEntropy float64) {
	for i := 0; i < w.length; i++ {
		for t := 0; t < w.p; t++ {
			w.data[i*w.p+t] = true
			for d := 0; d < w.d; d++ {
				w.compatible[(i*w.p+t)*w.d+d] = int32(len(propagator[opposite[d]][t]))
			}
		}
		w.sumsOfOnes[i] = w.p
		if w.entropies != nil {
			w.sumsOfWeights[i] = sumW
			w.sumsOfWeightLogWeights[i] = sumWLW
			w.entropies[i] = startingEntropy
		}
	}
}

func (w *Wave) copyFrom(o *Wave) {
	copy(w.data, o.data)
	copy(w.compatible, o.compatible)
	copy(w.sumsOfOnes, o.sumsOfOnes)
	if w.entropies != nil {
		copy(w.sumsOfWeights, o.sumsOfWeights)
		copy(w.sumsOfWeightLogWeights, o.sumsOfWeightLogWeights)
		copy(w.entropies, o.entropies)
	}
}

// Possible reports whether pattern t is still allowed at cell i.
func (w *Wave) Possible(i, t int) bool { return w.data[i*w.p+t] }

// Remaining is the number of patterns still allowed at cell i.
func (w *Wave) Remaining(i int) int { return w.sumsOfOnes[i] }

// Len is the number of cells.
func (w *Wave) Len() int { return w.length }

// Patterns is the number of patterns per cell.
func (w *Wave) Patterns() int { return w.p }

func (w *Wave) entropy(i int) float64 {
	if w.entropies != nil {
		return w.entropies[i]
	}
	return float64(w.sumsOfOnes[i])
}

// IsContradiction reports whether some cell has no pattern left.
func (w *Wave) IsContradiction() bool {
	for _, s := range w.sumsOfOnes {
		if s == 0 {
			return true
		}
	}
	return false
}

func weightLogWeights(weights []float64) (wlw []float64, sumW, sumWLW, startingEntropy float64) {
	wlw = make([]float64, len(weights))
	for t, w := range weights {
		if w > 0 {
			wlw[t] = w * math.Log(w)
		}
		sumW += w
		sumWLW += wlw[t]
	}
	if sumW > 0 {
		startingEntropy = math.Log(sumW) - sumWLW/sumW
	}
	return wlw, sumW, sumWLW, startingEntropy
}
