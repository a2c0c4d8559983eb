package wfc

import (
	"errors"
	"log"
	"math"

	"gridweave.dev/internal/rng"
)

// ErrAlphabet is returned when pattern data uses values outside the output
// grid's alphabet.
var ErrAlphabet = errors.New("wfc: value outside the grid alphabet")

// Model is the immutable part of a collapse: patterns are identified by
// index, propagator[d][t] lists the patterns allowed one step along d from
// pattern t.
type Model struct {
	Propagator [][][]int
	Weights    []float64
	// N is the pattern footprint used for bounds when not periodic.
	N          int
	MX, MY, MZ int
	Periodic   bool
	Shannon    bool
}

// Status is the outcome of one Step.
type Status int

const (
	Running Status = iota
	Done
	Contradiction
)

type banned struct{ i, t int }

// Solver collapses a wave for one Model. It is not safe for concurrent use.
type Solver struct {
	m *Model

	wave, start *Wave
	stack       []banned
	dist        []float64

	weightLogWeights []float64
	sumW, sumWLW     float64
	startingEntropy  float64

	random *rng.Random
	broken bool
}

// NewSolver allocates wave storage for m.
func NewSolver(m *Model) *Solver {
	length := m.MX * m.MY * m.MZ
	p := len(m.Weights)
	d := len(m.Propagator)
	s := &Solver{
		m:     m,
		wave:  newWave(length, p, d, m.Shannon),
		start: newWave(length, p, d, m.Shannon),
		stack: make([]banned, 0, length*p),
		dist:  make([]float64, p),
	}
	s.weightLogWeights, s.sumW, s.sumWLW, s.startingEntropy = weightLogWeights(m.Weights)
	return s
}

// Wave exposes the current wave for reading.
func (s *Solver) Wave() *Wave { return s.wave }

// Random is the local generator chosen by Start.
func (s *Solver) Random() *rng.Random { return s.random }

// Init resets the wave, bans every pattern that mapping forbids for the value
// of each input cell and propagates. mapping is indexed by input value; a
// value past its end allows every pattern. Init reports false when the input
// already contradicts the patterns. On success the wave is remembered as the
// starting point of every later attempt.
func (s *Solver) Init(input []byte, mapping [][]bool) bool {
	s.wave.init(s.m.Propagator, s.sumW, s.sumWLW, s.startingEntropy)
	s.stack = s.stack[:0]
	s.broken = false
	for i := 0; i < s.wave.length; i++ {
		v := int(input[i])
		if v >= len(mapping) {
			continue
		}
		allowed := mapping[v]
		for t := 0; t < s.wave.p; t++ {
			if !allowed[t] {
				s.ban(i, t)
			}
		}
	}
	if !s.propagate() {
		return false
	}
	s.start.copyFrom(s.wave)
	return true
}

// GoodSeed runs up to tries complete collapses, each on a generator seeded by
// one draw from random, and returns the first seed that collapses without a
// contradiction.
func (s *Solver) GoodSeed(random *rng.Random, tries int, logger *log.Logger) (int32, bool) {
	for k := 0; k < tries; k++ {
		observations := 0
		seed := int32(random.Next())
		local := rng.New(seed)
		s.restart()
		for {
			node := s.nextUnobservedNode(local)
			if node < 0 {
				logf(logger, "wfc: good seed %d on try %d after %d observations", seed, k, observations)
				return seed, true
			}
			s.observe(node, local)
			observations++
			if !s.propagate() {
				logf(logger, "wfc: contradiction on try %d after %d observations", k, observations)
				break
			}
		}
	}
	logf(logger, "wfc: no good seed in %d tries", tries)
	return 0, false
}

// Start rewinds the wave to its initial state and replays with seed.
func (s *Solver) Start(seed int32) {
	s.random = rng.New(seed)
	s.restart()
}

func (s *Solver) restart() {
	s.stack = s.stack[:0]
	s.broken = false
	s.wave.copyFrom(s.start)
}

// Step observes the lowest-entropy undecided cell and propagates.
func (s *Solver) Step() Status {
	node := s.nextUnobservedNode(s.random)
	if node < 0 {
		return Done
	}
	s.observe(node, s.random)
	if !s.propagate() {
		return Contradiction
	}
	return Running
}

func (s *Solver) inBounds(x, y, z int) bool {
	m := s.m
	return x >= 0 && y >= 0 && z >= 0 && x+m.N <= m.MX && y+m.N <= m.MY && z+1 <= m.MZ
}

func (s *Solver) nextUnobservedNode(random *rng.Random) int {
	m := s.m
	minEntropy := 1e4
	argmin := -1
	for z := 0; z < m.MZ; z++ {
		for y := 0; y < m.MY; y++ {
			for x := 0; x < m.MX; x++ {
				if !m.Periodic && !s.inBounds(x, y, z) {
					continue
				}
				i := x + y*m.MX + z*m.MX*m.MY
				remaining := s.wave.sumsOfOnes[i]
				entropy := s.wave.entropy(i)
				if remaining > 1 && entropy <= minEntropy {
					noise := 1e-6 * random.NextDouble()
					if entropy+noise < minEntropy {
						minEntropy = entropy + noise
						argmin = i
					}
				}
			}
		}
	}
	return argmin
}

func (s *Solver) observe(node int, random *rng.Random) {
	p := s.wave.p
	for t := 0; t < p; t++ {
		if s.wave.data[node*p+t] {
			s.dist[t] = s.m.Weights[t]
		} else {
			s.dist[t] = 0
		}
	}
	r := weightedIndex(s.dist, random.NextDouble())
	for t := 0; t < p; t++ {
		if s.wave.data[node*p+t] != (t == r) {
			s.ban(node, t)
		}
	}
}

func weightedIndex(weights []float64, r float64) int {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	threshold := r * sum
	var partial float64
	for i, w := range weights {
		partial += w
		if partial >= threshold {
			return i
		}
	}
	return 0
}

func (s *Solver) propagate() bool {
	m := s.m
	w := s.wave
	for len(s.stack) > 0 {
		b := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]

		x1 := b.i % m.MX
		y1 := (b.i % (m.MX * m.MY)) / m.MX
		z1 := b.i / (m.MX * m.MY)

		for d := range m.Propagator {
			x2, y2, z2 := x1+DX[d], y1+DY[d], z1+DZ[d]
			if !m.Periodic && !s.inBounds(x2, y2, z2) {
				continue
			}
			x2 = wrap(x2, m.MX)
			y2 = wrap(y2, m.MY)
			z2 = wrap(z2, m.MZ)
			i2 := x2 + y2*m.MX + z2*m.MX*m.MY

			for _, t2 := range m.Propagator[d][b.t] {
				k := (i2*w.p+t2)*w.d + d
				w.compatible[k]--
				if w.compatible[k] == 0 {
					s.ban(i2, t2)
				}
			}
		}
	}
	return !s.broken
}

func wrap(v, n int) int {
	if v < 0 {
		return v + n
	}
	if v >= n {
		return v - n
	}
	return v
}

func (s *Solver) ban(i, t int) {
	w := s.wave
	w.data[i*w.p+t] = false
	base := (i*w.p + t) * w.d
	for d := 0; d < w.d; d++ {
		w.compatible[base+d] = 0
	}
	s.stack = append(s.stack, banned{i, t})

	w.sumsOfOnes[i]--
	if w.sumsOfOnes[i] == 0 {
		s.broken = true
	}

	if w.entropies != nil {
		sum := w.sumsOfWeights[i]
		if sum > 0 {
			w.entropies[i] += w.sumsOfWeightLogWeights[i]/sum - math.Log(sum)
		}
		w.sumsOfWeights[i] -= s.m.Weights[t]
		w.sumsOfWeightLogWeights[i] -= s.weightLogWeights[t]
		sum = w.sumsOfWeights[i]
		if sum > 0 {
			w.entropies[i] -= w.sumsOfWeightLogWeights[i]/sum - math.Log(sum)
		}
	}
}

func logf(l *log.Logger, format string, args ...any) {
	if l != nil {
		l.Printf(format, args...)
	}
}
