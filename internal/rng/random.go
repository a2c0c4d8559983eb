// Package rng implements the subtractive generator used by System.Random so
// that runs seeded with the same integer draw the same sequence.
package rng

import "math"

const (
	mbig  = math.MaxInt32
	mseed = 161803398
)

// Random is not safe for concurrent use.
type Random struct {
	seeds  [56]int32
	inext  int
	inextp int
}

func New(seed int32) *Random {
	r := &Random{}
	r.Seed(seed)
	return r
}

// Seed reinitializes the generator in place.
func (r *Random) Seed(seed int32) {
	var sub int32
	if seed == math.MinInt32 {
		sub = mbig
	} else if seed < 0 {
		sub = -seed
	} else {
		sub = seed
	}

	mj := int32(mseed) - sub
	r.seeds = [56]int32{}
	r.seeds[55] = mj
	mk := int32(1)
	for i := 1; i < 55; i++ {
		ii := (21 * i) % 55
		r.seeds[ii] = mk
		mk = mj - mk
		if mk < 0 {
			mk += mbig
		}
		mj = r.seeds[ii]
	}
	for k := 1; k < 5; k++ {
		for i := 1; i < 56; i++ {
			r.seeds[i] -= r.seeds[1+(i+30)%55]
			if r.seeds[i] < 0 {
				r.seeds[i] += mbig
			}
		}
	}
	r.inext = 0
	r.inextp = 21
}

func (r *Random) sample31() int32 {
	i := r.inext + 1
	if i >= 56 {
		i = 1
	}
	j := r.inextp + 1
	if j >= 56 {
		j = 1
	}
	v := r.seeds[i] - r.seeds[j]
	if v == mbig {
		v--
	}
	if v < 0 {
		v += mbig
	}
	r.seeds[i] = v
	r.inext = i
	r.inextp = j
	return v
}

func (r *Random) sample() float64 {
	return float64(r.sample31()) * (1.0 / mbig)
}

// Next returns a non-negative value below math.MaxInt32.
func (r *Random) Next() int {
	return int(r.sample31())
}

// NextN returns a value in [0, max). max must be non-negative.
func (r *Random) NextN(max int) int {
	return int(r.sample() * float64(max))
}

// NextRange returns a value in [min, max). The range must fit in 31 bits;
// wider ranges would need a second draw and are never requested by the engine.
func (r *Random) NextRange(min, max int) int {
	return int(r.sample()*float64(max-min)) + min
}

func (r *Random) NextDouble() float64 {
	return r.sample()
}

// Clone returns an independent generator positioned at the same point in the
// sequence.
func (r *Random) Clone() *Random {
	c := *r
	return &c
}
