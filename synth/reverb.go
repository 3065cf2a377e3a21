package synth

import (
	"math"
	"math/rand/v2"
)

type tap struct {
	pos  int
	gain float64
}

// Impulse is a sparse decaying noise response (velvet noise): one signed tap
// per grid cell, scaled by exp(-3i/len).
type Impulse struct {
	taps []tap
	n    int
}

// NewImpulse builds a response seconds long with density taps per second.
func NewImpulse(rate int, seconds, density float64, rng *rand.Rand) *Impulse {
	n := Samples(rate, seconds)
	grid := max(1, int(float64(rate)/density))
	imp := &Impulse{n: n}
	for start := 0; start < n; start += grid {
		pos := start + rng.IntN(grid)
		if pos >= n {
			break
		}
		sign := 1.0
		if rng.IntN(2) == 0 {
			sign = -1
		}
		decay := math.Exp(-3 * float64(pos) / float64(n))
		imp.taps = append(imp.taps, tap{pos: pos, gain: sign * decay})
	}
	// Normalise so the wet path sits near unity energy.
	norm := 0.0
	for _, t := range imp.taps {
		norm += t.gain * t.gain
	}
	if norm > 0 {
		k := 1 / math.Sqrt(norm)
		for i := range imp.taps {
			imp.taps[i].gain *= k
		}
	}
	return imp
}

func (imp *Impulse) Len() int { return imp.n }

// Reverb mixes dry×(1-mix) with the convolved signal×mix. The result is
// longer than b by the impulse length.
func (b Buffer) Reverb(imp *Impulse, mix float64) Buffer {
	if imp == nil || mix <= 0 {
		return b
	}
	out := make(Buffer, len(b)+imp.n)
	for i, f := range b {
		out[i][0] = f[0] * (1 - mix)
		out[i][1] = f[1] * (1 - mix)
	}
	for _, t := range imp.taps {
		g := t.gain * mix
		for i, f := range b {
			o := &out[i+t.pos]
			o[0] += f[0] * g
			o[1] += f[1] * g
		}
	}
	return out
}
