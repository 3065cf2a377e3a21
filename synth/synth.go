// Package synth renders short procedural sounds offline into stereo buffers
// that the graph plays as streamers.
package synth

import (
	"math"
	"math/rand/v2"

	"github.com/gopxl/beep/v2"
)

// Buffer is a run of stereo frames.
type Buffer [][2]float64

// Mono is a run of single-channel samples.
type Mono []float64

type Wave int

const (
	Sine Wave = iota
	Square
	Saw
	Triangle
)

// Signal is a value over time in seconds.
type Signal func(t float64) float64

func Const(v float64) Signal { return func(float64) float64 { return v } }

// Vibrato is base Hz modulated by a sine LFO.
func Vibrato(base, lfoHz, depth float64) Signal {
	return func(t float64) float64 {
		return base + depth*math.Sin(2*math.Pi*lfoHz*t)
	}
}

func Samples(rate int, seconds float64) int {
	return int(float64(rate) * seconds)
}

// Osc renders a band-unlimited oscillator whose frequency may move over time.
func Osc(rate int, wave Wave, freq Signal, seconds float64) Mono {
	n := Samples(rate, seconds)
	out := make(Mono, n)
	phase := 0.0
	for i := range out {
		t := float64(i) / float64(rate)
		switch wave {
		case Sine:
			out[i] = math.Sin(2 * math.Pi * phase)
		case Square:
			if phase < 0.5 {
				out[i] = 1
			} else {
				out[i] = -1
			}
		case Saw:
			out[i] = 2 * (phase - 0.5)
		case Triangle:
			out[i] = 4*math.Abs(phase-0.5) - 1
		}
		phase += freq(t) / float64(rate)
		phase -= math.Floor(phase)
	}
	return out
}

// Noise renders white noise in [-amp, amp].
func Noise(rate int, seconds, amp float64, rng *rand.Rand) Mono {
	out := make(Mono, Samples(rate, seconds))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amp
	}
	return out
}

// Gain scales in place.
func (m Mono) Gain(g float64) Mono {
	for i := range m {
		m[i] *= g
	}
	return m
}

// Shape multiplies in place by an envelope.
func (m Mono) Shape(rate int, env *Envelope) Mono {
	for i := range m {
		m[i] *= env.At(float64(i) / float64(rate))
	}
	return m
}

// Add mixes src into m starting at offset samples, growing m if needed.
func (m Mono) Add(src Mono, offset int) Mono {
	if need := offset + len(src); need > len(m) {
		m = append(m, make(Mono, need-len(m))...)
	}
	for i, s := range src {
		m[offset+i] += s
	}
	return m
}

// Pan places a mono signal with an equal-power pan law, pan in [-1, 1].
func (m Mono) Pan(pan float64) Buffer {
	pan = math.Max(-1, math.Min(1, pan))
	x := (pan + 1) / 2
	l, r := math.Cos(x*math.Pi/2), math.Sin(x*math.Pi/2)
	out := make(Buffer, len(m))
	for i, s := range m {
		out[i] = [2]float64{s * l, s * r}
	}
	return out
}

// Stereo duplicates a mono signal onto both channels unchanged.
func (m Mono) Stereo() Buffer {
	out := make(Buffer, len(m))
	for i, s := range m {
		out[i] = [2]float64{s, s}
	}
	return out
}

// Add mixes src into b starting at offset frames, growing b if needed.
func (b Buffer) Add(src Buffer, offset int) Buffer {
	if need := offset + len(src); need > len(b) {
		b = append(b, make(Buffer, need-len(b))...)
	}
	for i, f := range src {
		b[offset+i][0] += f[0]
		b[offset+i][1] += f[1]
	}
	return b
}

func (b Buffer) Gain(g float64) Buffer {
	for i := range b {
		b[i][0] *= g
		b[i][1] *= g
	}
	return b
}

// Peak returns the largest absolute sample.
func (b Buffer) Peak() float64 {
	p := 0.0
	for _, f := range b {
		p = math.Max(p, math.Max(math.Abs(f[0]), math.Abs(f[1])))
	}
	return p
}

func (b Buffer) Duration(rate int) float64 {
	return float64(len(b)) / float64(rate)
}

// Streamer plays the buffer once.
func (b Buffer) Streamer() beep.Streamer {
	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if pos >= len(b) {
			return 0, false
		}
		n := copy(samples, b[pos:])
		pos += n
		return n, true
	})
}
