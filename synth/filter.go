package synth

import "math"

type FilterKind int

const (
	Lowpass FilterKind = iota
	Highpass
	Bandpass
)

type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func (f *biquad) design(kind FilterKind, rate int, freq, q float64) {
	freq = math.Max(10, math.Min(freq, float64(rate)/2-1))
	if q <= 0 {
		q = 1
	}
	w := 2 * math.Pi * freq / float64(rate)
	cos, alpha := math.Cos(w), math.Sin(w)/(2*q)
	var b0, b1, b2 float64
	switch kind {
	case Lowpass:
		b0, b1, b2 = (1-cos)/2, 1-cos, (1-cos)/2
	case Highpass:
		b0, b1, b2 = (1+cos)/2, -(1 + cos), (1+cos)/2
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
	}
	a0 := 1 + alpha
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = -2*cos/a0, (1-alpha)/a0
}

func (f *biquad) step(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Filter runs an RBJ biquad over m in place. The cutoff may move over time;
// coefficients are refreshed every 32 samples.
func (m Mono) Filter(rate int, kind FilterKind, freq Signal, q float64) Mono {
	var f biquad
	for i := range m {
		if i%32 == 0 {
			f.design(kind, rate, freq(float64(i)/float64(rate)), q)
		}
		m[i] = f.step(m[i])
	}
	return m
}
