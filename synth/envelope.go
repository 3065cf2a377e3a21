package synth

import "math"

type segment struct {
	at  float64
	v   float64
	exp bool
}

// Envelope is a breakpoint curve built the way gain automation is written:
// a start value followed by linear or exponential ramps to later points.
type Envelope struct {
	start float64
	segs  []segment
}

func NewEnvelope(start float64) *Envelope {
	return &Envelope{start: start}
}

func (e *Envelope) Linear(v, at float64) *Envelope {
	e.segs = append(e.segs, segment{at: at, v: v})
	return e
}

// Exp ramps exponentially. Targets at or below zero are clamped to a small
// positive floor so the curve stays defined.
func (e *Envelope) Exp(v, at float64) *Envelope {
	e.segs = append(e.segs, segment{at: at, v: math.Max(v, 1e-4), exp: true})
	return e
}

func (e *Envelope) At(t float64) float64 {
	v, from := e.start, 0.0
	for _, s := range e.segs {
		if t >= s.at {
			v, from = s.v, s.at
			continue
		}
		frac := (t - from) / (s.at - from)
		if s.exp && v > 0 {
			return v * math.Pow(s.v/v, frac)
		}
		return v + (s.v-v)*frac
	}
	return v
}

// End is the time of the last breakpoint.
func (e *Envelope) End() float64 {
	if len(e.segs) == 0 {
		return 0
	}
	return e.segs[len(e.segs)-1].at
}
