package graph

import "math"

// Device is an open audio output pulling frames from a Graph.
type Device interface {
	Close() error
}

// pcm renders frames from g into interleaved signed 16-bit stereo.
type pcm struct {
	g   *Graph
	buf [][2]float64
}

func (p *pcm) fill(out []int16) int {
	frames := len(out) / 2
	if cap(p.buf) < frames {
		p.buf = make([][2]float64, frames)
	}
	buf := p.buf[:frames]
	p.g.Stream(buf)
	for i, f := range buf {
		out[i*2] = toInt16(f[0])
		out[i*2+1] = toInt16(f[1])
	}
	return frames * 2
}

func toInt16(x float64) int16 {
	return int16(math.Max(-1, math.Min(1, x)) * 32767)
}
