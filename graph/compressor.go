package graph

import "math"

// Compressor is a feed-forward peak compressor with a soft knee, driven by
// the louder of the two channels.
type Compressor struct {
	Threshold float64 // dB
	Knee      float64 // dB
	Ratio     float64
	Attack    float64 // seconds
	Release   float64 // seconds

	gainDB float64
	attK   float64
	relK   float64
}

func NewCompressor(sampleRate int) *Compressor {
	c := &Compressor{
		Threshold: -24,
		Knee:      30,
		Ratio:     12,
		Attack:    0.003,
		Release:   0.25,
	}
	c.attK = math.Exp(-1 / (c.Attack * float64(sampleRate)))
	c.relK = math.Exp(-1 / (c.Release * float64(sampleRate)))
	return c
}

func (c *Compressor) curve(xdb float64) float64 {
	over := xdb - c.Threshold
	switch {
	case 2*over < -c.Knee:
		return xdb
	case 2*math.Abs(over) <= c.Knee:
		k := over + c.Knee/2
		return xdb + (1/c.Ratio-1)*k*k/(2*c.Knee)
	default:
		return c.Threshold + over/c.Ratio
	}
}

func (c *Compressor) Process(frame [2]float64) [2]float64 {
	peak := math.Max(math.Abs(frame[0]), math.Abs(frame[1]))
	xdb := 20 * math.Log10(peak+1e-9)
	want := c.curve(xdb) - xdb
	if want < c.gainDB {
		c.gainDB = c.attK*c.gainDB + (1-c.attK)*want
	} else {
		c.gainDB = c.relK*c.gainDB + (1-c.relK)*want
	}
	g := math.Pow(10, c.gainDB/20)
	return [2]float64{frame[0] * g, frame[1] * g}
}
