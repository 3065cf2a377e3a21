package voice

import (
	"math/rand/v2"
	"time"

	"nexus/synth"
)

const stingerLength = 1500 * time.Millisecond

// RenderStinger synthesizes the short effect played ahead of emotional
// speech. Unknown emotions render nothing.
func RenderStinger(em Emotion, rate int, d time.Duration, rng *rand.Rand) synth.Buffer {
	dur := d.Seconds()
	var m synth.Mono
	switch em {
	case Crying:
		m = synth.Osc(rate, synth.Sine, synth.Vibrato(200, 3, 50), dur).
			Shape(rate, synth.NewEnvelope(0).Linear(0.3, 0.1).Linear(0, dur))
	case Laughing:
		m = make(synth.Mono, synth.Samples(rate, dur))
		for i := 0; i < 5; i++ {
			burst := synth.Osc(rate, synth.Square, synth.Const(400+rng.Float64()*400), 0.15).
				Shape(rate, synth.NewEnvelope(0.2).Linear(0, 0.15))
			m = m.Add(burst, synth.Samples(rate, float64(i)/5*dur))
		}
	case Growling:
		m = synth.Osc(rate, synth.Saw, synth.Const(80), dur).
			Filter(rate, synth.Lowpass, synth.Const(200), 10).
			Shape(rate, synth.NewEnvelope(0).Linear(0.4, 0.1).Linear(0, dur))
	case Screaming:
		half := dur / 2
		sweep := func(t float64) float64 {
			if t < half {
				return 800 + 400*t/half
			}
			return 1200 - 600*(t-half)/half
		}
		m = synth.Osc(rate, synth.Saw, sweep, dur).
			Shape(rate, synth.NewEnvelope(0).Linear(0.5, 0.05).Linear(0, dur))
	case Distorted:
		m = synth.Noise(rate, dur, 0.3, rng).
			Filter(rate, synth.Bandpass, synth.Const(1000+rng.Float64()*2000), 5).
			Shape(rate, synth.NewEnvelope(0.3).Linear(0, dur))
	case Singing, Whispering:
		notes := []float64{523, 587, 659, 698}
		note := dur / float64(len(notes))
		m = make(synth.Mono, synth.Samples(rate, dur))
		for i, f := range notes {
			tone := synth.Osc(rate, synth.Sine, synth.Const(f), note).
				Shape(rate, synth.NewEnvelope(0.15).Linear(0, note))
			m = m.Add(tone, synth.Samples(rate, float64(i)*note))
		}
	default:
		return nil
	}
	return m.Stereo()
}
