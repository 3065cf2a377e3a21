// Package typing plays short keypress sounds. They bypass arbitration and
// go straight to the direct bus.
package typing

import (
	"math/rand/v2"
	"sync"
	"time"

	"nexus/clock"
	"nexus/graph"
	"nexus/synth"
)

const tag = "typing"

// throttle drops calls that land inside the window after the last sound.
type throttle struct {
	clk    clock.Clock
	window time.Duration

	mu   sync.Mutex
	last time.Time
	rng  *rand.Rand
}

func newThrottle(clk clock.Clock, window time.Duration, rng *rand.Rand) *throttle {
	if clk == nil {
		clk = clock.Real{}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &throttle{clk: clk, window: window, rng: rng}
}

// admit reports whether a sound may play now and, if so, returns a seed
// for rendering it.
func (t *throttle) admit() (uint64, float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clk.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.window {
		return 0, 0, false
	}
	t.last = now
	return t.rng.Uint64(), t.rng.Float64(), true
}

func play(g *graph.Graph, buf synth.Buffer) {
	if g == nil || len(buf) == 0 {
		return
	}
	g.Play(graph.Direct, tag, buf.Streamer())
}

// Sounds is the creak and thud variant.
type Sounds struct {
	g      *graph.Graph
	clk    clock.Clock
	volume float64
	th     *throttle
}

const (
	SoundsThrottle = 150 * time.Millisecond
	SoundsVolume   = 0.15
	bothDelay      = 50 * time.Millisecond
)

func NewSounds(g *graph.Graph, clk clock.Clock, rng *rand.Rand) *Sounds {
	th := newThrottle(clk, SoundsThrottle, rng)
	return &Sounds{g: g, clk: th.clk, volume: SoundsVolume, th: th}
}

// PlayTypingSound plays a creak, a thud or both, unless throttled. It
// reports whether anything was started.
func (s *Sounds) PlayTypingSound() bool {
	seed, draw, ok := s.th.admit()
	if !ok {
		return false
	}
	if s.g == nil {
		return true
	}
	rate := s.g.SampleRate()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b9))
	switch {
	case draw < 0.4:
		play(s.g, Creak(rate, s.volume))
	case draw < 0.8:
		play(s.g, Thud(rate, s.volume, rng))
	default:
		play(s.g, Thud(rate, s.volume, rng))
		s.clk.AfterFunc(bothDelay, func() { play(s.g, Creak(rate, s.volume)) })
	}
	return true
}

// Creak is a door creak: a saw sweeping 200, 400, 250 Hz through a wooden
// bandpass.
func Creak(rate int, vol float64) synth.Buffer {
	freq := synth.NewEnvelope(200).Linear(400, 0.3).Linear(250, 0.6)
	return synth.Osc(rate, synth.Saw, freq.At, 0.65).
		Filter(rate, synth.Bandpass, synth.Const(300), 3).
		Shape(rate, synth.NewEnvelope(0).Linear(vol, 0.05).Linear(vol*0.7, 0.3).Exp(0.01, 0.6)).
		Stereo()
}

// Thud is a falling sine knock with a short burst of low noise on top.
func Thud(rate int, vol float64, rng *rand.Rand) synth.Buffer {
	freq := synth.NewEnvelope(80).Exp(60, 0.15)
	knock := synth.Osc(rate, synth.Sine, freq.At, 0.25).
		Filter(rate, synth.Lowpass, synth.Const(150), 2).
		Shape(rate, synth.NewEnvelope(0).Linear(vol*1.2, 0.01).Exp(0.01, 0.2))
	burst := synth.Noise(rate, 0.05, 0.3, rng).
		Filter(rate, synth.Lowpass, synth.Const(200), 0.707).
		Shape(rate, synth.NewEnvelope(vol*0.5).Exp(0.01, 0.05))
	return knock.Add(burst, 0).Stereo()
}

// Ghost is the scratch-tap variant.
type Ghost struct {
	g      *graph.Graph
	volume float64
	th     *throttle
}

const (
	GhostThrottle = 60 * time.Millisecond
	GhostVolume   = 0.12
)

func NewGhost(g *graph.Graph, clk clock.Clock, rng *rand.Rand) *Ghost {
	return &Ghost{g: g, volume: GhostVolume, th: newThrottle(clk, GhostThrottle, rng)}
}

// PlayTypingSound plays one scratch unless throttled.
func (gh *Ghost) PlayTypingSound() bool {
	_, draw, ok := gh.th.admit()
	if !ok {
		return false
	}
	if gh.g != nil {
		play(gh.g, Scratch(gh.g.SampleRate(), gh.volume, 800+draw*400))
	}
	return true
}

// Scratch is a highpassed saw that drops 20% in pitch over 20 ms.
func Scratch(rate int, vol, pitch float64) synth.Buffer {
	freq := synth.NewEnvelope(pitch).Linear(pitch*0.8, 0.02)
	return synth.Osc(rate, synth.Saw, freq.At, 0.05).
		Filter(rate, synth.Highpass, synth.Const(600), 2).
		Shape(rate, synth.NewEnvelope(0).Linear(vol, 0.005).Exp(0.01, 0.04)).
		Stereo()
}
