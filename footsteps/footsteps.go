// Package footsteps plays bursts of ghostly footsteps at random intervals.
// A sequence owns the footsteps channel for its whole length.
package footsteps

import (
	"math/rand/v2"
	"sync"
	"time"

	"nexus/clock"
	"nexus/graph"
	"nexus/log"
	"nexus/priority"
	"nexus/synth"
)

const (
	DefaultVolume = 0.70
	reverbMix     = 0.25
	tail          = 700 * time.Millisecond
	tag           = "footsteps"
)

var panPositions = []float64{-0.7, 0, 0.7, 0}

type Options struct {
	Volume float64
	Rand   *rand.Rand
}

type Engine struct {
	arb *priority.Arbiter
	g   *graph.Graph
	clk clock.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	volume  float64
	muted   bool
	running bool
	cycle   clock.Timer
	grant   *priority.Grant
	pending []clock.Timer
	imp     *synth.Impulse
}

func New(arb *priority.Arbiter, g *graph.Graph, clk clock.Clock, opts Options) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if opts.Volume <= 0 {
		opts.Volume = DefaultVolume
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{arb: arb, g: g, clk: clk, rng: rng, volume: opts.Volume}
}

func between(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	return lo + time.Duration(rng.Int64N(int64(hi-lo)))
}

// Start schedules the first burst 5-10 s out, then one every 15-35 s.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.cycle = e.clk.AfterFunc(between(e.rng, 5*time.Second, 10*time.Second), e.tick)
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) tick() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	busy := e.grant != nil
	n := 2 + e.rng.IntN(4)
	e.cycle = e.clk.AfterFunc(between(e.rng, 15*time.Second, 35*time.Second), e.tick)
	e.mu.Unlock()

	if busy {
		return
	}
	e.PlaySequence(n)
}

// PlaySequence walks n steps. It returns how long the footsteps channel is
// held, or false when the channel was denied or a sequence is already
// walking.
func (e *Engine) PlaySequence(n int) (time.Duration, bool) {
	if n <= 0 {
		return 0, false
	}
	e.mu.Lock()
	busy := e.grant != nil
	e.mu.Unlock()
	if busy {
		return 0, false
	}

	grant, ok := e.arb.Acquire(priority.Footsteps, nil)
	if !ok {
		return 0, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.grant = grant
	interval := between(e.rng, 400*time.Millisecond, 600*time.Millisecond)
	left := e.rng.IntN(2) == 0
	for i := 0; i < n; i++ {
		step, foot := i, left
		e.pending = append(e.pending, e.clk.AfterFunc(time.Duration(i)*interval, func() { e.impact(step, foot) }))
		left = !left
	}
	total := time.Duration(n)*interval + tail
	e.pending = append(e.pending, e.clk.AfterFunc(total, func() { e.finish(grant) }))

	log.Footsteps(n, interval)
	return total, true
}

func (e *Engine) finish(grant *priority.Grant) {
	e.mu.Lock()
	if e.grant == grant {
		e.grant = nil
		e.pending = nil
	}
	e.mu.Unlock()
	grant.Release()
}

// Walking reports whether a sequence holds the channel.
func (e *Engine) Walking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grant != nil
}

func (e *Engine) impact(step int, leftFoot bool) {
	e.mu.Lock()
	if e.muted || e.g == nil {
		e.mu.Unlock()
		return
	}
	rate := e.g.SampleRate()
	if e.imp == nil {
		e.imp = synth.NewImpulse(rate, 0.5, 2000, e.rng)
	}
	seed, vol, imp := e.rng.Uint64(), e.volume, e.imp
	e.mu.Unlock()

	buf := RenderStep(rate, vol, step, leftFoot, imp, rand.New(rand.NewPCG(seed, seed>>3)))
	e.g.Play(graph.Direct, tag, buf.Streamer())
}

// RenderStep synthesizes one footfall: a filtered thud with a room tail, a
// sub thump and a short scrape panned toward the foot.
func RenderStep(rate int, vol float64, step int, leftFoot bool, imp *synth.Impulse, rng *rand.Rand) synth.Buffer {
	pan := panPositions[step%len(panPositions)]

	thud := synth.Osc(rate, synth.Sine, synth.Const(80+rng.Float64()*40), 0.2).
		Filter(rate, synth.Lowpass, synth.Const(200+rng.Float64()*100), 1).
		Shape(rate, synth.NewEnvelope(0).Linear(vol, 0.01).Exp(0.01, 0.15)).
		Pan(pan).
		Reverb(imp, reverbMix)

	thump := synth.Osc(rate, synth.Sine, synth.Const(40+rng.Float64()*20), 0.15).
		Filter(rate, synth.Lowpass, synth.Const(80), 2).
		Shape(rate, synth.NewEnvelope(0).Linear(vol*0.8, 0.01).Exp(0.01, 0.12)).
		Pan(pan)

	scrapePan := 0.15
	if leftFoot {
		scrapePan = -0.15
	}
	scrape := synth.Noise(rate, 0.1, 0.1, rng).
		Filter(rate, synth.Highpass, synth.Const(800), 0.707).
		Shape(rate, synth.NewEnvelope(0).Linear(vol*0.3, 0.02).Linear(0, 0.1)).
		Pan(scrapePan)

	return thud.Add(thump, 0).Add(scrape, 0)
}

// Stop cancels the schedule and any walking sequence, releasing the channel
// at once. Ambient still waits out its own resume delay.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	if e.cycle != nil {
		e.cycle.Stop()
		e.cycle = nil
	}
	for _, t := range e.pending {
		t.Stop()
	}
	e.pending = nil
	grant := e.grant
	e.grant = nil
	e.mu.Unlock()

	grant.Release()
	if e.g != nil {
		e.g.StopTag(tag)
	}
}

func (e *Engine) SetMuted(m bool) {
	e.mu.Lock()
	e.muted = m
	e.mu.Unlock()
}

// SetVolume clamps v to [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	e.volume = max(0, min(1, v))
	e.mu.Unlock()
}

func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}
