// Package graph is the shared audio output graph: a pull-based mixer with two
// buses whose sample counter is the audio clock every ramp is scheduled on.
//
//	ambient bus -> ambient gain -> master gain (0.9) -> compressor -+
//	direct bus  ----------------------------------------------------+-> device
package graph

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
)

var ErrNoDevice = errors.New("no audio output device")

const (
	DefaultSampleRate = 44100
	masterLevel       = 0.9
)

type Bus int

const (
	Ambient Bus = iota
	Direct
)

// Voice is one streamer playing on a bus.
type Voice struct {
	s      beep.Streamer
	bus    Bus
	tag    string
	paused atomic.Bool
	done   chan struct{}
	once   sync.Once
	buf    [][2]float64
}

func (v *Voice) Stop()                 { v.once.Do(func() { close(v.done) }) }
func (v *Voice) Pause()                { v.paused.Store(true) }
func (v *Voice) Resume()               { v.paused.Store(false) }
func (v *Voice) Paused() bool          { return v.paused.Load() }
func (v *Voice) Done() <-chan struct{} { return v.done }
func (v *Voice) Tag() string           { return v.tag }

func (v *Voice) finished() bool {
	select {
	case <-v.done:
		return true
	default:
		return false
	}
}

type Graph struct {
	rate   int
	frames atomic.Int64

	ambientGain *Param
	masterGain  *Param
	comp        *Compressor

	mu     sync.Mutex
	voices []*Voice
	amb    [][2]float64
	dir    [][2]float64
	tap    func([][2]float64)
}

func New(sampleRate int) *Graph {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Graph{
		rate:        sampleRate,
		ambientGain: NewParam(0),
		masterGain:  NewParam(masterLevel),
		comp:        NewCompressor(sampleRate),
	}
}

func (g *Graph) SampleRate() int { return g.rate }

func (g *Graph) Format() beep.Format {
	return beep.Format{SampleRate: beep.SampleRate(g.rate), NumChannels: 2, Precision: 2}
}

// Now is the audio clock in seconds.
func (g *Graph) Now() float64 {
	return float64(g.frames.Load()) / float64(g.rate)
}

func (g *Graph) AmbientGain() *Param { return g.ambientGain }

// Play starts s on bus. The returned voice closes Done when the streamer is
// drained or the voice is stopped.
func (g *Graph) Play(bus Bus, tag string, s beep.Streamer) *Voice {
	v := &Voice{s: s, bus: bus, tag: tag, done: make(chan struct{})}
	g.mu.Lock()
	g.voices = append(g.voices, v)
	g.mu.Unlock()
	return v
}

// StopTag hard-stops every voice carrying tag and returns how many were live.
func (g *Graph) StopTag(tag string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, v := range g.voices {
		if v.tag == tag && !v.finished() {
			v.Stop()
			n++
		}
	}
	return n
}

// Active counts live voices carrying tag.
func (g *Graph) Active(tag string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, v := range g.voices {
		if v.tag == tag && !v.finished() {
			n++
		}
	}
	return n
}

func (g *Graph) Stream(samples [][2]float64) (int, bool) {
	n := len(samples)
	g.mu.Lock()
	g.amb = grow(g.amb, n)
	g.dir = grow(g.dir, n)
	live := g.voices[:0]
	for _, v := range g.voices {
		if v.finished() {
			continue
		}
		if v.Paused() {
			live = append(live, v)
			continue
		}
		v.buf = grow(v.buf, n)
		got, ok := v.s.Stream(v.buf)
		acc := g.amb
		if v.bus == Direct {
			acc = g.dir
		}
		for i := 0; i < got; i++ {
			acc[i][0] += v.buf[i][0]
			acc[i][1] += v.buf[i][1]
		}
		if !ok || got < n {
			v.Stop()
			continue
		}
		live = append(live, v)
	}
	for i := len(live); i < len(g.voices); i++ {
		g.voices[i] = nil
	}
	g.voices = live
	amb, dir, tap := g.amb, g.dir, g.tap
	g.mu.Unlock()

	start := g.frames.Load()
	ai, aev := g.ambientGain.snapshot()
	mi, mev := g.masterGain.snapshot()
	for i := 0; i < n; i++ {
		t := float64(start+int64(i)) / float64(g.rate)
		a := valueAt(ai, aev, t) * valueAt(mi, mev, t)
		f := g.comp.Process([2]float64{amb[i][0] * a, amb[i][1] * a})
		samples[i][0] = clamp(f[0] + dir[i][0])
		samples[i][1] = clamp(f[1] + dir[i][1])
	}
	g.frames.Add(int64(n))
	if tap != nil {
		tap(samples[:n])
	}
	return n, true
}

// SetTap registers f to receive every mixed block after it is rendered. The
// slice is only valid for the duration of the call. A nil f removes the tap.
func (g *Graph) SetTap(f func([][2]float64)) {
	g.mu.Lock()
	g.tap = f
	g.mu.Unlock()
}

func (g *Graph) Err() error { return nil }

// Render pulls n frames and discards them. Used headless and in tests to
// move the audio clock.
func (g *Graph) Render(n int) {
	buf := make([][2]float64, 512)
	for n > 0 {
		k := min(n, len(buf))
		g.Stream(buf[:k])
		n -= k
	}
}

// RenderFor renders d worth of frames.
func (g *Graph) RenderFor(d time.Duration) {
	g.Render(int(math.Round(d.Seconds() * float64(g.rate))))
}

// RunHeadless keeps the audio clock moving in real time when no device is
// attached, so scheduled ramps and voices still complete.
func (g *Graph) RunHeadless(ctx context.Context) {
	const tick = 10 * time.Millisecond
	t := time.NewTicker(tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			g.RenderFor(now.Sub(last))
			last = now
		}
	}
}

func grow(b [][2]float64, n int) [][2]float64 {
	if cap(b) < n {
		b = make([][2]float64, n)
	}
	b = b[:n]
	clear(b)
	return b
}

func clamp(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}
