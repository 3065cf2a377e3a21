// Package ambient runs the procedural background bed and ducks it while
// louder sounds hold the output.
package ambient

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"nexus/clock"
	"nexus/graph"
	"nexus/log"
	"nexus/settings"
)

var (
	ErrInvalidIntensity = errors.New("invalid ambient intensity")
	ErrUnknownScene     = errors.New("unknown ambient scene")
)

type Intensity string

const (
	Low    Intensity = "low"
	Medium Intensity = "medium"
	High   Intensity = "high"
)

// DefaultVolumes are the base gains per intensity tier.
var DefaultVolumes = map[Intensity]float64{
	Low:    0.10,
	Medium: 0.22,
	High:   0.36,
}

const (
	pauseRamp          = 200 * time.Millisecond
	footstepPauseRamp  = 150 * time.Millisecond
	resumeDelay        = 650 * time.Millisecond
	footstepResumeWait = 700 * time.Millisecond
	intensityRamp      = 300 * time.Millisecond
	muteRamp           = 200 * time.Millisecond
	volumeRamp         = 100 * time.Millisecond

	DefaultMaxChains = 6
)

// State is the input to EffectiveVolume.
type State struct {
	Muted     bool
	Base      float64
	Speaking  bool
	Recording bool
	Footsteps bool
	Whisper   bool
}

// EffectiveVolume is the one place the audible ambient level is derived.
func EffectiveVolume(s State) float64 {
	switch {
	case s.Muted:
		return 0
	case s.Speaking || s.Recording || s.Footsteps:
		return 0
	case s.Whisper:
		return s.Base * 0.5
	}
	return s.Base
}

type flag int

const (
	speaking flag = iota
	recording
	footsteps
	whisper
	numFlags
)

var flagNames = [numFlags]string{"speech", "recording", "footsteps", "whisper"}

type Options struct {
	// Volumes overrides DefaultVolumes per tier.
	Volumes map[Intensity]float64
	// MaxChains bounds how many scene voices may sound at once.
	MaxChains int
	Rand      *rand.Rand
}

type Engine struct {
	g     *graph.Graph
	clk   clock.Clock
	store settings.Store
	opts  Options

	mu        sync.Mutex
	rng       *rand.Rand
	intensity Intensity
	st        State
	resumes   [numFlags]clock.Timer
	seq       [numFlags]uint64
	scene     *run
}

// New builds an engine on g. A nil g tracks state without producing sound.
// Muted and intensity are restored from store.
func New(g *graph.Graph, clk clock.Clock, store settings.Store, opts Options) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	vols := make(map[Intensity]float64, len(DefaultVolumes))
	for k, v := range DefaultVolumes {
		vols[k] = v
	}
	for k, v := range opts.Volumes {
		vols[k] = v
	}
	opts.Volumes = vols
	if opts.MaxChains <= 0 {
		opts.MaxChains = DefaultMaxChains
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	e := &Engine{g: g, clk: clk, store: store, opts: opts, rng: rng, intensity: Medium}
	if lvl := Intensity(settings.String(store, settings.KeyAmbientIntensity, "")); lvl != "" {
		if _, ok := vols[lvl]; ok {
			e.intensity = lvl
		}
	}
	e.st.Base = vols[e.intensity]
	e.st.Muted = settings.Bool(store, settings.KeyAmbientMuted, false)

	e.mu.Lock()
	e.recompute("init", 0)
	e.mu.Unlock()
	return e
}

// recompute schedules the one ramp that moves the bus toward the effective
// volume. Callers hold e.mu.
func (e *Engine) recompute(reason string, ramp time.Duration) {
	v := EffectiveVolume(e.st)
	log.Ambient(reason, v, ramp)
	if e.g == nil {
		return
	}
	e.g.AmbientGain().RampTo(v, e.g.Now(), ramp)
}

func (e *Engine) set(f flag, v bool) {
	switch f {
	case speaking:
		e.st.Speaking = v
	case recording:
		e.st.Recording = v
	case footsteps:
		e.st.Footsteps = v
	case whisper:
		e.st.Whisper = v
	}
}

func (e *Engine) pause(f flag, ramp time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq[f]++
	if t := e.resumes[f]; t != nil {
		t.Stop()
		e.resumes[f] = nil
	}
	e.set(f, true)
	e.recompute("pause "+flagNames[f], ramp)
}

// resume clears f after delay and ramps over the same span. A later pause of
// the same flag invalidates it.
func (e *Engine) resume(f flag, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq[f]++
	if t := e.resumes[f]; t != nil {
		t.Stop()
	}
	want := e.seq[f]
	e.resumes[f] = e.clk.AfterFunc(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.seq[f] != want {
			return
		}
		e.resumes[f] = nil
		e.set(f, false)
		e.recompute("resume "+flagNames[f], delay)
	})
}

func (e *Engine) PauseForSpeech()       { e.pause(speaking, pauseRamp) }
func (e *Engine) ResumeAfterSpeech()    { e.resume(speaking, resumeDelay) }
func (e *Engine) PauseForRecording()    { e.pause(recording, pauseRamp) }
func (e *Engine) ResumeAfterRecording() { e.resume(recording, resumeDelay) }
func (e *Engine) PauseForFootsteps()    { e.pause(footsteps, footstepPauseRamp) }
func (e *Engine) ResumeAfterFootsteps() { e.resume(footsteps, footstepResumeWait) }
func (e *Engine) DuckForWhisper()       { e.pause(whisper, pauseRamp) }
func (e *Engine) ResumeAfterWhisper()   { e.resume(whisper, resumeDelay) }

// SetIntensity switches the base tier and persists it.
func (e *Engine) SetIntensity(level Intensity) error {
	e.mu.Lock()
	v, ok := e.opts.Volumes[level]
	if !ok {
		e.mu.Unlock()
		log.Warnf("invalid intensity level: %s", level)
		return fmt.Errorf("%w: %q", ErrInvalidIntensity, level)
	}
	e.intensity = level
	e.st.Base = v
	e.recompute("intensity "+string(level), intensityRamp)
	e.mu.Unlock()

	e.persist(settings.KeyAmbientIntensity, string(level))
	return nil
}

func (e *Engine) Intensity() Intensity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intensity
}

// NextIntensity cycles low, medium, high.
func (e *Engine) NextIntensity() Intensity {
	switch e.Intensity() {
	case Low:
		return Medium
	case Medium:
		return High
	}
	return Low
}

// ToggleMute flips and persists mute, returning the new state.
func (e *Engine) ToggleMute() bool {
	e.mu.Lock()
	e.st.Muted = !e.st.Muted
	muted := e.st.Muted
	e.recompute("mute", muteRamp)
	e.mu.Unlock()

	if e.store != nil {
		if err := settings.SetBool(e.store, settings.KeyAmbientMuted, muted); err != nil {
			log.Warnf("persist ambient mute: %v", err)
		}
	}
	return muted
}

func (e *Engine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.Muted
}

// SetVolume replaces the base volume, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Base = max(0, min(1, v))
	e.recompute("volume", volumeRamp)
}

// Volume is the base volume, or 0 while muted.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.st.Muted {
		return 0
	}
	return e.st.Base
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st
}

func (e *Engine) EffectiveVolume() float64 {
	return EffectiveVolume(e.State())
}

// Gain is the ambient bus gain currently heard on the audio clock.
func (e *Engine) Gain() float64 {
	if e.g == nil {
		return 0
	}
	return e.g.AmbientGain().ValueAt(e.g.Now())
}

func (e *Engine) persist(key, value string) {
	if e.store == nil {
		return
	}
	if err := e.store.Set(key, value); err != nil {
		log.Warnf("persist %s: %v", key, err)
	}
}

// Close stops the scene and every pending resume.
func (e *Engine) Close() {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	for f := range e.resumes {
		e.seq[f]++
		if t := e.resumes[f]; t != nil {
			t.Stop()
			e.resumes[f] = nil
		}
	}
}
