package ambient

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"nexus/clock"
	"nexus/graph"
	"nexus/log"
	"nexus/synth"
)

type SceneID string

const (
	Whispers      SceneID = "whispers"
	WindHeartbeat SceneID = "wind_heartbeat"
	GlitchStatic  SceneID = "glitch_static"
	WindScreams   SceneID = "wind_screams"
	RadioStatic   SceneID = "radio_static"
	None          SceneID = "none"
)

// span is a uniform random duration in [lo, hi].
type span struct{ lo, hi time.Duration }

func (s span) pick(rng *rand.Rand) time.Duration {
	if s.hi <= s.lo {
		return s.lo
	}
	return s.lo + time.Duration(rng.Int64N(int64(s.hi-s.lo)))
}

func ms(lo, hi int) span {
	return span{time.Duration(lo) * time.Millisecond, time.Duration(hi) * time.Millisecond}
}

// layer is one self-retriggering generator of a scene.
type layer struct {
	name   string
	first  span
	every  span
	render func(rate int, rng *rand.Rand) synth.Buffer
}

var scenes = map[SceneID][]layer{
	Whispers: {
		{name: "whisper", every: ms(5000, 15000), render: renderWhisper},
	},
	WindHeartbeat: {
		{name: "wind", every: ms(4000, 10000), render: renderColdWind},
		{name: "heartbeat", every: ms(1000, 1500), render: renderHeartbeat},
	},
	GlitchStatic: {
		{name: "static", every: ms(3000, 10000), render: renderGlitch},
	},
	WindScreams: {
		{name: "wind", every: ms(5000, 10000), render: renderHowl},
		{name: "scream", first: ms(8000, 8000), every: ms(15000, 35000), render: renderScream},
	},
	RadioStatic: {
		{name: "static", every: ms(4000, 10000), render: renderRadio},
	},
}

var pageScenes = map[string]SceneID{
	"/ghost-chat":            Whispers,
	"/haunted-journal":       WindHeartbeat,
	"/frankenstein-stitcher": GlitchStatic,
	"/haunted-map":           WindScreams,
	"/reanimator":            RadioStatic,
}

// ScenesForPage maps a route to its scene, None when it has none.
func ScenesForPage(path string) SceneID {
	path = strings.TrimSuffix(path, "/")
	if id, ok := pageScenes[path]; ok {
		return id
	}
	return None
}

// Scenes lists the playable scene ids.
func Scenes() []SceneID {
	return []SceneID{Whispers, WindHeartbeat, GlitchStatic, WindScreams, RadioStatic}
}

func ParseScene(s string) (SceneID, error) {
	id := SceneID(strings.ToLower(strings.TrimSpace(s)))
	if id == None || id == "" {
		return None, nil
	}
	if _, ok := scenes[id]; !ok {
		return None, fmt.Errorf("%w: %q", ErrUnknownScene, s)
	}
	return id, nil
}

type run struct {
	id     SceneID
	tag    string
	timers []clock.Timer
}

// PlayScene stops the current scene and starts id. None only stops.
func (e *Engine) PlayScene(id SceneID) error {
	if id == "" {
		id = None
	}
	layers, ok := scenes[id]
	if !ok && id != None {
		return fmt.Errorf("%w: %q", ErrUnknownScene, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	log.Scene(string(id))
	if id == None {
		return nil
	}

	r := &run{id: id, tag: "ambient/" + string(id), timers: make([]clock.Timer, len(layers))}
	e.scene = r
	if e.g == nil {
		return nil
	}
	for i, l := range layers {
		e.arm(r, i, l, l.first.pick(e.rng))
	}
	return nil
}

// Scene returns the active scene id.
func (e *Engine) Scene() SceneID {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scene == nil {
		return None
	}
	return e.scene.id
}

// Stop ends the active scene and hard-stops its voices.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	r := e.scene
	if r == nil {
		return
	}
	e.scene = nil
	for _, t := range r.timers {
		if t != nil {
			t.Stop()
		}
	}
	if e.g != nil {
		e.g.StopTag(r.tag)
	}
}

func (e *Engine) arm(r *run, i int, l layer, after time.Duration) {
	r.timers[i] = e.clk.AfterFunc(after, func() { e.trigger(r, i, l) })
}

func (e *Engine) trigger(r *run, i int, l layer) {
	e.mu.Lock()
	if e.scene != r {
		e.mu.Unlock()
		return
	}
	play := !e.st.Muted && e.g.Active(r.tag) < e.opts.MaxChains
	seed := e.rng.Uint64()
	e.arm(r, i, l, l.every.pick(e.rng))
	e.mu.Unlock()

	if !play {
		return
	}
	buf := l.render(e.g.SampleRate(), rand.New(rand.NewPCG(seed, seed>>1|1)))

	e.mu.Lock()
	defer e.mu.Unlock()
	// Another layer may have started a chain while this one rendered.
	if e.scene != r || e.g.Active(r.tag) >= e.opts.MaxChains {
		return
	}
	e.g.Play(graph.Ambient, r.tag, buf.Streamer())
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func renderWhisper(rate int, rng *rand.Rand) synth.Buffer {
	dur := uniform(rng, 2, 5)
	tone := synth.Osc(rate, synth.Sine, synth.Const(uniform(rng, 700, 900)), dur).
		Filter(rate, synth.Bandpass, synth.Vibrato(800, uniform(rng, 1, 3), 150), 2).
		Gain(0.4)
	breath := synth.Noise(rate, min(dur, 2), 0.3, rng).
		Filter(rate, synth.Bandpass, synth.Const(750), 3).
		Gain(0.08)
	return tone.Add(breath, 0).Stereo()
}

func renderColdWind(rate int, rng *rand.Rand) synth.Buffer {
	return synth.Noise(rate, 2, 0.3, rng).
		Filter(rate, synth.Lowpass, synth.Const(500), 0.707).
		Stereo()
}

func renderHeartbeat(rate int, rng *rand.Rand) synth.Buffer {
	env := synth.NewEnvelope(0).Linear(0.3, 0.05).Linear(0, 0.2)
	return synth.Osc(rate, synth.Sine, synth.Const(60), 0.3).
		Shape(rate, env).
		Stereo()
}

func renderGlitch(rate int, rng *rand.Rand) synth.Buffer {
	return synth.Noise(rate, 0.5, 0.2, rng).
		Filter(rate, synth.Highpass, synth.Const(2000), 0.707).
		Stereo()
}

func renderHowl(rate int, rng *rand.Rand) synth.Buffer {
	return synth.Noise(rate, 3, 0.28, rng).
		Filter(rate, synth.Bandpass, synth.Const(400), 1).
		Gain(0.25).
		Stereo()
}

func renderScream(rate int, rng *rand.Rand) synth.Buffer {
	env := synth.NewEnvelope(0).Linear(1, 0.3).Linear(0.7, 0.6).Linear(0, 1.2)
	return synth.Osc(rate, synth.Saw, synth.Const(800), 1.3).
		Filter(rate, synth.Bandpass, synth.Const(1200), 5).
		Gain(0.18).
		Shape(rate, env).
		Stereo()
}

func renderRadio(rate int, rng *rand.Rand) synth.Buffer {
	return synth.Noise(rate, 1, 0.22, rng).
		Filter(rate, synth.Highpass, synth.Const(2500), 1.5).
		Gain(0.22).
		Stereo()
}
