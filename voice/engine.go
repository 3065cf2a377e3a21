// Package voice speaks ghost lines: mood-driven presets, persona voices and
// emotional stingers, all arbitrated on the voice channel.
package voice

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"nexus/clock"
	"nexus/graph"
	"nexus/log"
	"nexus/priority"
)

const (
	emotionLead = 300 * time.Millisecond
	reverbMix   = 0.18
	stingerTag  = "stinger"
)

// Settings are explicit speech parameters. Zero Pitch, Rate or Volume mean
// 1.0. Gender drives both the pitch shift and voice choice; VoiceKeywords,
// when set, take precedence in voice choice.
type Settings struct {
	Pitch         float64
	Rate          float64
	Volume        float64
	Gender        string
	Preset        Mood
	Reverb        float64
	VoiceKeywords []string
}

type Options struct {
	Moods *MoodTable
	Rand  *rand.Rand
}

type Engine struct {
	sp    Speaker
	arb   *priority.Arbiter
	g     *graph.Graph
	clk   clock.Clock
	moods *MoodTable

	mu         sync.Mutex
	rng        *rand.Rand
	master     float64
	cursed     bool
	grant      *priority.Grant
	cancel     context.CancelCauseFunc
	utterances int
}

// New wires an engine. g carries the stingers and may be nil.
func New(sp Speaker, arb *priority.Arbiter, g *graph.Graph, clk clock.Clock, opts Options) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if opts.Moods == nil {
		opts.Moods = DefaultMoodTable()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{sp: sp, arb: arb, g: g, clk: clk, moods: opts.Moods, rng: rng, master: 1}
}

func (e *Engine) Available() bool { return e.sp != nil && e.sp.Available() }

func (e *Engine) DetectMood(text string) Mood { return e.moods.Detect(text) }

func (e *Engine) SetMasterVolume(v float64) {
	e.mu.Lock()
	e.master = max(0, min(1, v))
	e.mu.Unlock()
	log.Infof("voice master volume %.0f%%", v*100)
}

func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master
}

func (e *Engine) SetCursedMode(on bool) {
	e.mu.Lock()
	e.cursed = on
	e.mu.Unlock()
}

func (e *Engine) CursedMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursed
}

// Speaking reports whether an utterance currently holds the voice channel.
func (e *Engine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.grant != nil
}

// Utterances counts every utterance that was granted the output.
func (e *Engine) Utterances() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.utterances
}

func (e *Engine) check(text string) error {
	if !e.Available() {
		log.Warn("speech synthesis not available")
		return ErrUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return ErrNoText
	}
	return nil
}

// Speak says text with a mood preset. An empty or "auto" preset is chosen
// by DetectMood. It blocks until the utterance ends.
func (e *Engine) Speak(ctx context.Context, text string, preset Mood) error {
	if err := e.check(text); err != nil {
		return err
	}
	if preset == "" || preset == "auto" {
		preset = e.DetectMood(text)
	}
	cfg, ok := PresetFor(preset)
	if !ok {
		preset = Storyteller
		cfg, _ = PresetFor(Storyteller)
	}

	voices := e.sp.Voices()
	v, ok := findVoice(voices, cfg.Hints)
	if !ok {
		v, _ = firstEnglish(voices)
	}
	u := Utterance{
		Text:   text,
		Voice:  v.Name,
		Pitch:  cfg.Pitch,
		Rate:   cfg.Rate,
		Volume: cfg.Volume * e.MasterVolume(),
	}
	log.Utterance(string(preset), "", false, u.Pitch, u.Rate, u.Volume, u.Voice)
	return e.say(ctx, u)
}

// SpeakWithSettings says text with explicit parameters. useReverb forces the
// 18% room; otherwise s.Reverb is the wet mix.
func (e *Engine) SpeakWithSettings(ctx context.Context, text string, s Settings, useReverb bool) error {
	if err := e.check(text); err != nil {
		return err
	}
	u := e.resolve(text, s, useReverb)
	return e.say(ctx, u)
}

func (e *Engine) resolve(text string, s Settings, useReverb bool) Utterance {
	pitch, rate, vol := s.Pitch, s.Rate, s.Volume
	if pitch == 0 {
		pitch = 1
	}
	if rate == 0 {
		rate = 1
	}
	if vol == 0 {
		vol = 1
	}

	e.mu.Lock()
	cursed, master := e.cursed, e.master
	e.mu.Unlock()

	gender := strings.ToLower(s.Gender)
	if gender != "" {
		pitch, rate = adjustForGender(pitch, rate, gender, cursed)
	}

	voices := e.sp.Voices()
	var v VoiceInfo
	found := false
	if len(s.VoiceKeywords) > 0 {
		v, found = findVoice(voices, s.VoiceKeywords)
	}
	if !found && gender != "" {
		pool := englishOnly(voices)
		switch gender {
		case "female":
			v, found = findVoice(pool, femaleNames)
		case "male":
			v, found = findVoice(pool, maleNames)
		}
		if !found && len(pool) > 0 {
			v, found = pool[0], true
		}
	}
	if !found && s.Preset != "" {
		if p, ok := PresetFor(s.Preset); ok {
			v, found = findVoice(voices, p.Hints)
		}
	}
	if !found {
		v, _ = firstEnglish(voices)
	}

	mix := s.Reverb
	if useReverb {
		mix = reverbMix
	}
	u := Utterance{
		Text:   text,
		Voice:  v.Name,
		Pitch:  pitch,
		Rate:   rate,
		Volume: vol * master,
		Reverb: max(0, min(1, mix)),
	}
	log.Utterance(string(s.Preset), gender, cursed && gender != "", u.Pitch, u.Rate, u.Volume, u.Voice)
	return u
}

// say holds the voice channel for the length of one utterance. The grant is
// released on every exit path.
func (e *Engine) say(ctx context.Context, u Utterance) error {
	grant, ok := e.arb.Acquire(priority.Voice, nil)
	if !ok {
		log.Warn("speech blocked by higher priority audio")
		return ErrPriorityConflict
	}
	defer grant.Release()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	e.mu.Lock()
	prev := e.cancel
	e.cancel = cancel
	e.grant = grant
	e.utterances++
	e.mu.Unlock()
	if prev != nil {
		prev(ErrInterrupted)
	}

	defer func() {
		e.mu.Lock()
		if e.grant == grant {
			e.grant = nil
			e.cancel = nil
		}
		e.mu.Unlock()
	}()

	log.SpokenText(u.Text)
	err := e.sp.Speak(ctx, u)
	if err == nil {
		return nil
	}
	if cause := context.Cause(ctx); cause != nil {
		if errors.Is(cause, ErrInterrupted) {
			return ErrInterrupted
		}
		return cause
	}
	return &SynthesisError{Voice: u.Voice, Err: err}
}

// SpeakWithEmotion plays a stinger per *marker* in text, waits briefly, then
// speaks what remains once the markers are removed.
func (e *Engine) SpeakWithEmotion(ctx context.Context, text string, s Settings, useReverb bool) error {
	emotions := DetectEmotions(text)
	if len(emotions) > 0 {
		for _, em := range emotions {
			e.PlayStinger(em, stingerLength)
		}
		select {
		case <-e.clk.After(emotionLead):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	clean := StripMarkers(text)
	if clean == "" {
		return nil
	}
	return e.SpeakWithSettings(ctx, clean, s, useReverb)
}

// PlayStinger renders an emotion effect onto the direct bus.
func (e *Engine) PlayStinger(em Emotion, d time.Duration) {
	log.Stinger(string(em))
	if e.g == nil {
		return
	}
	e.mu.Lock()
	seed := e.rng.Uint64()
	e.mu.Unlock()
	buf := RenderStinger(em, e.g.SampleRate(), d, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	if len(buf) == 0 {
		return
	}
	e.g.Play(graph.Direct, stingerTag, buf.Streamer())
}

// SpeakQueue says each text in turn. Failures are logged and skipped.
func (e *Engine) SpeakQueue(ctx context.Context, texts []string, preset Mood) {
	for _, t := range texts {
		if ctx.Err() != nil {
			return
		}
		if err := e.Speak(ctx, t, preset); err != nil {
			log.Warnf("speech queue: %v", err)
		}
	}
}

// Stop cancels the current utterance and releases the voice channel.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, grant := e.cancel, e.grant
	e.cancel, e.grant = nil, nil
	e.mu.Unlock()
	if cancel != nil {
		cancel(ErrInterrupted)
	}
	grant.Release()
}

func (e *Engine) Pause() {
	if e.Speaking() {
		e.sp.Pause()
	}
}

func (e *Engine) Resume() {
	if e.Speaking() {
		e.sp.Resume()
	}
}

// Voices lists what the speech backend offers.
func (e *Engine) Voices() []VoiceInfo {
	if e.sp == nil {
		return nil
	}
	return e.sp.Voices()
}
