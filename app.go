package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nexus/ambient"
	"nexus/backend"
	"nexus/clock"
	"nexus/config"
	"nexus/footsteps"
	"nexus/graph"
	"nexus/greeting"
	"nexus/intro"
	"nexus/log"
	"nexus/priority"
	"nexus/record"
	"nexus/settings"
	"nexus/tts"
	"nexus/typing"
	"nexus/voice"
)

// app owns every audio component for one session.
type app struct {
	cfg   config.Config
	clk   clock.Clock
	g     *graph.Graph
	dev   graph.Device
	store settings.Store

	arb    *priority.Arbiter
	amb    *ambient.Engine
	speech voice.Speaker
	voice  *voice.Engine
	steps  *footsteps.Engine
	keys   *typing.Sounds
	ghost  *typing.Ghost
	mode   *greeting.Mode
	page   *greeting.Page
	intro  *intro.Player
	api    *backend.Client
	rec    *record.Recorder

	mu       sync.Mutex
	master   settings.MasterLevel
	path     string
	persona  string
	lastText string
	stop     context.CancelFunc
	bg       sync.WaitGroup
}

type appOptions struct {
	clock   clock.Clock
	speaker voice.Speaker
	store   settings.Store
	// headless renders without a device even when one is available.
	headless bool
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	clk := opts.clock
	if clk == nil {
		clk = clock.Real{}
	}
	a := &app{cfg: cfg, clk: clk, g: graph.New(cfg.SampleRate), path: "/"}

	a.store = opts.store
	if a.store == nil {
		fs, err := settings.Open(cfg.SettingsPath)
		if err != nil {
			log.Warnf("settings: %v, using defaults", err)
			a.store = settings.NewMemStore()
		} else {
			a.store = fs
		}
	}

	if cfg.RecordPath != "" {
		rec, err := record.Create(cfg.RecordPath, a.g.SampleRate())
		if err != nil {
			return nil, err
		}
		a.rec = rec
		a.g.SetTap(rec.Write)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	if opts.headless || cfg.Headless {
		a.runBackground(func() { a.g.RunHeadless(ctx) })
	} else {
		dev, err := graph.Open(a.g)
		if err != nil {
			log.Warnf("audio output: %v, rendering headless", err)
			a.runBackground(func() { a.g.RunHeadless(ctx) })
		} else {
			a.dev = dev
		}
	}

	a.amb = ambient.New(a.g, clk, a.store, ambient.Options{MaxChains: cfg.MaxChains})
	a.arb = priority.New(a.amb, priority.Options{
		GrantTimeout: cfg.GrantTimeout,
		Clock:        clk,
		OnExpire: func(ch priority.Channel) {
			log.Warnf("%s held past %s, released", ch, cfg.GrantTimeout)
			notifyTUI("%s released after %s", ch, cfg.GrantTimeout)
		},
	})

	var moods *voice.MoodTable
	if cfg.MoodsPath != "" {
		t, err := voice.LoadMoodFile(cfg.MoodsPath)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("mood table: %w", err)
		}
		moods = t
	}
	a.speech = opts.speaker
	if a.speech == nil {
		a.speech = tts.New(cfg.EspeakPath, a.g)
	}
	a.voice = voice.New(a.speech, a.arb, a.g, clk, voice.Options{Moods: moods})
	a.voice.SetCursedMode(settings.Bool(a.store, settings.KeyCursedMode, false))

	a.steps = footsteps.New(a.arb, a.g, clk, footsteps.Options{})
	a.keys = typing.NewSounds(a.g, clk, nil)
	a.ghost = typing.NewGhost(a.g, clk, nil)
	a.mode = greeting.NewMode(a.voice)
	a.page = greeting.NewPage(a.voice, clk)
	a.intro = intro.New(a.g, cfg.IntroPath)

	a.api = backend.New(cfg.APIURL, backend.Options{Clock: clk})
	a.api.Cache().StartCleanup(ctx)

	a.applyMaster(settings.Master(a.store), false)
	return a, nil
}

func (a *app) runBackground(f func()) {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		f()
	}()
}

// close tears down in dependency order. It tolerates a partially built app.
func (a *app) close() {
	if a.steps != nil {
		a.steps.Stop()
	}
	if a.voice != nil {
		a.voice.Stop()
	}
	if a.amb != nil {
		a.amb.Close()
	}
	if a.intro != nil {
		a.intro.Stop()
	}
	a.stop()
	if a.dev != nil {
		a.dev.Close()
	}
	a.bg.Wait()
	if a.rec != nil {
		a.g.SetTap(nil)
		if err := a.rec.Close(); err != nil {
			log.Warnf("recording: %v", err)
		} else {
			log.Infof("recorded %d frames to %s", a.rec.Frames(), a.cfg.RecordPath)
		}
	}
}

func (a *app) outputName() string {
	if a.dev != nil {
		return "device"
	}
	return "headless"
}

func (a *app) speechName() string {
	if a.voice.Available() {
		return "available"
	}
	return "unavailable"
}

// applyMaster pushes a master level to speech, greetings and music, and
// optionally persists it.
func (a *app) applyMaster(l settings.MasterLevel, persist bool) {
	a.mu.Lock()
	a.master = l
	a.mu.Unlock()

	a.voice.SetMasterVolume(l.VoiceVolume())
	a.page.SetMasterVolume(l.VoiceVolume())
	a.intro.SetVolume(l.MusicVolume())
	if l == settings.MasterOff {
		a.intro.Pause()
	} else {
		a.intro.Resume()
	}
	if persist {
		if err := a.store.Set(settings.KeyMasterVolume, string(l)); err != nil {
			log.Warnf("persist master volume: %v", err)
		}
	}
	log.Infof("master volume %s", l)
}

func (a *app) masterLevel() settings.MasterLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.master
}

func (a *app) cycleMaster() settings.MasterLevel {
	next := a.masterLevel().Next()
	a.applyMaster(next, true)
	return next
}

// switchPage moves to a page: its scene starts at once and the greeting
// follows in the background.
func (a *app) switchPage(path string, reload bool) {
	a.mu.Lock()
	a.path = path
	a.mu.Unlock()

	if err := a.amb.PlayScene(ambient.ScenesForPage(path)); err != nil {
		log.Warnf("scene for %s: %v", path, err)
	}
	a.runBackground(func() { a.page.Play(context.Background(), path, reload) })
}

func (a *app) currentPage() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

// toggleCursed flips cursed mode and greets it. The greeting runs in the
// background.
func (a *app) toggleCursed() bool {
	on := !a.voice.CursedMode()
	a.voice.SetCursedMode(on)
	if err := settings.SetBool(a.store, settings.KeyCursedMode, on); err != nil {
		log.Warnf("persist cursed mode: %v", err)
	}
	a.runBackground(func() {
		if err := a.mode.Play(context.Background(), on); err != nil && !errors.Is(err, voice.ErrInterrupted) {
			log.Warnf("mode greeting: %v", err)
		}
	})
	return on
}

func (a *app) toggleFootsteps() bool {
	if a.steps.Running() {
		a.steps.Stop()
		return false
	}
	a.steps.Start()
	return true
}

func (a *app) cyclePersona() voice.Persona {
	ps := voice.Personas()
	a.mu.Lock()
	defer a.mu.Unlock()
	next := 0
	for i, p := range ps {
		if p.ID == a.persona {
			next = (i + 1) % len(ps)
			break
		}
	}
	a.persona = ps[next].ID
	return ps[next]
}

func (a *app) currentPersona() (voice.Persona, bool) {
	a.mu.Lock()
	id := a.persona
	a.mu.Unlock()
	return voice.PersonaByID(id)
}

const chatFallback = "The spirits are silent... the connection to the other side has faded."

// chat sends msg to the ghost and speaks the reply in the persona's voice.
// A backend failure is spoken as a fallback line, so it never interrupts
// the session.
func (a *app) chat(ctx context.Context, msg string) (string, error) {
	msg, err := backend.ValidateText(msg, "Message", 1, 500)
	if err != nil {
		return "", err
	}
	persona, hasPersona := a.currentPersona()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	reply, err := a.api.GhostChat(ctx, msg, persona.ID)
	text := reply.Reply
	if err != nil {
		log.Warnf("ghost chat: %v", err)
		text = chatFallback
	}
	if reply.Persona != nil {
		persona, hasPersona = *reply.Persona, true
	}

	a.mu.Lock()
	a.lastText = voice.StripMarkers(text)
	a.mu.Unlock()

	s := voice.Settings{Preset: a.voice.DetectMood(text)}
	if hasPersona {
		s = voice.PersonaSettings(persona)
	}
	if err := a.voice.SpeakWithEmotion(context.Background(), text, s, false); err != nil && !errors.Is(err, voice.ErrInterrupted) {
		return text, err
	}
	return text, nil
}

func (a *app) lastReply() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastText
}

// status is a one-line snapshot for the console and script mode.
type status struct {
	Arbiter   priority.State
	Ambient   ambient.State
	Effective float64
	Intensity ambient.Intensity
	Scene     ambient.SceneID
	Master    settings.MasterLevel
	Cursed    bool
	Footsteps bool
	Speaking  bool
}

func (a *app) status() status {
	return status{
		Arbiter:   a.arb.State(),
		Ambient:   a.amb.State(),
		Effective: a.amb.EffectiveVolume(),
		Intensity: a.amb.Intensity(),
		Scene:     a.amb.Scene(),
		Master:    a.masterLevel(),
		Cursed:    a.voice.CursedMode(),
		Footsteps: a.steps.Running(),
		Speaking:  a.voice.Speaking(),
	}
}

func (s status) String() string {
	holder := "idle"
	if s.Arbiter.Playing {
		holder = fmt.Sprintf("%s(p%d)", s.Arbiter.Channel, s.Arbiter.Priority)
	}
	mute := ""
	if s.Ambient.Muted {
		mute = " muted"
	}
	return fmt.Sprintf("channel=%s ambient=%.2f intensity=%s%s scene=%s master=%s cursed=%t",
		holder, s.Effective, s.Intensity, mute, s.Scene, s.Master, s.Cursed)
}
