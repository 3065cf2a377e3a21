// Package greeting speaks short welcome lines when the mode or the page
// changes. Both greeters speak through the voice engine, so they take the
// voice channel like any other utterance.
package greeting

import (
	"context"
	"errors"
	"sync"
	"time"

	"nexus/clock"
	"nexus/log"
	"nexus/voice"
)

// Mode greets a switch between normal and cursed mode.
type Mode struct {
	v *voice.Engine
}

func NewMode(v *voice.Engine) *Mode { return &Mode{v: v} }

var modeSettings = voice.Settings{
	Pitch:         0.4,
	Rate:          0.6,
	Volume:        0.8,
	VoiceKeywords: []string{"male", "deep", "dark", "daniel", "david"},
}

func ModeText(cursed bool) string {
	if cursed {
		return "Welcome to Haunted Hell"
	}
	return "Welcome to the Haunted Nexus"
}

// Play cuts off whatever is being said and speaks the mode greeting. It
// blocks until the greeting ends.
func (m *Mode) Play(ctx context.Context, cursed bool) error {
	if !m.v.Available() {
		log.Warn("mode greeting skipped: speech unavailable")
		return voice.ErrUnavailable
	}
	m.v.Stop()
	err := m.v.SpeakWithSettings(ctx, ModeText(cursed), modeSettings, false)
	if errors.Is(err, voice.ErrPriorityConflict) {
		log.Warn("mode greeting blocked by higher priority audio")
	}
	return err
}

const (
	ReturnPath = "/return"
	cooldown   = 5 * time.Second
	delay      = time.Second
)

var pageGreetings = map[string]string{
	"/":                      "Welcome to The Haunted Nexus",
	ReturnPath:               "You have returned to the Nexus",
	"/ghost-chat":            "Welcome to Ghost Chat",
	"/haunted-journal":       "Welcome to the Haunted Journal",
	"/haunted-map":           "Welcome to the Haunted Map",
	"/reanimator":            "Welcome to the Reanimator",
	"/frankenstein-stitcher": "Welcome to the Frankenstein Stitcher",
	"/cursed-atelier":        "Welcome to the Cursed Atelier",
}

// Page greets arrival on a page, at most once per cooldown window.
type Page struct {
	v   *voice.Engine
	clk clock.Clock

	mu      sync.Mutex
	last    map[string]time.Time
	visited bool
	master  float64
}

func NewPage(v *voice.Engine, clk clock.Clock) *Page {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Page{v: v, clk: clk, last: map[string]time.Time{}, master: 1}
}

func (p *Page) SetMasterVolume(v float64) {
	p.mu.Lock()
	p.master = max(0, min(1, v))
	p.mu.Unlock()
}

// pick decides which line to say for path and claims the cooldown slot.
func (p *Page) pick(path string, reload bool) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text, key := pageGreetings[path], path
	if path == "/" {
		if p.visited && !reload {
			text = pageGreetings[ReturnPath]
		}
		p.visited = true
	}
	if text == "" {
		log.Infof("no greeting for %s", path)
		return "", false
	}

	now := p.clk.Now()
	if path != "/" || !reload {
		if t, ok := p.last[key]; ok && now.Sub(t) < cooldown {
			log.Infof("greeting for %s on cooldown (%s left)", path, (cooldown - now.Sub(t)).Round(time.Second))
			return "", false
		}
	}
	p.last[key] = now
	return text, true
}

// Play waits a moment for the page to settle, then speaks its greeting.
// Failures are logged and reported as false; they never reach the caller.
func (p *Page) Play(ctx context.Context, path string, reload bool) bool {
	text, ok := p.pick(path, reload)
	if !ok {
		return false
	}

	select {
	case <-p.clk.After(delay):
	case <-ctx.Done():
		return false
	}

	p.mu.Lock()
	s := voice.Settings{Pitch: 0.6, Rate: 0.75, Volume: p.master, Preset: voice.Eerie}
	p.mu.Unlock()
	if s.Volume == 0 {
		return false
	}
	if err := p.v.SpeakWithSettings(ctx, text, s, false); err != nil {
		log.Errorf("greeting %s: %v", path, err)
		return false
	}
	return true
}

// Reset forgets every cooldown.
func (p *Page) Reset() {
	p.mu.Lock()
	p.last = map[string]time.Time{}
	p.mu.Unlock()
	log.Info("page greetings reset")
}

func (p *Page) OnCooldown(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.last[path]
	return ok && p.clk.Now().Sub(t) < cooldown
}
