// Package priority decides which sound channel owns the output at any
// instant and keeps the ambient bed suppressed while a louder channel plays.
package priority

import (
	"sync"
	"time"

	"nexus/clock"
	"nexus/log"
)

// Suppressor is the ambient side of arbitration. Every pause dispatched on
// grant is matched by its resume when the grant ends.
type Suppressor interface {
	PauseForSpeech()
	ResumeAfterSpeech()
	PauseForFootsteps()
	ResumeAfterFootsteps()
	DuckForWhisper()
	ResumeAfterWhisper()
}

// Policy decides what happens when a request has the same priority as the
// channel already playing.
type Policy int

const (
	// SamePriorityLatestWins lets the newer request take over silently. The
	// earlier holder is not told; its later release is ignored.
	SamePriorityLatestWins Policy = iota
	// SamePriorityReject denies the newer request.
	SamePriorityReject
)

func (p Policy) String() string {
	switch p {
	case SamePriorityLatestWins:
		return "same-priority-latest-wins"
	case SamePriorityReject:
		return "same-priority-reject"
	}
	return "unknown"
}

type Options struct {
	Policy Policy
	// GrantTimeout force-releases a grant held longer than this. Zero keeps
	// grants forever.
	GrantTimeout time.Duration
	// OnExpire is called after the watchdog releases a grant.
	OnExpire func(Channel)
	Clock    clock.Clock
}

type State struct {
	Playing  bool
	Priority int
	Channel  Channel
	Pending  int
}

type request struct {
	ch Channel
	fn func()
}

type Arbiter struct {
	opts Options

	mu       sync.Mutex
	amb      Suppressor
	current  Channel
	playing  bool
	pending  []request
	gen      uint64
	since    time.Time
	watchdog clock.Timer
}

func New(amb Suppressor, opts Options) *Arbiter {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Arbiter{opts: opts, amb: amb, current: Ambient}
}

// SetSuppressor registers the ambient controller.
func (a *Arbiter) SetSuppressor(s Suppressor) {
	a.mu.Lock()
	a.amb = s
	a.mu.Unlock()
}

func (a *Arbiter) Policy() Policy { return a.opts.Policy }

// RequestPlay grants ch when nothing is playing or when ch is at least as
// urgent as the current channel. On grant the ambient hook for ch runs before
// onGranted. A denial has no side effects.
func (a *Arbiter) RequestPlay(ch Channel, onGranted func()) bool {
	_, ok := a.acquire(ch, onGranted, false)
	return ok
}

// Acquire is RequestPlay returning a handle whose Release notifies at most
// once, and only while the grant is still current.
func (a *Arbiter) Acquire(ch Channel, onGranted func()) (*Grant, bool) {
	return a.acquire(ch, onGranted, false)
}

// Enqueue is RequestPlay, except that a denied request waits in the pending
// queue and is retried when the current channel finishes.
func (a *Arbiter) Enqueue(ch Channel, onGranted func()) bool {
	_, ok := a.acquire(ch, onGranted, true)
	return ok
}

func (a *Arbiter) allows(prio int) bool {
	if !a.playing {
		return true
	}
	cur := a.current.Priority()
	if prio < cur {
		return true
	}
	if prio == cur {
		return a.opts.Policy == SamePriorityLatestWins
	}
	return false
}

func (a *Arbiter) acquire(ch Channel, onGranted func(), queue bool) (*Grant, bool) {
	a.mu.Lock()
	if !a.allows(ch.Priority()) {
		holder := a.current
		if queue {
			a.pending = append(a.pending, request{ch: ch, fn: onGranted})
		}
		a.mu.Unlock()
		log.Deny(ch.String(), holder.String())
		return nil, false
	}

	prev, wasPlaying := a.current, a.playing
	a.gen++
	g := &Grant{a: a, ch: ch, gen: a.gen}
	a.current = ch
	a.playing = true
	a.since = a.opts.Clock.Now()
	a.armWatchdog(a.gen)
	amb := a.amb
	a.mu.Unlock()

	suppress(amb, ch)
	preempted := wasPlaying && prev != ch
	if preempted {
		restore(amb, prev)
	}
	log.Grant(ch.String(), prev.String(), preempted)

	if onGranted != nil {
		onGranted()
	}
	return g, true
}

func (a *Arbiter) armWatchdog(gen uint64) {
	if a.watchdog != nil {
		a.watchdog.Stop()
		a.watchdog = nil
	}
	if a.opts.GrantTimeout <= 0 {
		return
	}
	a.watchdog = a.opts.Clock.AfterFunc(a.opts.GrantTimeout, func() { a.expire(gen) })
}

func (a *Arbiter) expire(gen uint64) {
	a.mu.Lock()
	if !a.playing || a.gen != gen {
		a.mu.Unlock()
		return
	}
	ch := a.current
	held := a.opts.Clock.Now().Sub(a.since)
	a.mu.Unlock()

	log.Expire(ch.String(), held)
	if a.finish(ch, gen, true) && a.opts.OnExpire != nil {
		a.opts.OnExpire(ch)
	}
}

// NotifyFinished ends the current grant when ch is the channel holding it:
// ambient is restored, state returns to the ambient baseline and the oldest
// pending request is retried.
func (a *Arbiter) NotifyFinished(ch Channel) {
	a.finish(ch, 0, false)
}

func (a *Arbiter) finish(ch Channel, gen uint64, checkGen bool) bool {
	a.mu.Lock()
	if !a.playing || a.current != ch || (checkGen && a.gen != gen) {
		a.mu.Unlock()
		return false
	}
	a.playing = false
	a.current = Ambient
	a.gen++
	if a.watchdog != nil {
		a.watchdog.Stop()
		a.watchdog = nil
	}
	var next *request
	if len(a.pending) > 0 {
		next = &a.pending[0]
		a.pending = a.pending[1:]
	}
	pending := len(a.pending)
	amb := a.amb
	a.mu.Unlock()

	restore(amb, ch)
	log.Release(ch.String(), pending)

	if next != nil {
		a.RequestPlay(next.ch, next.fn)
	}
	return true
}

// Reset drops every grant and pending request without touching ambient.
func (a *Arbiter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.playing = false
	a.current = Ambient
	a.pending = nil
	a.gen++
	if a.watchdog != nil {
		a.watchdog.Stop()
		a.watchdog = nil
	}
}

func (a *Arbiter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		Playing:  a.playing,
		Priority: a.current.Priority(),
		Channel:  a.current,
		Pending:  len(a.pending),
	}
}

// IsPlaying reports whether ch currently holds the output.
func (a *Arbiter) IsPlaying(ch Channel) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing && a.current == ch
}

// Grant is one successful acquisition.
type Grant struct {
	a    *Arbiter
	ch   Channel
	gen  uint64
	once sync.Once
}

func (g *Grant) Channel() Channel { return g.ch }

// Current reports whether this grant still holds the output.
func (g *Grant) Current() bool {
	g.a.mu.Lock()
	defer g.a.mu.Unlock()
	return g.a.playing && g.a.gen == g.gen
}

// Release ends the grant if it is still current. Safe to call repeatedly
// and from any goroutine.
func (g *Grant) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() { g.a.finish(g.ch, g.gen, true) })
}

func suppress(s Suppressor, ch Channel) {
	if s == nil {
		return
	}
	switch ch {
	case Voice:
		s.PauseForSpeech()
	case Footsteps:
		s.PauseForFootsteps()
	case ScareCue:
		s.DuckForWhisper()
	}
}

func restore(s Suppressor, ch Channel) {
	if s == nil {
		return
	}
	switch ch {
	case Voice:
		s.ResumeAfterSpeech()
	case Footsteps:
		s.ResumeAfterFootsteps()
	case ScareCue:
		s.ResumeAfterWhisper()
	}
}
