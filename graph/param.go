package graph

import (
	"sync"
	"time"
)

type eventKind int

const (
	setEvent eventKind = iota
	rampEvent
)

type event struct {
	kind eventKind
	at   float64
	v    float64
}

// Param is an automatable value whose timeline is expressed in audio-clock
// seconds. Values between a point and a following ramp are interpolated
// linearly.
type Param struct {
	mu      sync.Mutex
	initial float64
	events  []event
}

func NewParam(v float64) *Param {
	return &Param{initial: v}
}

func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return valueAt(p.initial, p.events, t)
}

func valueAt(initial float64, events []event, t float64) float64 {
	v, from := initial, -1.0
	for _, e := range events {
		if e.at <= t {
			v, from = e.v, e.at
			continue
		}
		if e.kind == rampEvent {
			if from < 0 {
				return v
			}
			frac := (t - from) / (e.at - from)
			return v + (e.v-v)*frac
		}
		break
	}
	return v
}

// SetValueAtTime pins the value at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insert(event{kind: setEvent, at: t, v: v})
}

// LinearRampToValueAtTime ramps from the previous event to v, reaching it at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insert(event{kind: rampEvent, at: t, v: v})
}

// CancelScheduledValues drops every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.events {
		if e.at >= t {
			p.events = p.events[:i]
			return
		}
	}
}

// RampTo cancels whatever is scheduled after now and ramps from the value
// currently heard to target over d. The last caller wins. A zero duration
// jumps.
func (p *Param) RampTo(target, now float64, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur := valueAt(p.initial, p.events, now)
	p.initial = cur
	p.events = p.events[:0]
	p.events = append(p.events, event{kind: setEvent, at: now, v: cur})
	if d <= 0 {
		p.events[0].v = target
		return
	}
	p.events = append(p.events, event{kind: rampEvent, at: now + d.Seconds(), v: target})
}

// Target returns the value the timeline settles on.
func (p *Param) Target() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return p.initial
	}
	return p.events[len(p.events)-1].v
}

func (p *Param) snapshot() (float64, []event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initial, append([]event(nil), p.events...)
}

func (p *Param) insert(e event) {
	i := len(p.events)
	for i > 0 && p.events[i-1].at > e.at {
		i--
	}
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}
