package voice

import (
	"context"
	"sync"
)

// FakeSpeaker records utterances instead of producing sound. With Block set,
// Speak waits for Finish or cancellation.
type FakeSpeaker struct {
	VoiceList   []VoiceInfo
	Unavailable bool
	Err         error
	Block       bool

	mu      sync.Mutex
	spoken  []Utterance
	paused  bool
	started chan Utterance
	release chan struct{}
}

func NewFakeSpeaker() *FakeSpeaker {
	return &FakeSpeaker{
		VoiceList: []VoiceInfo{
			{Name: "Daniel (male)", Lang: "en-GB"},
			{Name: "Samantha (female)", Lang: "en-US"},
			{Name: "Thomas", Lang: "fr-FR"},
		},
		started: make(chan Utterance, 64),
		release: make(chan struct{}, 64),
	}
}

func (f *FakeSpeaker) Available() bool     { return !f.Unavailable }
func (f *FakeSpeaker) Voices() []VoiceInfo { return f.VoiceList }

func (f *FakeSpeaker) Speak(ctx context.Context, u Utterance) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, u)
	f.mu.Unlock()
	select {
	case f.started <- u:
	default:
	}
	if f.Err != nil {
		return f.Err
	}
	if !f.Block {
		return ctx.Err()
	}
	select {
	case <-f.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeSpeaker) Pause() {
	f.mu.Lock()
	f.paused = true
	f.mu.Unlock()
}

func (f *FakeSpeaker) Resume() {
	f.mu.Lock()
	f.paused = false
	f.mu.Unlock()
}

func (f *FakeSpeaker) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

// Started delivers each utterance as Speak begins.
func (f *FakeSpeaker) Started() <-chan Utterance { return f.started }

// Finish ends one blocked utterance.
func (f *FakeSpeaker) Finish() { f.release <- struct{}{} }

func (f *FakeSpeaker) Spoken() []Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Utterance(nil), f.spoken...)
}
