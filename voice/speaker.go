package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnavailable      = errors.New("speech synthesis not available")
	ErrNoText           = errors.New("no text provided")
	ErrPriorityConflict = errors.New("audio priority conflict")
	ErrInterrupted      = errors.New("speech interrupted")
)

// SynthesisError wraps a failure reported by the speech backend.
type SynthesisError struct {
	Voice string
	Err   error
}

func (e *SynthesisError) Error() string {
	if e.Voice == "" {
		return fmt.Sprintf("speech synthesis: %v", e.Err)
	}
	return fmt.Sprintf("speech synthesis (%s): %v", e.Voice, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

type VoiceInfo struct {
	Name string
	Lang string
}

func (v VoiceInfo) English() bool {
	return strings.HasPrefix(strings.ToLower(v.Lang), "en")
}

// Utterance is one fully resolved request to the speech backend. Pitch and
// Rate are multipliers around 1.0; Reverb is a wet mix in [0, 1].
type Utterance struct {
	Text   string
	Voice  string
	Pitch  float64
	Rate   float64
	Volume float64
	Reverb float64
}

// Speaker is the platform speech capability.
type Speaker interface {
	Available() bool
	Voices() []VoiceInfo
	// Speak blocks until the utterance has been heard or ctx is done.
	Speak(ctx context.Context, u Utterance) error
	Pause()
	Resume()
}

func findVoice(voices []VoiceInfo, keywords []string) (VoiceInfo, bool) {
	for _, k := range keywords {
		k = strings.ToLower(k)
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), k) {
				return v, true
			}
		}
	}
	return VoiceInfo{}, false
}

func firstEnglish(voices []VoiceInfo) (VoiceInfo, bool) {
	for _, v := range voices {
		if v.English() {
			return v, true
		}
	}
	if len(voices) > 0 {
		return voices[0], true
	}
	return VoiceInfo{}, false
}

func englishOnly(voices []VoiceInfo) []VoiceInfo {
	var en []VoiceInfo
	for _, v := range voices {
		if v.English() {
			en = append(en, v)
		}
	}
	if len(en) == 0 {
		return voices
	}
	return en
}
