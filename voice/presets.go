package voice

import "slices"

// Preset is the immutable speech configuration for a mood.
type Preset struct {
	Pitch  float64
	Rate   float64
	Volume float64
	Hints  []string
}

var presets = map[Mood]Preset{
	Eerie:       {Pitch: 0.7, Rate: 0.8, Volume: 0.9, Hints: []string{"female", "whisper", "soft"}},
	Emotional:   {Pitch: 0.9, Rate: 0.85, Volume: 0.95, Hints: []string{"female", "expressive"}},
	Storyteller: {Pitch: 0.8, Rate: 0.75, Volume: 1.0, Hints: []string{"male", "deep", "narrator"}},
	Playful:     {Pitch: 1.2, Rate: 1.0, Volume: 0.9, Hints: []string{"female", "cheerful"}},
	Whisper:     {Pitch: 1.6, Rate: 0.7, Volume: 0.4, Hints: []string{"female", "whisper", "soft", "breathy"}},
}

// PresetFor returns a copy of the preset for m.
func PresetFor(m Mood) (Preset, bool) {
	p, ok := presets[m]
	p.Hints = slices.Clone(p.Hints)
	return p, ok
}

var (
	femaleNames = []string{"female", "woman", "samantha", "victoria", "karen", "zira", "susan"}
	maleNames   = []string{"male", "man", "david", "mark", "daniel", "james"}
)

// adjustForGender applies the persona gender shift and, when cursed, the
// extra cursed shift on top.
func adjustForGender(pitch, rate float64, gender string, cursed bool) (float64, float64) {
	switch gender {
	case "female":
		pitch = min(2.0, pitch*1.15)
		rate *= 0.95
	case "male":
		pitch = max(0.1, pitch*0.85)
		rate *= 0.92
	default:
		pitch *= 0.95
		rate *= 0.90
	}
	if cursed {
		pitch = max(0.1, pitch*0.85)
		rate *= 0.88
	}
	return pitch, rate
}
