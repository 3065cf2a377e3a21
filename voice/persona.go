package voice

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed personas.yaml
var defaultPersonas []byte

type VoiceSettings struct {
	Pitch  float64 `yaml:"pitch" json:"pitch"`
	Rate   float64 `yaml:"rate" json:"rate"`
	Volume float64 `yaml:"volume" json:"volume"`
	Reverb float64 `yaml:"reverb" json:"reverb"`
	Preset Mood    `yaml:"preset" json:"preset"`
}

// Persona is a ghost character with its own voice.
type Persona struct {
	ID            string        `yaml:"id" json:"id"`
	Name          string        `yaml:"name" json:"name"`
	Era           string        `yaml:"era" json:"era"`
	Traits        []string      `yaml:"traits" json:"traits"`
	Tone          string        `yaml:"tone" json:"tone"`
	Gender        string        `yaml:"gender" json:"gender"`
	VoiceSettings VoiceSettings `yaml:"voice_settings" json:"voice_settings"`
}

var personaTable = sync.OnceValue(func() []Persona {
	var ps []Persona
	if err := yaml.Unmarshal(defaultPersonas, &ps); err != nil {
		panic(fmt.Sprintf("embedded personas: %v", err))
	}
	return ps
})

// Personas returns the built-in personas in display order.
func Personas() []Persona {
	src := personaTable()
	out := make([]Persona, len(src))
	copy(out, src)
	return out
}

func PersonaByID(id string) (Persona, bool) {
	for _, p := range personaTable() {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}

// PersonaSettings turns a persona into speech settings.
func PersonaSettings(p Persona) Settings {
	return Settings{
		Pitch:  p.VoiceSettings.Pitch,
		Rate:   p.VoiceSettings.Rate,
		Volume: p.VoiceSettings.Volume,
		Reverb: p.VoiceSettings.Reverb,
		Preset: p.VoiceSettings.Preset,
		Gender: p.Gender,
	}
}
