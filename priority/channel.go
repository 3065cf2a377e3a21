package priority

import "strings"

// Channel is a category of sound competing for exclusive output.
type Channel string

const (
	Voice     Channel = "voice"
	Footsteps Channel = "footsteps"
	ScareCue  Channel = "scare_cue"
	Ambient   Channel = "ambient"
)

// Priority returns the fixed rank of c; lower is more urgent.
func (c Channel) Priority() int {
	switch c {
	case Voice:
		return 1
	case Footsteps:
		return 2
	case ScareCue:
		return 3
	default:
		return 4
	}
}

func (c Channel) String() string { return string(c) }

// Parse maps a channel name or alias to a Channel. Unknown names degrade to
// Ambient.
func Parse(name string) Channel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "voice", "tts", "speech", "ai_voice":
		return Voice
	case "footsteps":
		return Footsteps
	case "scare_cue", "scare":
		return ScareCue
	default:
		return Ambient
	}
}
