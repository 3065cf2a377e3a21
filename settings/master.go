package settings

import "fmt"

// MasterLevel is the global loudness tier applied to speech and music.
type MasterLevel string

const (
	MasterLow    MasterLevel = "low"
	MasterMedium MasterLevel = "medium"
	MasterHigh   MasterLevel = "high"
	MasterOff    MasterLevel = "off"
)

var masterOrder = []MasterLevel{MasterLow, MasterMedium, MasterHigh, MasterOff}

func ParseMasterLevel(s string) (MasterLevel, error) {
	for _, l := range masterOrder {
		if string(l) == s {
			return l, nil
		}
	}
	return MasterMedium, fmt.Errorf("unknown master level %q", s)
}

func (l MasterLevel) Multiplier() float64 {
	switch l {
	case MasterLow:
		return 0.3
	case MasterMedium:
		return 0.6
	case MasterHigh:
		return 1.0
	}
	return 0
}

// VoiceVolume is the speech master, boosted 20% and capped at 1.
func (l MasterLevel) VoiceVolume() float64 {
	return min(l.Multiplier()*1.2, 1)
}

func (l MasterLevel) MusicVolume() float64 {
	return l.Multiplier() * 0.25
}

// Next cycles low, medium, high, off.
func (l MasterLevel) Next() MasterLevel {
	for i, m := range masterOrder {
		if m == l {
			return masterOrder[(i+1)%len(masterOrder)]
		}
	}
	return MasterLow
}

// Master reads the persisted level, defaulting to medium.
func Master(s Store) MasterLevel {
	l, err := ParseMasterLevel(String(s, KeyMasterVolume, string(MasterMedium)))
	if err != nil {
		return MasterMedium
	}
	return l
}
