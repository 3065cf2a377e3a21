package voice

import (
	"regexp"
	"strings"
)

type Emotion string

const (
	Crying     Emotion = "crying"
	Laughing   Emotion = "laughing"
	Growling   Emotion = "growling"
	Screaming  Emotion = "screaming"
	Distorted  Emotion = "distorted"
	Whispering Emotion = "whisper"
	Singing    Emotion = "singing"
)

var emotionMarkers = []struct {
	emotion Emotion
	re      *regexp.Regexp
}{
	{Crying, regexp.MustCompile(`(?i)\*cry(ing)?\*|\*sob(bing)?\*|\*weep(ing)?\*|\*tears?\*`)},
	{Laughing, regexp.MustCompile(`(?i)\*laugh(ing)?\*|\*giggl(e|ing)\*|\*chuckl(e|ing)\*|\*cackl(e|ing)\*`)},
	{Growling, regexp.MustCompile(`(?i)\*growl(ing)?\*|\*snarl(ing)?\*|\*hiss(ing)?\*`)},
	{Screaming, regexp.MustCompile(`(?i)\*scream(ing)?\*|\*shriek(ing)?\*|\*wail(ing)?\*`)},
	{Distorted, regexp.MustCompile(`(?i)\*distorted\s+\w+\*|\*corrupted\*|\*glitch(ed|ing)?\*`)},
	{Whispering, regexp.MustCompile(`(?i)\*whisper(ing|s)?\*|\*murmur(ing|s)?\*`)},
	{Singing, regexp.MustCompile(`(?i)\*sing(ing|s)?\*|\*hum(ming|s)?\*|\*chant(ing|s)?\*|\*hymn\*`)},
}

var markerRE = regexp.MustCompile(`\*[^*]+\*`)

// DetectEmotions lists each emotion whose *marker* appears in text, once,
// in a fixed order.
func DetectEmotions(text string) []Emotion {
	var out []Emotion
	for _, m := range emotionMarkers {
		if m.re.MatchString(text) {
			out = append(out, m.emotion)
		}
	}
	return out
}

// StripMarkers removes every *...* span and trims the result.
func StripMarkers(text string) string {
	return strings.TrimSpace(markerRE.ReplaceAllString(text, ""))
}
