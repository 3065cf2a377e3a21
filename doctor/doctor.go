package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"nexus/backend"
	"nexus/graph"
	"nexus/settings"
	"nexus/tts"
	"nexus/typing"
	"nexus/voice"
)

type Options struct {
	SampleRate   int
	EspeakPath   string
	SettingsPath string
	APIURL       string
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	saveTerminal()
	setupInterruptHandler()

	fmt.Println("nexus doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	g := graph.New(opts.SampleRate)
	dev, err := graph.Open(g)
	if dev != nil {
		defer dev.Close()
	}

	allPass := true
	if !checkOutput(g, err) {
		allPass = false
	}
	if allPass && !checkSpeech(g, opts.EspeakPath) {
		allPass = false
	}
	if !checkSettings(opts.SettingsPath) {
		allPass = false
	}
	if !checkBackend(opts.APIURL) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func confirm(question string) bool {
	resetTerminal()
	r := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/n]: ", question)
	answer, _ := r.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func checkOutput(g *graph.Graph, openErr error) bool {
	fmt.Println()
	fmt.Println("[1/4] Audio output")

	if openErr != nil {
		fmt.Printf("  FAIL: cannot open output device: %v\n", openErr)
		return false
	}

	fmt.Println("Listen for a creaking floorboard...")
	v := g.Play(graph.Direct, "doctor", typing.Creak(g.SampleRate(), 0.5).Streamer())
	select {
	case <-v.Done():
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: playback did not finish")
		return false
	}

	if !confirm("Did you hear it?") {
		fmt.Println("  FAIL: playback not confirmed")
		return false
	}
	fmt.Println("  PASS: output verified by user")
	return true
}

func checkSpeech(g *graph.Graph, bin string) bool {
	fmt.Println()
	fmt.Println("[2/4] Speech synthesis")

	sp := tts.New(bin, g)
	path, err := sp.Path()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  Using %s\n", path)

	voices := sp.Voices()
	english := 0
	for _, v := range voices {
		if v.English() {
			english++
		}
	}
	fmt.Printf("  %d voices, %d English\n", len(voices), english)
	if english == 0 {
		fmt.Println("  FAIL: no English voice installed")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err = sp.Speak(ctx, voice.Utterance{
		Text:   "The spirits hear you",
		Pitch:  0.6,
		Rate:   0.8,
		Volume: 0.8,
		Reverb: 0.3,
	})
	if err != nil {
		fmt.Printf("  FAIL: speech error: %v\n", err)
		return false
	}

	if !confirm("Did a voice say \"The spirits hear you\"?") {
		fmt.Println("  FAIL: speech not confirmed")
		return false
	}
	fmt.Println("  PASS: speech verified by user")
	return true
}

func checkSettings(path string) bool {
	fmt.Println()
	fmt.Println("[3/4] Settings")

	s, err := settings.Open(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  %s\n", s.Path())
	fmt.Printf("  master volume %s, ambient muted %t\n",
		settings.Master(s), settings.Bool(s, settings.KeyAmbientMuted, false))
	fmt.Println("  PASS: settings readable")
	return true
}

func checkBackend(url string) bool {
	fmt.Println()
	fmt.Println("[4/4] Backend")

	c := backend.New(url, backend.Options{Retries: -1, Timeout: 5 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health, err := c.Health(ctx)
	if err != nil {
		// Speech and ambience work without the backend.
		fmt.Printf("  WARN: %s unreachable: %v\n", c.BaseURL(), err)
		return true
	}
	fmt.Printf("  PASS: %s status=%v\n", c.BaseURL(), health["status"])
	return true
}
