// Package tts speaks through the espeak-ng binary, rendering each utterance
// to WAV and playing it on the graph's direct bus.
package tts

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/wav"

	"nexus/graph"
	"nexus/log"
	"nexus/synth"
	"nexus/voice"
)

const (
	DefaultBinary = "espeak-ng"
	speechTag     = "speech"

	basePitch = 50
	baseSpeed = 175
)

var ErrNotInstalled = errors.New("espeak-ng not found")

type variant struct {
	suffix string
	label  string
}

var variants = []variant{{"+m3", "male"}, {"+f3", "female"}}

// Espeak implements voice.Speaker.
type Espeak struct {
	bin string
	g   *graph.Graph

	voicesOnce sync.Once
	voices     []voice.VoiceInfo
	ids        map[string]string

	mu  sync.Mutex
	cur *graph.Voice
}

func New(bin string, g *graph.Graph) *Espeak {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Espeak{bin: bin, g: g}
}

// Path resolves the binary on PATH.
func (e *Espeak) Path() (string, error) {
	p, err := exec.LookPath(e.bin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return p, nil
}

func (e *Espeak) Available() bool {
	if e.g == nil {
		return false
	}
	_, err := e.Path()
	return err == nil
}

// Voices lists every installed voice, with a male and a female variant
// per English voice.
func (e *Espeak) Voices() []voice.VoiceInfo {
	e.voicesOnce.Do(func() {
		out, err := exec.Command(e.bin, "--voices").Output()
		if err != nil {
			log.Warnf("espeak-ng voices: %v", err)
			return
		}
		e.voices, e.ids = parseVoices(bytes.NewReader(out))
	})
	return e.voices
}

// parseVoices reads the table printed by `espeak-ng --voices`.
func parseVoices(r io.Reader) ([]voice.VoiceInfo, map[string]string) {
	var infos []voice.VoiceInfo
	ids := make(map[string]string)
	sc := bufio.NewScanner(r)
	header := true
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) < 5 {
			continue
		}
		lang, name, file := f[1], f[3], f[4]
		add := func(n, id string) {
			if _, dup := ids[n]; dup {
				return
			}
			ids[n] = id
			infos = append(infos, voice.VoiceInfo{Name: n, Lang: lang})
		}
		if strings.HasPrefix(lang, "en") {
			for _, v := range variants {
				add(fmt.Sprintf("%s (%s)", name, v.label), file+v.suffix)
			}
			continue
		}
		add(name, file)
	}
	return infos, ids
}

// args maps an utterance onto espeak-ng flags. Pitch and rate multiply the
// espeak defaults of 50 and 175 wpm.
func args(u voice.Utterance, id string) []string {
	pitch := u.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	a := []string{
		"--stdout",
		"-p", strconv.Itoa(max(0, min(99, int(basePitch*pitch)))),
		"-s", strconv.Itoa(max(80, min(450, int(baseSpeed*rate)))),
	}
	if id != "" {
		a = append(a, "-v", id)
	}
	return append(a, "--stdin")
}

func (e *Espeak) Speak(ctx context.Context, u voice.Utterance) error {
	if e.g == nil {
		return graph.ErrNoDevice
	}
	e.Voices()
	cmd := exec.CommandContext(ctx, e.bin, args(u, e.ids[u.Voice])...)
	cmd.Stdin = strings.NewReader(u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("espeak-ng: %w: %s", err, msg)
		}
		return fmt.Errorf("espeak-ng: %w", err)
	}

	buf, err := e.decode(out)
	if err != nil {
		return err
	}
	if u.Reverb > 0 {
		imp := synth.NewImpulse(e.g.SampleRate(), 1.8, 2000, rand.New(rand.NewPCG(uint64(len(buf)), 1)))
		buf = buf.Reverb(imp, u.Reverb)
	}
	vol := max(u.Volume, 0)

	v := e.g.Play(graph.Direct, speechTag, &effects.Gain{Streamer: buf.Streamer(), Gain: vol - 1})
	e.mu.Lock()
	e.cur = v
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		if e.cur == v {
			e.cur = nil
		}
		e.mu.Unlock()
	}()

	select {
	case <-v.Done():
		return nil
	case <-ctx.Done():
		v.Stop()
		return ctx.Err()
	}
}

// decode reads espeak's WAV and resamples it to the graph rate.
func (e *Espeak) decode(data []byte) (synth.Buffer, error) {
	s, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode speech: %w", err)
	}
	defer s.Close()

	var src beep.Streamer = s
	if rate := beep.SampleRate(e.g.SampleRate()); format.SampleRate != rate {
		src = beep.Resample(4, format.SampleRate, rate, s)
	}
	var out synth.Buffer
	chunk := make([][2]float64, 4096)
	for {
		n, ok := src.Stream(chunk)
		out = append(out, chunk[:n]...)
		if !ok {
			break
		}
	}
	return out, nil
}

func (e *Espeak) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur != nil {
		e.cur.Pause()
	}
}

func (e *Espeak) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cur != nil {
		e.cur.Resume()
	}
}
