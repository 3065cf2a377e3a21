package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"nexus/ambient"
	"nexus/config"
	"nexus/log"
	"nexus/settings"
	"nexus/voice"
)

// runTestMode drives a headless session from a line script. Speech goes to
// a fake speaker that holds each utterance until FINISH.
func runTestMode(cfg config.Config, in io.Reader, out io.Writer) int {
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	sp := voice.NewFakeSpeaker()
	sp.Block = true
	a, err := newApp(cfg, appOptions{speaker: sp, headless: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	log.SessionStart(a.outputName(), "fake")

	s := &script{a: a, sp: sp, out: out}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		if strings.ToUpper(cmd) == "QUIT" {
			break
		}
		if err := s.exec(strings.ToUpper(cmd), strings.TrimSpace(arg)); err != nil {
			s.printf("error: %v\n", err)
			log.Warnf("script %q: %v", line, err)
		}
	}

	log.SessionEnd(a.voice.Utterances())
	a.close()
	return 0
}

type script struct {
	a   *app
	sp  *voice.FakeSpeaker
	mu  sync.Mutex
	out io.Writer
}

func (s *script) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *script) speak(f func(ctx context.Context) error) {
	s.a.runBackground(func() {
		err := f(context.Background())
		switch {
		case err == nil:
		case errors.Is(err, voice.ErrInterrupted):
			s.printf("speech interrupted\n")
		default:
			s.printf("speech: %v\n", err)
		}
	})
}

func (s *script) exec(cmd, arg string) error {
	a := s.a
	switch cmd {
	case "PAGE":
		path, reload, _ := strings.Cut(arg, " ")
		a.switchPage(path, strings.EqualFold(reload, "reload"))
	case "SCENE":
		id, err := ambient.ParseScene(arg)
		if err != nil {
			return err
		}
		return a.amb.PlayScene(id)
	case "SPEAK":
		text := arg
		s.speak(func(ctx context.Context) error {
			return a.voice.Speak(ctx, text, a.voice.DetectMood(text))
		})
	case "EMOTE":
		text := arg
		s.speak(func(ctx context.Context) error {
			return a.voice.SpeakWithEmotion(ctx, text, voice.Settings{}, false)
		})
	case "WAIT_SPEECH":
		select {
		case u := <-s.sp.Started():
			s.printf("speaking %q\n", u.Text)
		case <-time.After(5 * time.Second):
			return errors.New("no utterance started")
		}
	case "FINISH":
		s.sp.Finish()
	case "STOP":
		a.voice.Stop()
	case "STINGER":
		a.voice.PlayStinger(voice.Emotion(arg), 1500*time.Millisecond)
	case "FOOTSTEPS":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("footsteps: %w", err)
		}
		if d, ok := a.steps.PlaySequence(n); ok {
			s.printf("footsteps %dms\n", d.Milliseconds())
		} else {
			s.printf("footsteps denied\n")
		}
	case "MUTE":
		a.amb.ToggleMute()
	case "INTENSITY":
		return a.amb.SetIntensity(ambient.Intensity(arg))
	case "MASTER":
		l, err := settings.ParseMasterLevel(arg)
		if err != nil {
			return err
		}
		a.applyMaster(l, true)
	case "CURSED":
		a.toggleCursed()
	case "TYPE":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("type: %w", err)
		}
		played := 0
		for range n {
			if a.keys.PlayTypingSound() {
				played++
			}
		}
		s.printf("typed %d\n", played)
	case "SLEEP":
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
	case "STATE":
		s.printf("%s\n", a.status())
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
