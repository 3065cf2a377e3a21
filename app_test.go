package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nexus/backend"
	"nexus/clock"
	"nexus/config"
	"nexus/log"
	"nexus/priority"
	"nexus/settings"
	"nexus/voice"
)

type fixture struct {
	a     *app
	sp    *voice.FakeSpeaker
	clk   *clock.Fake
	store *settings.MemStore
}

func testConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		APIURL:       apiURL,
		SettingsPath: filepath.Join(dir, "settings.json"),
		IntroPath:    filepath.Join(dir, "missing.flac"),
		SampleRate:   8000,
		Headless:     true,
	}
}

func newFixture(t *testing.T, apiURL string, block bool) *fixture {
	t.Helper()
	f := &fixture{sp: voice.NewFakeSpeaker(), clk: clock.NewFake(), store: settings.NewMemStore()}
	f.sp.Block = block
	a, err := newApp(testConfig(t, apiURL), appOptions{
		clock:    f.clk,
		speaker:  f.sp,
		store:    f.store,
		headless: true,
	})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	f.a = a
	t.Cleanup(a.close)
	return f
}

func waitStarted(t *testing.T, sp *voice.FakeSpeaker) voice.Utterance {
	t.Helper()
	select {
	case u := <-sp.Started():
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no utterance started")
		return voice.Utterance{}
	}
}

func TestSpeechDucksAmbience(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", true)
	a := f.a

	if got := a.status().Effective; got != 0.22 {
		t.Fatalf("idle effective volume = %v, want 0.22", got)
	}

	done := make(chan error, 1)
	go func() { done <- a.voice.Speak(context.Background(), "hello there", voice.Eerie) }()
	waitStarted(t, f.sp)

	st := a.status()
	if !st.Speaking || !st.Ambient.Speaking || st.Effective != 0 {
		t.Errorf("while speaking: %+v", st)
	}
	if st.Arbiter.Channel != priority.Voice {
		t.Errorf("holder = %s, want voice", st.Arbiter.Channel)
	}
	if _, ok := a.steps.PlaySequence(3); ok {
		t.Error("footsteps were granted over speech")
	}

	f.sp.Finish()
	if err := <-done; err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := a.status().Effective; got != 0 {
		t.Errorf("effective volume before resume delay = %v, want 0", got)
	}
	f.clk.Advance(time.Second)
	if got := a.status().Effective; got != 0.22 {
		t.Errorf("effective volume after resume = %v, want 0.22", got)
	}
}

func TestMasterLevelCycles(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", false)
	a := f.a

	if got := a.masterLevel(); got != settings.MasterMedium {
		t.Fatalf("default master = %s, want medium", got)
	}
	if got := a.voice.MasterVolume(); got < 0.719 || got > 0.721 {
		t.Errorf("voice master at medium = %v, want 0.72", got)
	}
	if got := a.cycleMaster(); got != settings.MasterHigh {
		t.Fatalf("after medium = %s, want high", got)
	}
	if got := a.cycleMaster(); got != settings.MasterOff {
		t.Fatalf("after high = %s, want off", got)
	}
	if v, _ := f.store.Get(settings.KeyMasterVolume); v != "off" {
		t.Errorf("persisted master = %q, want off", v)
	}
	if got := a.voice.MasterVolume(); got != 0 {
		t.Errorf("voice master at off = %v, want 0", got)
	}
	if a.intro.Playing() {
		t.Error("intro playing at master off")
	}

	a.cycleMaster()
	if got := a.voice.MasterVolume(); got < 0.359 || got > 0.361 {
		t.Errorf("voice master at low = %v, want 0.36", got)
	}
	if got := a.intro.Volume(); got < 0.0749 || got > 0.0751 {
		t.Errorf("music volume at low = %v, want 0.075", got)
	}
}

func TestToggleCursedGreets(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", false)
	a := f.a

	if !a.toggleCursed() {
		t.Fatal("toggleCursed = false, want true")
	}
	if !settings.Bool(f.store, settings.KeyCursedMode, false) {
		t.Error("cursed mode not persisted")
	}
	u := waitStarted(t, f.sp)
	if u.Text != "Welcome to Haunted Hell" {
		t.Errorf("mode greeting = %q", u.Text)
	}
	if !a.status().Cursed {
		t.Error("status does not report cursed")
	}
}

func TestChatSpeaksPersonaReply(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ghost-chat" {
			http.NotFound(w, r)
			return
		}
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		got = buf.String()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"reply":"Welcome, mortal","timestamp":"now"}}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, false)
	a := f.a
	p := a.cyclePersona()

	text, err := a.chat(context.Background(), "  who are you  ")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if text != "Welcome, mortal" || a.lastReply() != text {
		t.Errorf("reply = %q, last = %q", text, a.lastReply())
	}
	if !strings.Contains(got, `"persona_id":"`+p.ID+`"`) || !strings.Contains(got, `"message":"who are you"`) {
		t.Errorf("request body = %s", got)
	}

	spoken := f.sp.Spoken()
	if len(spoken) != 1 {
		t.Fatalf("spoke %d utterances, want 1", len(spoken))
	}
	want := p.VoiceSettings.Volume * settings.MasterMedium.VoiceVolume()
	if spoken[0].Volume != want {
		t.Errorf("volume = %v, want %v", spoken[0].Volume, want)
	}
	if p.Gender == "female" && spoken[0].Voice != "Samantha (female)" {
		t.Errorf("voice = %q for a female persona", spoken[0].Voice)
	}
}

func TestChatFallsBackWhenBackendFails(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"error":"the veil is closed"}`},
		{"no data", http.StatusOK, `{"reply":"unwrapped"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			f := newFixture(t, srv.URL, false)
			text, err := f.a.chat(context.Background(), "anyone there?")
			if err != nil {
				t.Fatalf("chat: %v", err)
			}
			if text != chatFallback {
				t.Errorf("reply = %q, want fallback", text)
			}
			if spoken := f.sp.Spoken(); len(spoken) != 1 || spoken[0].Text != chatFallback {
				t.Errorf("spoken = %+v", spoken)
			}
		})
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t, "http://127.0.0.1:1", false)
	_, err := f.a.chat(context.Background(), "   ")
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != backend.CodeValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(f.sp.Spoken()) != 0 {
		t.Error("spoke an empty message")
	}
}

func TestStatusString(t *testing.T) {
	s := status{
		Arbiter:   priority.State{Playing: true, Priority: 2, Channel: priority.Footsteps},
		Effective: 0,
		Intensity: "high",
		Scene:     "whispers",
		Master:    settings.MasterLow,
	}
	s.Ambient.Muted = true
	want := "channel=footsteps(p2) ambient=0.00 intensity=high muted scene=whispers master=low cursed=false"
	if got := s.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
}

func TestScriptMode(t *testing.T) {
	log.SetDir(t.TempDir())
	cfg := testConfig(t, "http://127.0.0.1:1")

	script := strings.Join([]string{
		"# ambience",
		"INTENSITY high",
		"MUTE",
		"STATE",
		"FOOTSTEPS 2",
		"FOOTSTEPS 2",
		"SPEAK hello there",
		"WAIT_SPEECH",
		"STATE",
		"FINISH",
		"TYPE 3",
		"BOGUS",
		"QUIT",
		"STATE",
	}, "\n")

	var out bytes.Buffer
	if code := runTestMode(cfg, strings.NewReader(script), &out); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	got := out.String()

	for _, want := range []string{
		"intensity=high muted",
		"footsteps denied",
		`speaking "hello there"`,
		"channel=voice(p1)",
		"typed 1",
		`error: unknown command "BOGUS"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Count(got, "channel=") != 2 {
		t.Errorf("commands after QUIT ran:\n%s", got)
	}

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	if !settings.Bool(store, settings.KeyAmbientMuted, false) {
		t.Error("mute not persisted")
	}
	if v := settings.String(store, settings.KeyAmbientIntensity, ""); v != "high" {
		t.Errorf("persisted intensity = %q, want high", v)
	}
}
