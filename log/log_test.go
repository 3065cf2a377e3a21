package log

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("NEXUS_LOG_PATH", "/tmp/nexus-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/nexus-env-log" {
		t.Errorf("got %q, want /tmp/nexus-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("NEXUS_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "nexus") {
		t.Errorf("default dir %q does not mention nexus", got)
	}
}

func TestDefaultDirXDGState(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG layout only")
	}
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	got, err := defaultDir()
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/state/nexus/logs" {
		t.Errorf("got %q, want /tmp/state/nexus/logs", got)
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "speech_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestSpokenText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SpokenText("I miss you")

	data, err := os.ReadFile(filepath.Join(tmp, "speech_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "I miss you") {
		t.Errorf("speech_log.txt missing text, got: %q", line)
	}
	if !strings.Contains(line, "\t") {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestEventsWritten(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	Grant("voice", "ambient", false)
	Deny("ambient", "voice")
	Expire("footsteps", 3*time.Second)
	Close()

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"grant", "deny", "grant_expired", "channel=footsteps"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("diagnostics log missing %q:\n%s", want, data)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	// Must not panic when logging was never initialised.
	Info("ignored")
	Grant("voice", "ambient", true)
	SpokenText("ignored")
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
