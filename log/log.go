package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog   zerolog.Logger
	diagFile  *os.File
	speechLog *os.File
	logMu     sync.Mutex
	logReady  bool
	pid       int
	dir       string
)

// RequestMetrics is the network timing of one backend call.
type RequestMetrics struct {
	DNSMs   float64
	TCPMs   float64
	TLSMs   float64
	TTFBMs  float64
	TotalMs float64
	Reused  bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: NEXUS_LOG_PATH environment variable
	if envPath := os.Getenv("NEXUS_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return defaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	speechLog, err = os.OpenFile(filepath.Join(dir, "speech_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05.000",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if speechLog != nil {
		speechLog.Close()
		speechLog = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Grant(channel, previous string, preempted bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("channel", channel).
		Str("previous", previous).
		Bool("preempted", preempted).
		Msg("grant")
}

func Deny(channel, holder string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("channel", channel).
		Str("holder", holder).
		Msg("deny")
}

func Release(channel string, pending int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("channel", channel).
		Int("pending", pending).
		Msg("release")
}

func Expire(channel string, held time.Duration) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Str("channel", channel).
		Dur("held", held).
		Msg("grant_expired")
}

func Ambient(reason string, target float64, ramp time.Duration) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Str("reason", reason).
		Float64("target", target).
		Dur("ramp", ramp).
		Msg("ambient")
}

func Scene(id string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("scene", id).Msg("scene")
}

// Utterance records the voice parameters after every adjustment.
func Utterance(mood, gender string, cursed bool, pitch, rate, volume float64, voice string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("mood", mood).
		Str("gender", gender).
		Bool("cursed", cursed).
		Float64("pitch", pitch).
		Float64("rate", rate).
		Float64("volume", volume).
		Str("voice", voice).
		Msg("utterance")
}

func Stinger(emotion string) {
	if !logReady {
		return
	}
	diagLog.Info().Str("emotion", emotion).Msg("stinger")
}

func Footsteps(steps int, interval time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("steps", steps).
		Dur("interval", interval).
		Msg("footsteps")
}

func APIRequest(method, path string, status int, attempt int, m RequestMetrics) {
	if !logReady {
		return
	}
	connStatus := "new"
	if m.Reused {
		connStatus = "reused"
	}
	diagLog.Info().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Int("attempt", attempt).
		Str("conn", connStatus).
		Float64("dns_ms", m.DNSMs).
		Float64("tcp_ms", m.TCPMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Msg("api_request")
}

// SpokenText appends a line to speech_log.txt.
func SpokenText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	speechLog.WriteString(line)
}

func SessionStart(output, speech string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("output", output).
		Str("speech", speech).
		Msg("session_start")
}

func SessionEnd(utterances int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("utterances", utterances).
		Msg("session_end")
}
