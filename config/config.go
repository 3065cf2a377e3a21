// Package config resolves runtime settings from the environment and the
// command line. Flags win over environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"nexus/backend"
	"nexus/intro"
	"nexus/settings"
)

const DefaultSampleRate = 44100

type Config struct {
	APIURL       string
	LogPath      string
	SettingsPath string
	IntroPath    string
	MoodsPath    string
	EspeakPath   string
	RecordPath   string
	GrantTimeout time.Duration
	MaxChains    int
	SampleRate   int

	Headless bool
	Test     bool
	Doctor   bool
	Version  bool
}

// Getenv is swapped in tests.
var Getenv = os.Getenv

func envString(key, def string) string {
	if v := strings.TrimSpace(Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envMillis(key string, def time.Duration) (time.Duration, error) {
	n, err := envInt(key, -1)
	if err != nil || n < 0 {
		return def, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

// Defaults reads the environment only.
func Defaults() (Config, error) {
	c := Config{
		APIURL:     envString("NEXUS_API_URL", backend.DefaultBaseURL),
		LogPath:    envString("NEXUS_LOG_PATH", ""),
		IntroPath:  envString("NEXUS_INTRO", intro.DefaultPath),
		EspeakPath: envString("NEXUS_ESPEAK", ""),
		RecordPath: envString("NEXUS_RECORD", ""),
	}
	c.SettingsPath = envString("NEXUS_SETTINGS", "")
	if c.SettingsPath == "" {
		if p, err := settings.DefaultPath(); err == nil {
			c.SettingsPath = p
		}
	}

	var errs []error
	var err error
	c.GrantTimeout, err = envMillis("NEXUS_GRANT_TIMEOUT_MS", 0)
	errs = append(errs, err)
	c.MaxChains, err = envInt("NEXUS_MAX_CHAINS", 0)
	errs = append(errs, err)
	c.SampleRate, err = envInt("NEXUS_SAMPLE_RATE", DefaultSampleRate)
	errs = append(errs, err)
	return c, errors.Join(errs...)
}

// Load layers flags from args over the environment.
func Load(name string, args []string, errOut io.Writer) (Config, error) {
	c, envErr := Defaults()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&c.LogPath, "logpath", c.LogPath, "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&c.APIURL, "api", c.APIURL, "backend base URL")
	fs.StringVar(&c.SettingsPath, "settings", c.SettingsPath, "settings file")
	fs.StringVar(&c.IntroPath, "intro", c.IntroPath, "intro music (FLAC)")
	fs.StringVar(&c.MoodsPath, "moods", c.MoodsPath, "mood table override (YAML)")
	fs.StringVar(&c.EspeakPath, "espeak", c.EspeakPath, "espeak-ng binary")
	fs.StringVar(&c.RecordPath, "record", c.RecordPath, "write the rendered mix to this FLAC file")
	fs.DurationVar(&c.GrantTimeout, "grant-timeout", c.GrantTimeout, "release a channel held longer than this (0 = never)")
	fs.IntVar(&c.MaxChains, "max-chains", c.MaxChains, "concurrent ambient sound chains (0 = default)")
	fs.IntVar(&c.SampleRate, "rate", c.SampleRate, "output sample rate")
	fs.BoolVar(&c.Headless, "headless", false, "render audio without an output device")
	fs.BoolVar(&c.Test, "test", false, "Test mode (headless, stdin-driven)")
	fs.BoolVar(&c.Doctor, "doctor", false, "Run system diagnostics and exit")
	fs.BoolVar(&c.Version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	if envErr != nil {
		return c, envErr
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 192000:
		return fmt.Errorf("sample rate %d out of range", c.SampleRate)
	case c.GrantTimeout < 0:
		return fmt.Errorf("grant timeout %v is negative", c.GrantTimeout)
	case c.MaxChains < 0:
		return fmt.Errorf("max chains %d is negative", c.MaxChains)
	}
	return nil
}
