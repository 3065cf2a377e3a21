package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/term"

	"nexus/config"
	"nexus/doctor"
	"nexus/log"
	"nexus/shutdown"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load("nexus", args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if cfg.Version {
		fmt.Printf("nexus %s\n", version)
		return 0
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if cfg.Doctor {
		return doctor.Run(doctor.Options{
			SampleRate:   cfg.SampleRate,
			EspeakPath:   cfg.EspeakPath,
			SettingsPath: cfg.SettingsPath,
			APIURL:       cfg.APIURL,
		})
	}

	if cfg.Test {
		return runTestMode(cfg, os.Stdin, os.Stdout)
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	a, err := newApp(cfg, appOptions{})
	if err != nil {
		log.Errorf("startup: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Close()
		return 1
	}
	log.SessionStart(a.outputName(), a.speechName())

	if !a.voice.Available() {
		fmt.Fprintln(os.Stderr, "Warning: espeak-ng not found, the spirits will be silent (run -doctor)")
	}
	a.switchPage("/", false)
	a.steps.Start()

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if !interactive {
		fmt.Printf("nexus %s haunting %s (ctrl+c to leave)\n", version, a.outputName())
		<-ctx.Done()
		gracefulShutdown(a)
		return 0
	}

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(a)
	tuiMu.Unlock()

	go func() {
		<-ctx.Done()
		tuiProgram.Quit()
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		gracefulShutdown(a)
		return 1
	}
	gracefulShutdown(a)
	return 0
}

// initCrashLog sends runtime crash output to the log directory.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

var shutdownOnce sync.Once

func gracefulShutdown(a *app) {
	shutdownOnce.Do(func() {
		log.SessionEnd(a.voice.Utterances())
		a.close()
		log.Close()
	})
}
