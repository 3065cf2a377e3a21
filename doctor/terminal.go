package doctor

import (
	"os"

	"golang.org/x/term"

	"nexus/shutdown"
)

// saved is the console mode at startup. Playback and speech backends may
// leave the terminal raw.
var saved *term.State

func saveTerminal() {
	if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
		saved = st
	}
}

func resetTerminal() {
	if saved != nil {
		term.Restore(int(os.Stdin.Fd()), saved)
	}
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		resetTerminal()
		println("\nInterrupted")
		os.Exit(1)
	}()
}
