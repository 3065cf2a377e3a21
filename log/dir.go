package log

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "nexus"

// defaultDir follows each platform's convention for per-user log files:
// ~/Library/Logs on macOS, %LOCALAPPDATA% on Windows and the XDG state
// directory elsewhere.
func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", appName), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, appName, "logs"), nil
	}
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, appName, "logs"), nil
}
