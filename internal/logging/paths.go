package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.docindex/logs, or a temp-dir fallback when
// the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docindex", "logs")
	}
	return filepath.Join(home, ".docindex", "logs")
}

// DefaultLogPath returns the log file shared by all commands.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "docindex.log")
}
