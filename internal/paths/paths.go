// Package paths provides centralized path resolution for relaybot.
// This package has NO internal imports (only stdlib) to avoid import cycles.
// All functions return errors to allow callers to log appropriately.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigBaseName is the file name (without extension) searched for on startup.
const ConfigBaseName = "relaybot"

// ConfigExtensions lists supported config formats in lookup order.
var ConfigExtensions = []string{".json", ".toml", ".yaml", ".yml"}

// BaseDir returns the relaybot base directory (~/.relaybot).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".relaybot"), nil
}

// ConfigPath returns the active config file path.
// Priority: ./relaybot.<ext> (current dir) > ~/.relaybot/relaybot.<ext>
// Returns ("", nil) if no config exists - env-only setups are valid.
func ConfigPath() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return FindConfig(".")
	}
	return FindConfig(".", base)
}

// FindConfig returns the first relaybot.<ext> found in dirs, as an absolute path.
func FindConfig(dirs ...string) (string, error) {
	for _, dir := range dirs {
		for _, ext := range ConfigExtensions {
			candidate := filepath.Join(dir, ConfigBaseName+ext)
			info, err := os.Stat(candidate)
			if err != nil || info.IsDir() {
				continue
			}
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return "", fmt.Errorf("failed to get absolute path: %w", err)
			}
			return abs, nil
		}
	}
	return "", nil
}

// ExpandTilde expands a bare ~ or a leading ~/ to the user's home directory.
// Other paths, including ~user forms, are returned unchanged.
func ExpandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
