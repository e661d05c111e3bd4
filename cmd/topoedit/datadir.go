// ABOUTME: Resolves the directory holding the scene database for serve and scenes.
// ABOUTME: Order: --home flag, TOPOEDIT_HOME, XDG_DATA_HOME/topoedit, ~/.local/share/topoedit.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "topoedit"

// dataDir returns the scene data directory for the given --home flag value.
func dataDir(flag string) (string, error) {
	for _, dir := range []string{flag, os.Getenv("TOPOEDIT_HOME")} {
		if dir != "" {
			return dir, nil
		}
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDirName), nil
}
