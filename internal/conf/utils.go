package conf

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in order of preference.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}

	if exePath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exePath))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "windows" {
			paths = append(paths, filepath.Join(homeDir, "AppData", "Roaming", "plantdoc"))
		} else {
			paths = append(paths, filepath.Join(homeDir, ".config", "plantdoc"))
		}
	}

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/plantdoc")
	}

	return paths
}
