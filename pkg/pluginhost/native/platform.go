package native

import (
	"os"
	"path/filepath"
)

// osExecutableDir returns the directory containing the running host
// binary, the default native-plugin search path (spec.md §4.3.5, §6.5).
func osExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}
