package config

import (
	"os"
	"path/filepath"
)

// defaultSpoolDir mirrors mlrun's ~/.mlrun/spool default: a user-scoped
// directory the spool can write to without explicit configuration.
func defaultSpoolDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "qtrack", "spool")
	}
	return filepath.Join(home, ".qtrack", "spool")
}
