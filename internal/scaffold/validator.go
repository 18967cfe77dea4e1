package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/playbox/internal/config"
	"github.com/dyluth/playbox/internal/program"
)

// CheckExisting returns an error if dir already holds a game or a config.
func CheckExisting(dir string) error {
	var existingFiles []string

	for _, name := range []string{program.CodeFile, config.DefaultPath} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			existingFiles = append(existingFiles, name)
		}
	}

	if len(existingFiles) > 0 {
		errMsg := "game already initialized\n\nFound existing"
		if len(existingFiles) == 1 {
			errMsg += fmt.Sprintf(": %s", existingFiles[0])
		} else {
			errMsg += " files:\n"
			for _, file := range existingFiles {
				errMsg += fmt.Sprintf("  - %s\n", file)
			}
		}
		errMsg += "\nUse 'playbox init --force' to reinitialize (this will overwrite them)"

		return fmt.Errorf("%s", errMsg)
	}

	return nil
}
