package media

import (
	"fmt"

	"github.com/spf13/afero"
)

// isValidFile checks if a file exists and is not empty (0 bytes).
// Returns an error if the file cannot be accessed or is 0 bytes.
func isValidFile(fs afero.Fs, filePath string) error {
	info, err := fs.Stat(filePath)
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is 0 bytes (corrupted)")
	}
	return nil
}

// fileSize returns the size of a file, or 0 when it cannot be read.
func fileSize(fs afero.Fs, filePath string) int64 {
	info, err := fs.Stat(filePath)
	if err != nil {
		return 0
	}
	return info.Size()
}
