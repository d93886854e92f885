//go:build !linux

package media

import (
	"errors"
	"io/fs"
	"os"
)

// renameNoReplace links dst to src, which fails if dst exists, then drops src.
func renameNoReplace(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return errNoReplaceUnsupported
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
