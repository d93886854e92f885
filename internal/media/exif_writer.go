package media

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/acm19/normalise/internal/logger"
	"github.com/barasher/go-exiftool"
)

const (
	// ExifPreservedFileName is the XMP field recording the name a file had before normalisation
	ExifPreservedFileName = "PreservedFileName"
)

// ExifWriter defines the interface for writing metadata into converted outputs
type ExifWriter interface {
	// WriteOriginalFileNameIfMissing records originalFileName in filePath unless
	// the field is already present. Videos are ignored.
	// Returns true if the field was written.
	WriteOriginalFileNameIfMissing(filePath string, originalFileName string) (bool, error)
}

// exifWriter implements the ExifWriter interface
type exifWriter struct {
	et         *exiftool.Exiftool
	binary     string
	extensions Extensions
}

// NewExifWriter creates a new ExifWriter instance
func NewExifWriter(et *exiftool.Exiftool) ExifWriter {
	return &exifWriter{
		et:         et,
		binary:     "exiftool",
		extensions: NewExtensions(),
	}
}

func (w *exifWriter) WriteOriginalFileNameIfMissing(filePath string, originalFileName string) (bool, error) {
	if w.et == nil {
		return false, fmt.Errorf("exiftool not initialised")
	}

	if !w.extensions.IsImage(filePath) {
		logger.Debug("Skipping metadata write for non-image file", "file", filepath.Base(filePath))
		return false, nil
	}

	fileInfos := w.et.ExtractMetadata(filePath)
	if len(fileInfos) > 0 && fileInfos[0].Err == nil {
		if _, err := fileInfos[0].GetString(ExifPreservedFileName); err == nil {
			logger.Debug("PreservedFileName already exists, skipping", "file", filepath.Base(filePath))
			return false, nil
		}
	}

	// -overwrite_original avoids the _original backup copy, -P keeps the mtime
	cmd := exec.Command(w.binary,
		"-XMP-xmpMM:"+ExifPreservedFileName+"="+originalFileName,
		"-overwrite_original",
		"-P",
		filePath)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return false, fmt.Errorf("failed to write %s: %w (output: %s)", ExifPreservedFileName, err, string(output))
	}

	logger.Debug("Wrote original file name", "file", filepath.Base(filePath), "original", originalFileName)
	return true, nil
}
