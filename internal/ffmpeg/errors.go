package ffmpeg

import (
	"errors"
	"regexp"
	"strings"
)

// Classified ffmpeg failures, matched against stderr.
var (
	ErrNoVideoStream  = errors.New("input has no video stream")
	ErrInvalidInput   = errors.New("input is not a readable media file")
	ErrEncoderMissing = errors.New("required encoder is not available")
	ErrDiskFull       = errors.New("no space left on device")
)

var (
	reNoVideoStream = regexp.MustCompile(
		`(?i)Stream map '0:v:0' matches no streams|does not contain any stream|Output file #0 does not contain any stream`)

	reInvalidInput = regexp.MustCompile(
		`(?i)Invalid data found when processing input|moov atom not found|could not find codec parameters|End of file`)

	reEncoderMissing = regexp.MustCompile(
		`(?i)Unknown encoder|Encoder \S+ not found|Unrecognized option 'crf'`)

	reDiskFull = regexp.MustCompile(`(?i)No space left on device`)
)

// classify maps stderr to one of the package errors, or nil when nothing matches.
func classify(stderr string) error {
	switch {
	case reNoVideoStream.MatchString(stderr):
		return ErrNoVideoStream
	case reEncoderMissing.MatchString(stderr):
		return ErrEncoderMissing
	case reDiskFull.MatchString(stderr):
		return ErrDiskFull
	case reInvalidInput.MatchString(stderr):
		return ErrInvalidInput
	default:
		return nil
	}
}

// tail returns the last n non-empty lines of stderr for error messages.
func tail(stderr string, n int) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, " | ")
}
