package ffmpeg

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		expected error
	}{
		{"no video", "Stream map '0:v:0' matches no streams.", ErrNoVideoStream},
		{"broken container", "[mov,mp4 @ 0x1] moov atom not found\nin.mp4: Invalid data found when processing input", ErrInvalidInput},
		{"missing encoder", "Unknown encoder 'libx264'", ErrEncoderMissing},
		{"disk full", "av_interleaved_write_frame(): No space left on device", ErrDiskFull},
		{"unknown", "something else went wrong", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.stderr)
			if !errors.Is(got, tt.expected) || (tt.expected == nil && got != nil) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTail(t *testing.T) {
	stderr := "line one\n\nline two\nline three\n\nline four\n"

	if got := tail(stderr, 2); got != "line three | line four" {
		t.Errorf("Expected last two lines, got %q", got)
	}
	if got := tail(stderr, 10); got != "line one | line two | line three | line four" {
		t.Errorf("Expected all non-empty lines, got %q", got)
	}
	if got := tail("", 3); got != "" {
		t.Errorf("Expected empty tail, got %q", got)
	}
}
