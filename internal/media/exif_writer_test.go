package media

import (
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/barasher/go-exiftool"
)

// createTestExiftool creates an exiftool instance for testing and ensures cleanup
func createTestExiftool(t *testing.T) *exiftool.Exiftool {
	t.Helper()
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}
	et, err := exiftool.NewExiftool()
	if err != nil {
		t.Fatalf("Failed to create exiftool: %v", err)
	}
	t.Cleanup(func() { et.Close() })
	return et
}

// createValidPNG writes a small real PNG.
func createValidPNG(t *testing.T, dir, filename string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create %s: %v", filename, err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return path
}

func TestExifWriter_WriteOriginalFileNameIfMissing_FirstTime(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := createValidPNG(t, tmpDir, "1.png")

	writer := NewExifWriter(createTestExiftool(t))
	written, err := writer.WriteOriginalFileNameIfMissing(testFile, "holiday.jpg")

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if !written {
		t.Error("Expected field to be written on first call")
	}
}

func TestExifWriter_WriteOriginalFileNameIfMissing_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := createValidPNG(t, tmpDir, "1.png")
	et := createTestExiftool(t)
	writer := NewExifWriter(et)

	// First write
	written1, err := writer.WriteOriginalFileNameIfMissing(testFile, "first.jpg")
	if err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if !written1 {
		t.Error("Expected field to be written on first call")
	}

	// Second write (should skip)
	written2, err := writer.WriteOriginalFileNameIfMissing(testFile, "second.jpg")
	if err != nil {
		t.Errorf("Second write failed: %v", err)
	}
	if written2 {
		t.Error("Expected field to not be written on second call (already exists)")
	}

	infos := et.ExtractMetadata(testFile)
	if len(infos) == 0 || infos[0].Err != nil {
		t.Fatalf("Failed to read metadata back")
	}
	if got, err := infos[0].GetString(ExifPreservedFileName); err != nil || got != "first.jpg" {
		t.Errorf("Expected first name to be preserved, got %q (%v)", got, err)
	}
}

func TestExifWriter_WriteOriginalFileNameIfMissing_SkipsVideos(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "1.mp4")
	if err := os.WriteFile(testFile, []byte("not really a video"), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	writer := NewExifWriter(createTestExiftool(t))
	written, err := writer.WriteOriginalFileNameIfMissing(testFile, "clip.mov")
	if err != nil {
		t.Errorf("Expected no error for video, got: %v", err)
	}
	if written {
		t.Error("Expected video to be skipped")
	}
}

func TestExifWriter_NotInitialised(t *testing.T) {
	writer := NewExifWriter(nil)
	if _, err := writer.WriteOriginalFileNameIfMissing("/tmp/1.png", "a.jpg"); err == nil {
		t.Error("Expected error without exiftool, got nil")
	}
}
