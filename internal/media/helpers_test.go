package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

// Helper functions

func createFile(t *testing.T, fs afero.Fs, dir, filename, content string) string {
	t.Helper()
	if err := fs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory %s: %v", dir, err)
	}
	filePath := filepath.Join(dir, filename)
	if err := afero.WriteFile(fs, filePath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create file %s: %v", filename, err)
	}
	return filePath
}

func assertFileExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if _, err := fs.Stat(path); err != nil {
		t.Errorf("Expected file to exist at %s", path)
	}
}

func assertFileNotExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if _, err := fs.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected file to not exist at %s", path)
	}
}

func assertFileContent(t *testing.T, fs afero.Fs, path, expected string) {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Errorf("Expected to read %s, got: %v", path, err)
		return
	}
	if string(data) != expected {
		t.Errorf("Expected %s to contain %q, got %q", filepath.Base(path), expected, string(data))
	}
}

// listNames returns the sorted visible file names in dir.
func listNames(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatalf("Failed to read directory %s: %v", dir, err)
	}
	var names []string
	for _, info := range infos {
		if !info.IsDir() {
			names = append(names, info.Name())
		}
	}
	return names
}

// Fake collaborators. Media files are text: "<w>x<h>" for one frame or
// "<w>x<h>,<w>x<h>,..." for animations. A leading "!" makes decoding or
// transcoding fail while the probe still succeeds.

func parseFakeSizes(data []byte) ([]image.Point, bool, error) {
	content := strings.TrimSpace(string(data))
	broken := strings.HasPrefix(content, "!")
	content = strings.TrimPrefix(content, "!")

	var sizes []image.Point
	for _, part := range strings.Split(content, ",") {
		var w, h int
		if _, err := fmt.Sscanf(part, "%dx%d", &w, &h); err != nil {
			return nil, false, fmt.Errorf("not a media file: %q", content)
		}
		sizes = append(sizes, image.Pt(w, h))
	}
	return sizes, broken, nil
}

// fakeImageCodec implements ImageCodec over the fake text format.
type fakeImageCodec struct {
	fs afero.Fs

	mu      sync.Mutex
	encoded []string
}

func (c *fakeImageCodec) ProbeDimensions(path string) (int, int, int, error) {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return 0, 0, 0, err
	}
	sizes, _, err := parseFakeSizes(data)
	if err != nil {
		return 0, 0, 0, err
	}
	w, h := MinFrameBox(sizes)
	return w, h, len(sizes), nil
}

func (c *fakeImageCodec) DecodeFrames(path string) ([]Frame, int, error) {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, 0, err
	}
	sizes, broken, err := parseFakeSizes(data)
	if err != nil {
		return nil, 0, err
	}
	if broken {
		return nil, 0, errors.New("truncated image data")
	}
	frames := make([]Frame, len(sizes))
	for i, s := range sizes {
		frames[i] = Frame{Image: image.NewRGBA(image.Rect(0, 0, s.X, s.Y)), DurationMs: 100}
	}
	return frames, 0, nil
}

func (c *fakeImageCodec) Resize(img image.Image, width, height int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func (c *fakeImageCodec) EncodeStatic(img image.Image, path string) error {
	b := img.Bounds()
	c.record(path)
	return afero.WriteFile(c.fs, path, []byte(fmt.Sprintf("png %dx%d", b.Dx(), b.Dy())), 0644)
}

func (c *fakeImageCodec) EncodeAnimated(frames []image.Image, durationsMs []int, loopCount int, path string) error {
	b := frames[0].Bounds()
	c.record(path)
	return afero.WriteFile(c.fs, path, []byte(fmt.Sprintf("gif %dx%d frames=%d", b.Dx(), b.Dy(), len(frames))), 0644)
}

func (c *fakeImageCodec) record(path string) {
	c.mu.Lock()
	c.encoded = append(c.encoded, path)
	c.mu.Unlock()
}

func (c *fakeImageCodec) encodeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoded)
}

// fakeTranscoder implements VideoTranscoder over the fake text format.
// When block is set, Transcode waits for it to close or for ctx to end.
type fakeTranscoder struct {
	fs    afero.Fs
	block chan struct{}
}

func (f *fakeTranscoder) Probe(ctx context.Context, path string) (VideoInfo, error) {
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return VideoInfo{}, err
	}
	sizes, _, err := parseFakeSizes(data)
	if err != nil {
		return VideoInfo{}, err
	}
	return VideoInfo{DurationSeconds: 10, Width: sizes[0].X, Height: sizes[0].Y, HasVideoStream: true}, nil
}

func (f *fakeTranscoder) Transcode(ctx context.Context, path string, width, height int, outputPath string, progress func(float64)) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return err
	}
	if strings.HasPrefix(string(data), "!") {
		return errors.New("moov atom not found")
	}
	if progress != nil {
		progress(0.5)
		progress(1)
	}
	return afero.WriteFile(f.fs, outputPath, []byte(fmt.Sprintf("mp4 %dx%d", width, height)), 0644)
}
