package imagecodec

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func TestApplyOrientation(t *testing.T) {
	// 2x1 source: red on the left, blue on the right
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, blue)

	tests := []struct {
		orientation int
		size        image.Point
		pixels      map[image.Point]color.RGBA
	}{
		{1, image.Pt(2, 1), map[image.Point]color.RGBA{image.Pt(0, 0): red, image.Pt(1, 0): blue}},
		{2, image.Pt(2, 1), map[image.Point]color.RGBA{image.Pt(0, 0): blue, image.Pt(1, 0): red}},
		{3, image.Pt(2, 1), map[image.Point]color.RGBA{image.Pt(0, 0): blue, image.Pt(1, 0): red}},
		{6, image.Pt(1, 2), map[image.Point]color.RGBA{image.Pt(0, 0): red, image.Pt(0, 1): blue}},
		{8, image.Pt(1, 2), map[image.Point]color.RGBA{image.Pt(0, 0): blue, image.Pt(0, 1): red}},
	}

	for _, tt := range tests {
		got := applyOrientation(src, tt.orientation)
		if got.Bounds().Size() != tt.size {
			t.Errorf("Orientation %d: expected size %v, got %v", tt.orientation, tt.size, got.Bounds().Size())
			continue
		}
		for p, want := range tt.pixels {
			r, g, b, a := got.At(p.X, p.Y).RGBA()
			if uint8(r>>8) != want.R || uint8(g>>8) != want.G || uint8(b>>8) != want.B || uint8(a>>8) != want.A {
				t.Errorf("Orientation %d: expected %v at %v, got %v", tt.orientation, want, p, got.At(p.X, p.Y))
			}
		}
	}
}

func TestSwapsAxes(t *testing.T) {
	for o := 1; o <= 8; o++ {
		expected := o >= 5
		if got := swapsAxes(o); got != expected {
			t.Errorf("Orientation %d: expected swap %v, got %v", o, expected, got)
		}
	}
}

func TestReadOrientation_NoExif(t *testing.T) {
	o, err := readOrientation(bytes.NewReader([]byte("no exif here")))
	if err == nil {
		t.Error("Expected error without EXIF data, got nil")
	}
	if o != 1 {
		t.Errorf("Expected default orientation 1, got %d", o)
	}
}
