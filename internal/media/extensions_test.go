package media

import "testing"

func TestExtensions_Classify(t *testing.T) {
	ext := NewExtensions()

	tests := []struct {
		path     string
		expected MediaKind
	}{
		{"photo.jpg", StaticImage},
		{"photo.JPG", StaticImage},
		{"photo.jpeg", StaticImage},
		{"scan.tiff", StaticImage},
		{"scan.tif", StaticImage},
		{"image.webp", StaticImage},
		{"image.bmp", StaticImage},
		{"1.png", StaticImage},
		{"loop.gif", AnimatedImage},
		{"loop.GIF", AnimatedImage},
		{"clip.mp4", Video},
		{"clip.MOV", Video},
		{"clip.mkv", Video},
		{"clip.webm", Video},
		{"clip.ts", Video},
		{"notes.txt", Unsupported},
		{"README", Unsupported},
		{"archive.tar.gz", Unsupported},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ext.Classify(tt.path); got != tt.expected {
				t.Errorf("Expected %s for %s, got %s", tt.expected, tt.path, got)
			}
		})
	}
}

func TestExtensions_Predicates(t *testing.T) {
	ext := NewExtensions()

	if !ext.IsImage("a.gif") || !ext.IsImage("a.PNG") {
		t.Error("Expected gif and png to be images")
	}
	if ext.IsImage("a.mp4") {
		t.Error("Expected mp4 not to be an image")
	}
	if !ext.IsVideo("a.M4V") {
		t.Error("Expected m4v to be a video")
	}
	if ext.IsSupported("a.heic") {
		t.Error("Expected heic to be unsupported")
	}
}

func TestMediaKind_TargetExt(t *testing.T) {
	tests := []struct {
		kind     MediaKind
		expected string
	}{
		{StaticImage, ".png"},
		{AnimatedImage, ".gif"},
		{Video, ".mp4"},
		{Unsupported, ""},
	}

	for _, tt := range tests {
		if got := tt.kind.TargetExt(); got != tt.expected {
			t.Errorf("Expected %q for %s, got %q", tt.expected, tt.kind, got)
		}
	}
}
