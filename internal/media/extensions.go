package media

import (
	"path/filepath"
	"slices"
	"strings"
)

// Extensions classifies paths by extension. Content is never sniffed, so a
// renamed file with a mismatched extension is classified by its name.
type Extensions interface {
	// Classify returns the media kind of a path.
	Classify(filePath string) MediaKind
	// ClassifyExt returns the media kind of an extension such as ".JPG".
	ClassifyExt(ext string) MediaKind
	// IsImage returns true for still and animated image extensions.
	IsImage(filePath string) bool
	// IsVideo returns true if the file extension is a supported video format.
	IsVideo(filePath string) bool
	// IsSupported returns true if the file extension is any supported media format.
	IsSupported(filePath string) bool
}

// extensions implements the Extensions interface.
type extensions struct {
	imageExts    []string
	animatedExts []string
	videoExts    []string
}

// NewExtensions creates a new Extensions instance.
func NewExtensions() Extensions {
	return &extensions{
		imageExts:    []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".tiff", ".tif"},
		animatedExts: []string{".gif"},
		videoExts:    []string{".mp4", ".mkv", ".mov", ".avi", ".flv", ".wmv", ".webm", ".ts", ".m4v"},
	}
}

func (e *extensions) Classify(filePath string) MediaKind {
	return e.ClassifyExt(filepath.Ext(filePath))
}

func (e *extensions) ClassifyExt(ext string) MediaKind {
	ext = strings.ToLower(ext)
	switch {
	case slices.Contains(e.animatedExts, ext):
		return AnimatedImage
	case slices.Contains(e.imageExts, ext):
		return StaticImage
	case slices.Contains(e.videoExts, ext):
		return Video
	default:
		return Unsupported
	}
}

func (e *extensions) IsImage(filePath string) bool {
	kind := e.Classify(filePath)
	return kind == StaticImage || kind == AnimatedImage
}

func (e *extensions) IsVideo(filePath string) bool {
	return e.Classify(filePath) == Video
}

func (e *extensions) IsSupported(filePath string) bool {
	return e.Classify(filePath) != Unsupported
}
