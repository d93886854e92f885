package imagecodec

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/acm19/normalise/internal/logger"
	"github.com/acm19/normalise/internal/media"
	"github.com/spf13/afero"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNoFrames is returned for an animation without any frame.
var ErrNoFrames = errors.New("animation has no frames")

// Codec reads still images (JPEG, PNG, BMP, TIFF, WebP) and GIF animations,
// and writes PNG and GIF.
type Codec struct {
	fs          afero.Fs
	scaler      xdraw.Interpolator
	compression png.CompressionLevel
	palette     color.Palette
}

// New creates a Codec reading and writing through fs.
func New(fs afero.Fs) *Codec {
	return &Codec{
		fs:          fs,
		scaler:      xdraw.CatmullRom,
		compression: png.BestCompression,
		palette:     gifPalette(),
	}
}

// gifPalette is Plan 9 with the first entry replaced by full transparency.
func gifPalette() color.Palette {
	p := make(color.Palette, len(palette.Plan9))
	copy(p, palette.Plan9)
	p[0] = color.Transparent
	return p
}

// ProbeDimensions reads only the header for still images. GIFs are fully
// decoded, and the smallest box across composited frames is reported.
func (c *Codec) ProbeDimensions(path string) (int, int, int, error) {
	if isGIF(path) {
		g, err := c.decodeGIF(path)
		if err != nil {
			return 0, 0, 0, err
		}
		frames, err := composite(g)
		if err != nil {
			return 0, 0, 0, err
		}
		sizes := make([]image.Point, len(frames))
		for i, f := range frames {
			sizes[i] = f.Bounds().Size()
		}
		w, h := media.MinFrameBox(sizes)
		return w, h, len(frames), nil
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("read image header: %w", err)
	}

	w, h := cfg.Width, cfg.Height
	if format == "jpeg" && swapsAxes(c.orientation(path)) {
		w, h = h, w
	}
	return w, h, 1, nil
}

// DecodeFrames returns a single frame for still images. GIF frames are
// composited onto the logical screen so every frame has the full size.
func (c *Codec) DecodeFrames(path string) ([]media.Frame, int, error) {
	if isGIF(path) {
		g, err := c.decodeGIF(path)
		if err != nil {
			return nil, 0, err
		}
		images, err := composite(g)
		if err != nil {
			return nil, 0, err
		}
		frames := make([]media.Frame, len(images))
		for i, img := range images {
			frames[i] = media.Frame{Image: img, DurationMs: g.Delay[i] * 10}
		}
		return frames, g.LoopCount, nil
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if format == "jpeg" {
		img = applyOrientation(img, c.orientation(path))
	}
	return []media.Frame{{Image: img}}, 0, nil
}

// Resize scales img to width x height. A difference of at most one pixel per
// axis, as left by even rounding, is cropped instead of resampled.
func (c *Codec) Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	dw, dh := b.Dx()-width, b.Dy()-height
	if dw >= 0 && dw <= 1 && dh >= 0 && dh <= 1 {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst
	}

	c.scaler.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// EncodeStatic writes img as PNG.
func (c *Codec) EncodeStatic(img image.Image, path string) error {
	f, err := c.fs.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	enc := png.Encoder{CompressionLevel: c.compression}
	if err := enc.Encode(w, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeAnimated writes frames as a GIF. durationsMs are rounded down to
// hundredths of a second; loopCount follows image/gif semantics.
func (c *Codec) EncodeAnimated(frames []image.Image, durationsMs []int, loopCount int, path string) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if len(durationsMs) != len(frames) {
		return fmt.Errorf("got %d durations for %d frames", len(durationsMs), len(frames))
	}

	out := &gif.GIF{LoopCount: loopCount}
	for i, frame := range frames {
		b := frame.Bounds()
		pm := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), c.palette)
		xdraw.FloydSteinberg.Draw(pm, pm.Bounds(), frame, b.Min)

		out.Image = append(out.Image, pm)
		out.Delay = append(out.Delay, durationsMs[i]/10)
		out.Disposal = append(out.Disposal, gif.DisposalBackground)
	}
	out.Config = image.Config{
		ColorModel: c.palette,
		Width:      out.Image[0].Bounds().Dx(),
		Height:     out.Image[0].Bounds().Dy(),
	}

	f, err := c.fs.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := gif.EncodeAll(w, out); err != nil {
		f.Close()
		return fmt.Errorf("encode gif: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *Codec) decodeGIF(path string) (*gif.GIF, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := gif.DecodeAll(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decode gif %s: %w", filepath.Base(path), err)
	}
	if len(g.Image) == 0 {
		return nil, ErrNoFrames
	}
	return g, nil
}

func (c *Codec) orientation(path string) int {
	f, err := c.fs.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	o, err := readOrientation(f)
	if err != nil {
		logger.Debug("No EXIF orientation", "file", filepath.Base(path), "error", err)
		return 1
	}
	return o
}

func isGIF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gif")
}
