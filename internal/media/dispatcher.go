package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/acm19/normalise/internal/logger"
	"github.com/spf13/afero"
)

// ImageCodec decodes, resizes and encodes still and animated images.
type ImageCodec interface {
	// ProbeDimensions returns the size of path and its frame count. For
	// animations the size is the smallest box across frames.
	ProbeDimensions(path string) (width, height, frameCount int, err error)
	// DecodeFrames returns every frame of path and the loop count.
	DecodeFrames(path string) ([]Frame, int, error)
	// Resize returns img scaled to exactly width x height.
	Resize(img image.Image, width, height int) image.Image
	// EncodeStatic writes img to path in the canonical still format.
	EncodeStatic(img image.Image, path string) error
	// EncodeAnimated writes frames to path in the canonical animated format.
	EncodeAnimated(frames []image.Image, durationsMs []int, loopCount int, path string) error
}

// VideoTranscoder probes and re-encodes videos.
type VideoTranscoder interface {
	Probe(ctx context.Context, path string) (VideoInfo, error)
	// Transcode writes path scaled to width x height into outputPath.
	// progress, if not nil, receives the completed fraction in [0, 1].
	Transcode(ctx context.Context, path string, width, height int, outputPath string, progress func(float64)) error
}

// ConversionDispatcher routes entries to the image codec or the video transcoder.
type ConversionDispatcher interface {
	// Inspect probes an entry. Errors wrap ErrProbeFailed.
	Inspect(ctx context.Context, entry MediaEntry) (Dimensions, error)

	// Convert re-encodes the entry read from source (the original or its staged
	// name) to a temporary path in the entry's folder. It never writes a
	// sequential name. A skip decision returns Skipped without touching codecs;
	// any failure removes the temporary output and returns Failed.
	Convert(ctx context.Context, entry MediaEntry, source string, decision Decision) ConversionOutcome
}

// conversionDispatcher implements the ConversionDispatcher interface
type conversionDispatcher struct {
	fs       afero.Fs
	images   ImageCodec
	videos   VideoTranscoder
	renamer  SafeRenamer
	dryRun   bool
	progress chan<- ProgressEvent
}

// NewConversionDispatcher creates a dispatcher writing temporary outputs named by renamer.
func NewConversionDispatcher(fs afero.Fs, images ImageCodec, videos VideoTranscoder, renamer SafeRenamer, dryRun bool, progress chan<- ProgressEvent) ConversionDispatcher {
	return &conversionDispatcher{
		fs:       fs,
		images:   images,
		videos:   videos,
		renamer:  renamer,
		dryRun:   dryRun,
		progress: progress,
	}
}

func (d *conversionDispatcher) Inspect(ctx context.Context, entry MediaEntry) (Dimensions, error) {
	switch entry.Kind {
	case StaticImage, AnimatedImage:
		if d.images == nil {
			return Dimensions{}, fmt.Errorf("%w: no image codec configured", ErrProbeFailed)
		}
		w, h, frames, err := d.images.ProbeDimensions(entry.Path)
		if err != nil {
			return Dimensions{}, fmt.Errorf("%w: %s: %v", ErrProbeFailed, entry.Name(), err)
		}
		return Dimensions{Width: w, Height: h, Frames: frames}, nil
	case Video:
		if d.videos == nil {
			return Dimensions{}, fmt.Errorf("%w: no video transcoder configured", ErrProbeFailed)
		}
		info, err := d.videos.Probe(ctx, entry.Path)
		if err != nil {
			return Dimensions{}, fmt.Errorf("%w: %s: %v", ErrProbeFailed, entry.Name(), err)
		}
		if !info.HasVideoStream {
			return Dimensions{}, fmt.Errorf("%w: %s has no video stream", ErrProbeFailed, entry.Name())
		}
		return Dimensions{Width: info.Width, Height: info.Height, Frames: 1, DurationSeconds: info.DurationSeconds}, nil
	default:
		return Dimensions{}, fmt.Errorf("%w: unsupported file %s", ErrProbeFailed, entry.Name())
	}
}

func (d *conversionDispatcher) Convert(ctx context.Context, entry MediaEntry, source string, decision Decision) ConversionOutcome {
	if decision.Skip {
		return Skipped()
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	temp := d.renamer.TempPath(entry.Folder, entry.Kind.TargetExt())
	if d.dryRun {
		logger.Info("Would convert", "file", entry.Name(), "kind", entry.Kind, "width", decision.TargetWidth, "height", decision.TargetHeight)
		return Converted(temp)
	}

	var err error
	switch entry.Kind {
	case StaticImage:
		err = d.convertStatic(source, temp, decision)
	case AnimatedImage:
		err = d.convertAnimated(source, temp, decision)
	case Video:
		err = d.convertVideo(ctx, entry, source, temp, decision)
	default:
		err = fmt.Errorf("%w: unsupported file %s", ErrProbeFailed, entry.Name())
	}

	if err == nil {
		if verr := isValidFile(d.fs, temp); verr != nil {
			err = fmt.Errorf("%w: %s: %v", ErrEncodeFailed, filepath.Base(temp), verr)
		}
	}
	if err != nil {
		if derr := d.renamer.Discard(temp); derr != nil {
			logger.Warn("Failed to remove temporary output", "path", temp, "error", derr)
		}
		return Failed(err)
	}

	logger.Debug("Conversion output ready", "file", entry.Name(), "temp", filepath.Base(temp))
	return Converted(temp)
}

func (d *conversionDispatcher) convertStatic(source, temp string, decision Decision) error {
	frames, _, err := d.images.DecodeFrames(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: no image data", ErrDecodeFailed)
	}

	img := d.images.Resize(frames[0].Image, decision.TargetWidth, decision.TargetHeight)
	if err := d.images.EncodeStatic(img, temp); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}

func (d *conversionDispatcher) convertAnimated(source, temp string, decision Decision) error {
	frames, loopCount, err := d.images.DecodeFrames(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: no frames", ErrDecodeFailed)
	}

	resized := make([]image.Image, len(frames))
	durations := make([]int, len(frames))
	for i, f := range frames {
		if f.Image == nil {
			return fmt.Errorf("%w: frame %d is empty", ErrDecodeFailed, i)
		}
		resized[i] = d.images.Resize(f.Image, decision.TargetWidth, decision.TargetHeight)
		durations[i] = f.DurationMs
	}

	if err := d.images.EncodeAnimated(resized, durations, loopCount, temp); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}

func (d *conversionDispatcher) convertVideo(ctx context.Context, entry MediaEntry, source, temp string, decision Decision) error {
	last := -1
	progress := func(fraction float64) {
		percent := int(fraction * 100)
		if percent == last || d.progress == nil {
			return
		}
		last = percent
		select {
		case d.progress <- ProgressEvent{
			Stage:   "transcoding",
			Current: percent,
			Total:   100,
			Message: fmt.Sprintf("Transcoding %s: %d%%", entry.Name(), percent),
			File:    entry.Path,
		}:
		default:
			logger.Debug("Progress event dropped (channel full)", "stage", "transcoding")
		}
	}

	err := d.videos.Transcode(ctx, source, decision.TargetWidth, decision.TargetHeight, temp, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return nil
}
