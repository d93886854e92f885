package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/acm19/normalise/internal/logger"
	"github.com/acm19/normalise/internal/media"
)

// Settings controls how videos are encoded.
type Settings struct {
	FFmpegPath  string
	FFprobePath string
	Preset      string
	// CRFScaled is used when the picture is resized, CRFUnscaled when only the container changes.
	CRFScaled   int
	CRFUnscaled int
	// AudioCodec is "aac" to re-encode or "copy" to pass the stream through.
	AudioCodec   string
	AudioBitrate string
	PixelFormat  string
}

// DefaultSettings returns H.264/AAC settings suitable for 720p output.
func DefaultSettings() Settings {
	return Settings{
		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		Preset:       "fast",
		CRFScaled:    20,
		CRFUnscaled:  23,
		AudioCodec:   "aac",
		AudioBitrate: "192k",
		PixelFormat:  "yuv420p",
	}
}

// Transcoder runs ffprobe and ffmpeg. It satisfies media.VideoTranscoder.
type Transcoder struct {
	settings Settings
}

// NewTranscoder creates a Transcoder. Empty settings fall back to defaults.
func NewTranscoder(settings Settings) *Transcoder {
	defaults := DefaultSettings()
	if settings.FFmpegPath == "" {
		settings.FFmpegPath = defaults.FFmpegPath
	}
	if settings.FFprobePath == "" {
		settings.FFprobePath = defaults.FFprobePath
	}
	if settings.Preset == "" {
		settings.Preset = defaults.Preset
	}
	if settings.CRFScaled <= 0 {
		settings.CRFScaled = defaults.CRFScaled
	}
	if settings.CRFUnscaled <= 0 {
		settings.CRFUnscaled = defaults.CRFUnscaled
	}
	if settings.AudioCodec == "" {
		settings.AudioCodec = defaults.AudioCodec
	}
	if settings.AudioBitrate == "" {
		settings.AudioBitrate = defaults.AudioBitrate
	}
	if settings.PixelFormat == "" {
		settings.PixelFormat = defaults.PixelFormat
	}
	return &Transcoder{settings: settings}
}

// Available reports whether both binaries can be found.
func (t *Transcoder) Available() error {
	for _, bin := range []string{t.settings.FFmpegPath, t.settings.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

func (t *Transcoder) Probe(ctx context.Context, path string) (media.VideoInfo, error) {
	pr, err := Probe(ctx, t.settings.FFprobePath, path)
	if err != nil {
		return media.VideoInfo{}, err
	}
	return media.VideoInfo{
		DurationSeconds: pr.DurationSeconds,
		Width:           pr.Width,
		Height:          pr.Height,
		HasVideoStream:  pr.HasVideo,
	}, nil
}

// Transcode re-encodes path to an MP4 at width x height. Cancelling ctx kills
// ffmpeg; the partial output is left for the caller to remove.
func (t *Transcoder) Transcode(ctx context.Context, path string, width, height int, outputPath string, progress func(float64)) error {
	pr, err := Probe(ctx, t.settings.FFprobePath, path)
	if err != nil {
		return err
	}
	if !pr.HasVideo {
		return ErrNoVideoStream
	}

	scaling := pr.Width != width || pr.Height != height
	args := BuildArgs(t.settings, path, outputPath, width, height, scaling)
	logger.Debug("Running ffmpeg", "args", args)

	cmd := exec.CommandContext(ctx, t.settings.FFmpegPath, args...)
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	readProgress(stdout, pr.DurationSeconds, progress)
	err = cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		if kind := classify(stderr.String()); kind != nil {
			return fmt.Errorf("%w: %s", kind, tail(stderr.String(), 3))
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, tail(stderr.String(), 3))
	}

	logger.Debug("ffmpeg finished", "file", path, "duration_seconds", time.Since(start).Seconds())
	return nil
}

// BuildArgs returns the ffmpeg arguments for one transcode.
func BuildArgs(s Settings, input, output string, width, height int, scaling bool) []string {
	crf := s.CRFUnscaled
	if scaling {
		crf = s.CRFScaled
	}

	args := []string{
		"-hide_banner", "-nostdin", "-v", "error", "-n",
		"-i", input,
		"-map", "0:v:0", "-map", "0:a:0?",
		"-vf", fmt.Sprintf("scale=%d:%d,setsar=1", width, height),
		"-c:v", "libx264",
		"-preset", s.Preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", s.PixelFormat,
	}
	if s.AudioCodec == "copy" {
		args = append(args, "-c:a", "copy")
	} else {
		args = append(args, "-c:a", s.AudioCodec, "-b:a", s.AudioBitrate)
	}
	return append(args,
		"-movflags", "+faststart",
		"-progress", "pipe:1", "-nostats",
		"-f", "mp4",
		output,
	)
}
