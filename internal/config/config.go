package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/acm19/normalise/internal/ffmpeg"
	"github.com/acm19/normalise/internal/media"
	"gopkg.in/yaml.v3"
)

// FileName is the default configuration file name in the home directory.
const FileName = ".normalise.yaml"

// File represents the YAML configuration. Zero values mean "use the default".
type File struct {
	ShortSide        int     `yaml:"short_side"`
	FolderWorkers    int     `yaml:"folder_workers"`
	CodecWorkers     int     `yaml:"codec_workers"`
	MaxProbeAttempts int     `yaml:"max_probe_attempts"`
	LogFormat        string  `yaml:"log_format"`
	TagOriginalName  bool    `yaml:"tag_original_name"`
	Video            Video   `yaml:"video"`
	Archive          Archive `yaml:"archive"`
}

// Video holds ffmpeg settings.
type Video struct {
	FFmpeg       string `yaml:"ffmpeg"`
	FFprobe      string `yaml:"ffprobe"`
	Preset       string `yaml:"preset"`
	CRFScaled    int    `yaml:"crf_scaled"`
	CRFUnscaled  int    `yaml:"crf_unscaled"`
	AudioCodec   string `yaml:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

// Archive configures uploading originals to S3 before deletion.
type Archive struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// DefaultPath returns the path to the config file
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

// Load reads the configuration at path. When path is empty the default path is
// used and a missing file yields an empty configuration.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *File) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values that cannot be meant.
func (f *File) Validate() error {
	if f.ShortSide < 0 {
		return fmt.Errorf("short_side must be positive, got %d", f.ShortSide)
	}
	if f.FolderWorkers < 0 || f.CodecWorkers < 0 {
		return fmt.Errorf("worker counts must be positive")
	}
	switch f.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", f.LogFormat)
	}
	switch f.Video.AudioCodec {
	case "", "aac", "copy":
	default:
		return fmt.Errorf("video.audio_codec must be aac or copy, got %q", f.Video.AudioCodec)
	}
	return nil
}

// ApplyOptions copies the configured values onto opts.
func (f *File) ApplyOptions(opts *media.Options) {
	if f.ShortSide > 0 {
		opts.ShortSide = f.ShortSide
	}
	if f.FolderWorkers > 0 {
		opts.MaxFolderWorkers = f.FolderWorkers
	}
	if f.CodecWorkers > 0 {
		opts.MaxCodecWorkers = f.CodecWorkers
	}
	if f.MaxProbeAttempts > 0 {
		opts.MaxProbeAttempts = f.MaxProbeAttempts
	}
}

// ApplyVideo copies the configured values onto settings.
func (f *File) ApplyVideo(settings *ffmpeg.Settings) {
	v := f.Video
	if v.FFmpeg != "" {
		settings.FFmpegPath = v.FFmpeg
	}
	if v.FFprobe != "" {
		settings.FFprobePath = v.FFprobe
	}
	if v.Preset != "" {
		settings.Preset = v.Preset
	}
	if v.CRFScaled > 0 {
		settings.CRFScaled = v.CRFScaled
	}
	if v.CRFUnscaled > 0 {
		settings.CRFUnscaled = v.CRFUnscaled
	}
	if v.AudioCodec != "" {
		settings.AudioCodec = v.AudioCodec
	}
	if v.AudioBitrate != "" {
		settings.AudioBitrate = v.AudioBitrate
	}
}
