package media

import (
	"image"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// MediaKind is the class a file belongs to, decided from its extension.
type MediaKind int

const (
	Unsupported MediaKind = iota
	StaticImage
	AnimatedImage
	Video
)

// String returns a lowercase label for logs.
func (k MediaKind) String() string {
	switch k {
	case StaticImage:
		return "image"
	case AnimatedImage:
		return "animation"
	case Video:
		return "video"
	default:
		return "unsupported"
	}
}

// TargetExt returns the canonical output extension for the kind, or "" for Unsupported.
func (k MediaKind) TargetExt() string {
	switch k {
	case StaticImage:
		return ".png"
	case AnimatedImage:
		return ".gif"
	case Video:
		return ".mp4"
	default:
		return ""
	}
}

// MediaEntry is a supported file found by the scanner.
type MediaEntry struct {
	// Path is the absolute path of the file at scan time.
	Path string
	// Folder is the directory containing the file.
	Folder string
	// Kind is the detected media class.
	Kind MediaKind
	// SourceExt is the lowercased extension including the dot.
	SourceExt string
}

// Name returns the base name of the entry.
func (e MediaEntry) Name() string {
	return filepath.Base(e.Path)
}

// Stem returns the base name without its extension.
func (e MediaEntry) Stem() string {
	name := e.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// FolderBatch is the set of entries of one folder, processed together.
type FolderBatch struct {
	Folder  string
	Entries []MediaEntry
}

// SequenceCounters maps a target extension to the next index to try in one folder.
type SequenceCounters map[string]int

// NewSequenceCounters returns counters starting at 1 for every extension.
func NewSequenceCounters() SequenceCounters {
	return SequenceCounters{}
}

// Next returns the first index to probe for ext.
func (c SequenceCounters) Next(ext string) int {
	if n, ok := c[ext]; ok && n > 0 {
		return n
	}
	return 1
}

// Advance records a commit at index for ext.
func (c SequenceCounters) Advance(ext string, index int) {
	c[ext] = index + 1
}

// OutcomeKind tags a ConversionOutcome.
type OutcomeKind int

const (
	OutcomeSkipped OutcomeKind = iota
	OutcomeConverted
	OutcomeFailed
)

// ConversionOutcome is the result of processing one entry.
// Path holds the temporary output before commit and the final name after it.
type ConversionOutcome struct {
	Kind OutcomeKind
	Path string
	Err  error
}

// Converted builds a successful outcome pointing at path.
func Converted(path string) ConversionOutcome {
	return ConversionOutcome{Kind: OutcomeConverted, Path: path}
}

// Skipped builds an outcome for an entry that needs no re-encode.
func Skipped() ConversionOutcome {
	return ConversionOutcome{Kind: OutcomeSkipped}
}

// Failed builds a failed outcome carrying the reason.
func Failed(err error) ConversionOutcome {
	return ConversionOutcome{Kind: OutcomeFailed, Err: err}
}

func (o ConversionOutcome) String() string {
	switch o.Kind {
	case OutcomeConverted:
		return "converted"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Frame is one decoded picture with its display time.
type Frame struct {
	Image      image.Image
	DurationMs int
}

// Dimensions is what a probe reports about an entry.
type Dimensions struct {
	Width  int
	Height int
	// Frames is 1 for still images and videos.
	Frames int
	// DurationSeconds is only set for videos.
	DurationSeconds float64
}

// VideoInfo is the result of probing a video container.
type VideoInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	HasVideoStream  bool
}

// Options holds configuration for a normalisation run.
type Options struct {
	// DryRun probes and decides but never writes, renames or deletes.
	DryRun bool
	// DisableSkip re-encodes entries even when they are already compliant.
	DisableSkip bool
	// ShortSide is the resolution ceiling for the smaller dimension.
	ShortSide int
	// MaxFolderWorkers is the number of folders processed concurrently.
	MaxFolderWorkers int
	// MaxCodecWorkers bounds concurrent decode/encode/transcode jobs across all folders.
	MaxCodecWorkers int
	// MaxProbeAttempts caps the free-index search for one commit.
	MaxProbeAttempts int
	// StalePartialAge is how old a leftover partial output must be before it is removed.
	StalePartialAge time.Duration
	// Archiver, when set, receives every original before it is deleted.
	Archiver Archiver
	// Tagger, when set, records the original file name in converted images.
	Tagger ExifWriter
	// ProgressChan is an optional channel for receiving progress events.
	ProgressChan chan<- ProgressEvent
}

// DefaultOptions returns the default run options.
func DefaultOptions() Options {
	return Options{
		ShortSide:        720,
		MaxFolderWorkers: 4,
		MaxCodecWorkers:  runtime.NumCPU(),
		MaxProbeAttempts: 10000,
		StalePartialAge:  time.Hour,
	}
}

// ProgressEvent represents a progress update during a run.
type ProgressEvent struct {
	// Stage is one of "scanning", "converting", "transcoding", "committing".
	Stage string
	// Current is the number of items processed so far.
	Current int
	// Total is the total number of items to process.
	Total int
	// Message is a human-readable description of the current operation.
	Message string
	// File is the path of the file currently being processed.
	File string
}
