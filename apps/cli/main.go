package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/acm19/normalise/apps/cli/completion"
	"github.com/acm19/normalise/internal/config"
	"github.com/acm19/normalise/internal/ffmpeg"
	"github.com/acm19/normalise/internal/imagecodec"
	"github.com/acm19/normalise/internal/logger"
	"github.com/acm19/normalise/internal/media"
	"github.com/barasher/go-exiftool"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "normalise [ROOT_DIR]",
	Short: "Normalise photos, animations and videos in place",
	Long: `Normalise walks ROOT_DIR (default: current directory) and, folder by folder,
re-encodes images to PNG, animations to GIF and videos to H.264 MP4 with the
short side capped at 720 pixels. Outputs are named 1.png, 2.png, ... in natural
order of the original names. Originals are only deleted once their replacement
is in place.`,
	Args:    cobra.MaximumNArgs(1),
	Version: version,
	Run:     runNormalise,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE...",
	Short: "Show what normalise would do with individual files",
	Long:  `Probes each file and prints its media kind, dimensions and the resolution decision. Nothing is written.`,
	Args:  cobra.MinimumNArgs(1),
	Run:   runInspect,
}

var (
	configPath    string
	verbose       bool
	logFormat     string
	shortSide     int
	noSkip        bool
	dryRun        bool
	folderWorkers int
	codecWorkers  int
	probeLimit    int
	ffmpegPath    string
	ffprobePath   string
	archiveBucket string
	archivePrefix string
	tagOriginal   bool
)

func init() {
	// Shared flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().IntVar(&shortSide, "short-side", 720, "Maximum length of the shorter side in pixels")
	rootCmd.PersistentFlags().BoolVar(&noSkip, "no-skip", false, "Re-encode files even when they are already compliant")
	rootCmd.PersistentFlags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	rootCmd.PersistentFlags().StringVar(&ffprobePath, "ffprobe", "ffprobe", "Path to the ffprobe binary")

	// Run flags
	rootCmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would be done without changing anything")
	rootCmd.Flags().IntVarP(&folderWorkers, "workers", "w", 4, "Number of folders processed concurrently")
	rootCmd.Flags().IntVar(&codecWorkers, "codec-workers", 0, "Maximum concurrent conversions (default: number of CPUs)")
	rootCmd.Flags().IntVar(&probeLimit, "probe-limit", 10000, "Maximum attempts to find a free sequential name")
	rootCmd.Flags().StringVar(&archiveBucket, "archive-bucket", "", "Upload originals to this S3 bucket before deleting them")
	rootCmd.Flags().StringVar(&archivePrefix, "archive-prefix", "", "Key prefix for archived originals")
	rootCmd.Flags().BoolVar(&tagOriginal, "tag-original", false, "Record the original file name in converted images (requires exiftool)")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(completion.NewInstallCmd(rootCmd))
	rootCmd.AddCommand(completion.NewUninstallCmd(rootCmd))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runSettings is the result of layering defaults, the config file and flags.
type runSettings struct {
	opts        media.Options
	video       ffmpeg.Settings
	logFormat   string
	tagOriginal bool
	archive     config.Archive
}

// buildSettings applies cfg over the defaults and then every flag for which
// changed returns true.
func buildSettings(cfg *config.File, changed func(string) bool) runSettings {
	s := runSettings{
		opts:        media.DefaultOptions(),
		video:       ffmpeg.DefaultSettings(),
		logFormat:   "text",
		tagOriginal: cfg.TagOriginalName,
		archive:     cfg.Archive,
	}
	cfg.ApplyOptions(&s.opts)
	cfg.ApplyVideo(&s.video)
	if cfg.LogFormat != "" {
		s.logFormat = cfg.LogFormat
	}

	if changed("short-side") {
		s.opts.ShortSide = shortSide
	}
	if changed("workers") {
		s.opts.MaxFolderWorkers = folderWorkers
	}
	if changed("codec-workers") {
		s.opts.MaxCodecWorkers = codecWorkers
	}
	if changed("probe-limit") {
		s.opts.MaxProbeAttempts = probeLimit
	}
	if changed("ffmpeg") {
		s.video.FFmpegPath = ffmpegPath
	}
	if changed("ffprobe") {
		s.video.FFprobePath = ffprobePath
	}
	if changed("log-format") {
		s.logFormat = logFormat
	}
	if changed("tag-original") {
		s.tagOriginal = tagOriginal
	}
	if changed("archive-bucket") {
		s.archive.Bucket = archiveBucket
	}
	if changed("archive-prefix") {
		s.archive.Prefix = archivePrefix
	}
	s.opts.DryRun = dryRun
	s.opts.DisableSkip = noSkip
	return s
}

// loadSettings reads the config file and layers the command's flags on top.
func loadSettings(cmd *cobra.Command) (runSettings, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return runSettings{}, err
	}
	s := buildSettings(cfg, cmd.Flags().Changed)
	if s.opts.ShortSide <= 0 {
		return runSettings{}, fmt.Errorf("short side must be positive, got %d", s.opts.ShortSide)
	}
	return s, nil
}

// resolveRoot returns the directory to process, defaulting to the current directory.
func resolveRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 && args[0] != "" {
		root = args[0]
	}
	return filepath.Abs(root)
}

// newVideoTranscoder returns nil when ffmpeg or ffprobe is missing, so videos
// fail individually instead of aborting the run.
func newVideoTranscoder(settings ffmpeg.Settings) media.VideoTranscoder {
	transcoder := ffmpeg.NewTranscoder(settings)
	if err := transcoder.Available(); err != nil {
		logger.Warn("Video support disabled", "error", err)
		return nil
	}
	return transcoder
}

func runNormalise(cmd *cobra.Command, args []string) {
	settings, err := loadSettings(cmd)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Configure(verbose, settings.logFormat)

	root, err := resolveRoot(args)
	if err != nil {
		logger.Error("Invalid root directory", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := settings.opts
	if settings.tagOriginal && !opts.DryRun {
		et, err := exiftool.NewExiftool()
		if err != nil {
			logger.Error("Failed to initialise exiftool", "error", err)
			os.Exit(1)
		}
		defer et.Close()
		opts.Tagger = media.NewExifWriter(et)
	}
	if settings.archive.Bucket != "" && !opts.DryRun {
		archiver, err := media.NewS3Archiver(ctx, settings.archive.Bucket, settings.archive.Prefix)
		if err != nil {
			logger.Error("Failed to initialise archiver", "error", err)
			os.Exit(1)
		}
		opts.Archiver = archiver
	}

	progress := make(chan media.ProgressEvent, 100)
	opts.ProgressChan = progress
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range progress {
			logger.Debug(event.Message, "stage", event.Stage, "current", event.Current, "total", event.Total)
		}
	}()

	fs := afero.NewOsFs()
	normaliser := media.NewNormaliser(fs, imagecodec.New(fs), newVideoTranscoder(settings.video), opts)

	logger.Info("Starting normalisation", "root", root, "short_side", opts.ShortSide, "dry_run", opts.DryRun, "no_skip", opts.DisableSkip)
	summary, err := normaliser.Run(ctx, root)
	close(progress)
	<-done

	if err != nil {
		if errors.Is(err, media.ErrScanRootInaccessible) {
			logger.Error("Cannot process root directory", "root", root, "error", err)
		} else {
			logger.Error("Normalisation stopped", "error", err)
			fmt.Println(summary)
		}
		os.Exit(1)
	}

	fmt.Println(summary)
	if summary.Errors > 0 {
		logger.Warn("Some files could not be processed", "errors", summary.Errors)
	}
}

func runInspect(cmd *cobra.Command, args []string) {
	settings, err := loadSettings(cmd)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Configure(verbose, settings.logFormat)

	fs := afero.NewOsFs()
	renamer := media.NewSafeRenamer(fs, settings.opts.MaxProbeAttempts, true)
	dispatcher := media.NewConversionDispatcher(fs, imagecodec.New(fs), newVideoTranscoder(settings.video), renamer, true, nil)
	policy := media.NewResolutionPolicy(settings.opts.ShortSide, settings.opts.DisableSkip)
	extensions := media.NewExtensions()

	failed := false
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			logger.Error("Invalid path", "path", arg, "error", err)
			failed = true
			continue
		}
		entry := media.MediaEntry{
			Path:      path,
			Folder:    filepath.Dir(path),
			Kind:      extensions.Classify(path),
			SourceExt: filepath.Ext(path),
		}
		fmt.Println(describe(cmd.Context(), dispatcher, policy, entry))
		if entry.Kind == media.Unsupported {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

// describe renders one line for the inspect command.
func describe(ctx context.Context, dispatcher media.ConversionDispatcher, policy media.ResolutionPolicy, entry media.MediaEntry) string {
	if entry.Kind == media.Unsupported {
		return fmt.Sprintf("%s: unsupported", entry.Name())
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dims, err := dispatcher.Inspect(ctx, entry)
	if err != nil {
		return fmt.Sprintf("%s: %s, %v", entry.Name(), entry.Kind, err)
	}
	decision, err := policy.Decide(entry.Kind, dims.Width, dims.Height, entry.SourceExt)
	if err != nil {
		return fmt.Sprintf("%s: %s %dx%d, %v", entry.Name(), entry.Kind, dims.Width, dims.Height, err)
	}

	action := fmt.Sprintf("convert to %dx%d %s", decision.TargetWidth, decision.TargetHeight, entry.Kind.TargetExt())
	if decision.Skip {
		action = "already compliant"
	}
	frames := ""
	if dims.Frames > 1 {
		frames = fmt.Sprintf(" (%d frames)", dims.Frames)
	}
	return fmt.Sprintf("%s: %s %dx%d%s, %s", entry.Name(), entry.Kind, dims.Width, dims.Height, frames, action)
}
