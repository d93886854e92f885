package media

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acm19/normalise/internal/logger"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// Normaliser drives a full run over a directory tree.
type Normaliser interface {
	// Run scans root and normalises every folder.
	//
	// Folders are processed concurrently, each by one worker that owns its
	// sequence counters. Inside a folder, entries are probed and converted in
	// parallel (bounded by Options.MaxCodecWorkers across the whole run) and then
	// committed one at a time in natural order, so output indices follow input order.
	//
	// Returns:
	//   - Summary: totals for the run
	//   - error: only when the root cannot be scanned or ctx is cancelled;
	//     per-file failures are counted in the summary
	Run(ctx context.Context, root string) (Summary, error)
}

// normaliser implements the Normaliser interface
type normaliser struct {
	fs         afero.Fs
	scanner    DirectoryScanner
	policy     ResolutionPolicy
	renamer    SafeRenamer
	dispatcher ConversionDispatcher
	opts       Options
	codecSlots chan struct{}
}

// runState is the per-run shared state. Only the summary and progress
// counters are touched by more than one folder worker.
type runState struct {
	root      string
	summary   RunSummary
	processed atomic.Int64
	total     atomic.Int64
}

// workItem tracks one entry through a folder pass.
type workItem struct {
	entry MediaEntry
	// current is where the original lives right now: its own path or a staged name.
	current  string
	staged   bool
	decision Decision
	outcome  ConversionOutcome
	inBytes  int64
}

// NewNormaliser creates a Normaliser. videos may be nil when no video
// transcoder is available; videos then fail with ErrProbeFailed.
func NewNormaliser(fs afero.Fs, images ImageCodec, videos VideoTranscoder, opts Options) Normaliser {
	defaults := DefaultOptions()
	if opts.ShortSide <= 0 {
		opts.ShortSide = defaults.ShortSide
	}
	if opts.MaxFolderWorkers <= 0 {
		opts.MaxFolderWorkers = defaults.MaxFolderWorkers
	}
	if opts.MaxCodecWorkers <= 0 {
		opts.MaxCodecWorkers = defaults.MaxCodecWorkers
	}
	if opts.MaxProbeAttempts <= 0 {
		opts.MaxProbeAttempts = defaults.MaxProbeAttempts
	}

	renamer := NewSafeRenamer(fs, opts.MaxProbeAttempts, opts.DryRun)
	return &normaliser{
		fs:         fs,
		scanner:    NewDirectoryScanner(fs),
		policy:     NewResolutionPolicy(opts.ShortSide, opts.DisableSkip),
		renamer:    renamer,
		dispatcher: NewConversionDispatcher(fs, images, videos, renamer, opts.DryRun, opts.ProgressChan),
		opts:       opts,
		codecSlots: make(chan struct{}, opts.MaxCodecWorkers),
	}
}

func (n *normaliser) Run(ctx context.Context, root string) (Summary, error) {
	start := time.Now()
	n.emit(ProgressEvent{Stage: "scanning", Message: "Scanning " + root, File: root})

	result, err := n.scanner.Scan(root)
	if err != nil {
		return Summary{}, err
	}

	state := &runState{root: result.Root}
	state.total.Store(int64(result.EntryCount()))
	for range result.Denied {
		state.summary.RecordScanDenied()
	}
	n.cleanPartials(result.Partials)

	batches := result.Batches()
	numWorkers := max(1, min(n.opts.MaxFolderWorkers, len(batches)))
	logger.Info("Normalising folders", "folders", len(batches), "files", result.EntryCount(), "folder_workers", numWorkers, "codec_workers", cap(n.codecSlots), "dry_run", n.opts.DryRun)

	jobs := make(chan FolderBatch, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go n.folderWorker(ctx, state, jobs, &wg)
	}

	go func() {
		defer close(jobs)
		for _, batch := range batches {
			select {
			case jobs <- batch:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	summary := state.summary.Snapshot()
	summary.Duration = time.Since(start)
	summary.DryRun = n.opts.DryRun
	logger.Info("Run complete",
		"converted", summary.Converted,
		"skipped", summary.Skipped,
		"renamed", summary.Renamed,
		"errors", summary.Errors,
		"saved", humanize.Bytes(uint64(max(summary.BytesSaved(), 0))),
		"duration_seconds", summary.Duration.Seconds())

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run interrupted: %w", err)
	}
	return summary, nil
}

// folderWorker processes folders from the jobs channel
func (n *normaliser) folderWorker(ctx context.Context, state *runState, jobs <-chan FolderBatch, wg *sync.WaitGroup) {
	defer wg.Done()
	for batch := range jobs {
		n.processFolder(ctx, state, batch)
	}
}

// processFolder runs the two passes over one folder: parallel probe and
// convert, then serial commit in natural order.
func (n *normaliser) processFolder(ctx context.Context, state *runState, batch FolderBatch) {
	entries := slices.Clone(batch.Entries)
	SortEntries(entries)
	logger.Info("Processing folder", "folder", batch.Folder, "files", len(entries))

	items := make([]*workItem, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		item := &workItem{entry: entry, current: entry.Path}
		items[i] = item

		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case n.codecSlots <- struct{}{}:
			case <-ctx.Done():
				item.outcome = Failed(ctx.Err())
				return
			}
			defer func() { <-n.codecSlots }()
			n.prepare(ctx, state, item)
		}()
	}
	wg.Wait()

	n.commitFolder(ctx, state, batch.Folder, items)
}

// prepare probes and decides one entry and, when it needs converting, stages
// a numerically named original and produces the temporary output.
func (n *normaliser) prepare(ctx context.Context, state *runState, item *workItem) {
	entry := item.entry
	item.inBytes = fileSize(n.fs, entry.Path)

	current := state.processed.Add(1)
	total := state.total.Load()
	n.emit(ProgressEvent{
		Stage:   "converting",
		Current: int(current),
		Total:   int(total),
		Message: fmt.Sprintf("Processing file %d of %d", current, total),
		File:    entry.Path,
	})

	dims, err := n.dispatcher.Inspect(ctx, entry)
	if err != nil {
		item.outcome = Failed(err)
		return
	}

	decision, err := n.policy.Decide(entry.Kind, dims.Width, dims.Height, entry.SourceExt)
	if err != nil {
		item.outcome = Failed(err)
		return
	}
	item.decision = decision
	logger.Debug("Resolution decision", "file", entry.Name(), "width", dims.Width, "height", dims.Height,
		"skip", decision.Skip, "target_width", decision.TargetWidth, "target_height", decision.TargetHeight)

	if decision.Skip {
		item.outcome = Skipped()
		return
	}

	if IsNumericStem(entry.Name()) {
		staged, err := n.renamer.Stage(item.current)
		if err != nil {
			item.outcome = Failed(err)
			return
		}
		item.current = staged
		item.staged = true
	}

	item.outcome = n.dispatcher.Convert(ctx, entry, item.current, decision)
}

// commitFolder assigns sequential names in order. Counters live only for the
// duration of this call.
func (n *normaliser) commitFolder(ctx context.Context, state *runState, folder string, items []*workItem) {
	counters := NewSequenceCounters()

	// Skipped entries still sitting on their original names. A commit that
	// lands on one of them moves it to a staged name first.
	waiting := make(map[string]*workItem)
	for _, item := range items {
		if item.outcome.Kind == OutcomeSkipped {
			waiting[item.current] = item
		}
	}
	vacate := func(path string) bool {
		return n.evict(waiting, path)
	}

	for i, item := range items {
		delete(waiting, item.current)

		if err := ctx.Err(); err != nil && item.outcome.Kind != OutcomeFailed {
			if item.outcome.Kind == OutcomeConverted {
				n.discard(item.outcome.Path)
			}
			item.outcome = Failed(err)
		}

		n.emit(ProgressEvent{
			Stage:   "committing",
			Current: i + 1,
			Total:   len(items),
			Message: fmt.Sprintf("Committing file %d of %d", i+1, len(items)),
			File:    item.entry.Path,
		})

		switch item.outcome.Kind {
		case OutcomeFailed:
			n.fail(state, item, item.outcome.Err)
		case OutcomeSkipped:
			n.commitSkipped(state, folder, item, counters, vacate)
		case OutcomeConverted:
			n.commitConverted(ctx, state, folder, item, counters, vacate)
		}
	}
}

func (n *normaliser) commitSkipped(state *runState, folder string, item *workItem, counters SequenceCounters, vacate VacateFunc) {
	final, err := n.renamer.Commit(item.current, folder, item.entry.Kind.TargetExt(), counters, vacate)
	if err != nil {
		n.fail(state, item, err)
		return
	}

	renamed := final != item.entry.Path
	switch {
	case renamed && n.opts.DryRun:
		logger.Info("Would rename", "from", item.entry.Name(), "to", filepath.Base(final), "folder", folder)
	case renamed:
		logger.Info("Renamed", "from", item.entry.Name(), "to", filepath.Base(final), "folder", folder)
	default:
		logger.Debug("Already normalised", "file", item.entry.Path)
	}

	item.current = final
	item.outcome = ConversionOutcome{Kind: OutcomeSkipped, Path: final}
	state.summary.Record(item.outcome, renamed, 0, 0)
}

// commitConverted follows a strict order: verify the temporary output, archive
// the original, move the output to its final name, and only then delete the original.
func (n *normaliser) commitConverted(ctx context.Context, state *runState, folder string, item *workItem, counters SequenceCounters, vacate VacateFunc) {
	temp := item.outcome.Path
	abort := func(err error) {
		n.discard(temp)
		n.fail(state, item, err)
	}

	if !n.opts.DryRun {
		if err := isValidFile(n.fs, temp); err != nil {
			abort(fmt.Errorf("%w: %v", ErrEncodeFailed, err))
			return
		}
		if n.opts.Archiver != nil {
			if err := n.opts.Archiver.Archive(ctx, item.current, n.archiveKey(state.root, item.entry)); err != nil {
				abort(fmt.Errorf("failed to archive original: %w", err))
				return
			}
		}
	}

	final, err := n.renamer.Commit(temp, folder, item.entry.Kind.TargetExt(), counters, vacate)
	if err != nil {
		abort(err)
		return
	}

	if n.opts.Tagger != nil && !n.opts.DryRun && item.entry.Kind != Video {
		if _, err := n.opts.Tagger.WriteOriginalFileNameIfMissing(final, item.entry.Name()); err != nil {
			logger.Warn("Failed to record original file name", "file", final, "error", err)
		}
	}

	if err := n.renamer.Remove(item.current); err != nil {
		logger.Error("Output committed but original could not be removed", "original", item.current, "output", final, "error", err)
	}

	outBytes := fileSize(n.fs, final)
	item.current = final
	item.outcome = Converted(final)
	state.summary.Record(item.outcome, false, item.inBytes, outBytes)

	if n.opts.DryRun {
		logger.Info("Would commit", "from", item.entry.Name(), "to", filepath.Base(final),
			"width", item.decision.TargetWidth, "height", item.decision.TargetHeight)
		return
	}
	logger.Info("Converted", "from", item.entry.Name(), "to", filepath.Base(final),
		"width", item.decision.TargetWidth, "height", item.decision.TargetHeight,
		"size_before", humanize.Bytes(uint64(item.inBytes)), "size_after", humanize.Bytes(uint64(outBytes)))
}

// fail records a failed entry after putting a staged original back.
func (n *normaliser) fail(state *runState, item *workItem, err error) {
	n.rollback(item)
	item.outcome = Failed(err)
	state.summary.Record(item.outcome, false, 0, 0)
	logger.Error("Failed to process file", "file", item.entry.Path, "error", err)
}

func (n *normaliser) rollback(item *workItem) {
	if !item.staged {
		return
	}
	final, err := n.renamer.Rollback(item.current, item.entry.Path)
	if err != nil {
		logger.Error("Failed to restore original name", "staged", item.current, "original", item.entry.Path, "error", err)
	}
	item.current = final
	item.staged = final != item.entry.Path
}

// evict moves a waiting skipped entry off path so a commit can use it.
func (n *normaliser) evict(waiting map[string]*workItem, path string) bool {
	other, ok := waiting[path]
	if !ok {
		return false
	}
	staged, err := n.renamer.Stage(other.current)
	if err != nil {
		logger.Warn("Failed to move waiting file out of the way", "file", path, "error", err)
		return false
	}
	delete(waiting, path)
	other.current = staged
	other.staged = true
	waiting[staged] = other
	return true
}

func (n *normaliser) discard(path string) {
	if err := n.renamer.Discard(path); err != nil {
		logger.Warn("Failed to remove temporary output", "path", path, "error", err)
	}
}

// cleanPartials removes temporary outputs left behind by an interrupted run.
func (n *normaliser) cleanPartials(paths []string) {
	if n.opts.StalePartialAge <= 0 {
		return
	}
	for _, path := range paths {
		info, err := n.fs.Stat(path)
		if err != nil || time.Since(info.ModTime()) < n.opts.StalePartialAge {
			continue
		}
		if n.opts.DryRun {
			logger.Info("Would remove stale partial output", "path", path)
			continue
		}
		if err := n.fs.Remove(path); err != nil {
			logger.Warn("Failed to remove stale partial output", "path", path, "error", err)
			continue
		}
		logger.Info("Removed stale partial output", "path", path)
	}
}

func (n *normaliser) archiveKey(root string, entry MediaEntry) string {
	rel, err := filepath.Rel(root, entry.Path)
	if err != nil {
		rel = entry.Name()
	}
	return filepath.ToSlash(rel)
}

func (n *normaliser) emit(event ProgressEvent) {
	if n.opts.ProgressChan == nil {
		return
	}
	select {
	case n.opts.ProgressChan <- event:
	default:
		logger.Debug("Progress event dropped (channel full)", "stage", event.Stage)
	}
}
