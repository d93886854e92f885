package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/acm19/normalise/internal/logger"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const (
	// stagePrefix marks an original moved out of the way of sequential names.
	stagePrefix = "staged_"
	// partialPrefix and partialSuffix mark an in-progress conversion output.
	partialPrefix = ".normalise-"
	partialSuffix = ".part"
)

// errNoReplaceUnsupported is returned when the platform cannot rename without replacing.
var errNoReplaceUnsupported = errors.New("no-replace rename not supported")

// VacateFunc is asked to free a candidate path held by a file that is still
// waiting in the same folder. It returns true when the path is now free.
type VacateFunc func(path string) bool

// SafeRenamer moves files without ever replacing an existing name.
type SafeRenamer interface {
	// Stage moves path to a disambiguated name in the same folder and returns it.
	Stage(path string) (string, error)

	// TempPath returns a fresh hidden path in folder for a conversion output of ext.
	TempPath(folder, ext string) string

	// Commit moves src to the first free "<n><ext>" in folder.
	//
	// The search starts at counters.Next(ext) and probes upward past occupied names.
	// A candidate equal to src is treated as free and nothing is moved. When a
	// candidate is occupied, vacate (if not nil) gets a chance to free it. On
	// success the counter advances past the committed index.
	//
	// Returns:
	//   - string: the final path
	//   - error: ErrRenameCollisionExhausted past the probe cap, or ErrFilesystemPermission
	Commit(src, folder, ext string, counters SequenceCounters, vacate VacateFunc) (string, error)

	// Rollback moves a staged file back to its original name. If the original name
	// has been taken meanwhile the file stays staged. Returns where the file ended up.
	Rollback(staged, original string) (string, error)

	// Discard removes a temporary output. Missing files are not an error.
	Discard(path string) error

	// Remove deletes a superseded original after its replacement was committed.
	Remove(path string) error
}

// safeRenamer implements the SafeRenamer interface
type safeRenamer struct {
	fs          afero.Fs
	maxAttempts int
	dryRun      bool

	// overlay records simulated moves in dry-run mode: true means present.
	mu      sync.Mutex
	overlay map[string]bool
}

// NewSafeRenamer creates a SafeRenamer over fs. In dry-run mode every change is
// simulated in memory and the filesystem is only read.
func NewSafeRenamer(fs afero.Fs, maxAttempts int, dryRun bool) SafeRenamer {
	if maxAttempts <= 0 {
		maxAttempts = 10000
	}
	return &safeRenamer{
		fs:          fs,
		maxAttempts: maxAttempts,
		dryRun:      dryRun,
		overlay:     make(map[string]bool),
	}
}

// IsPartialName reports whether name is a temporary conversion output.
func IsPartialName(name string) bool {
	return strings.HasPrefix(name, partialPrefix) && strings.HasSuffix(name, partialSuffix)
}

// SequentialName returns the canonical name for index and ext.
func SequentialName(index int, ext string) string {
	return strconv.Itoa(index) + ext
}

func (r *safeRenamer) Stage(path string) (string, error) {
	dir, name := filepath.Split(path)
	for i := 0; i < 3; i++ {
		staged := filepath.Join(dir, fmt.Sprintf("%s%s_%s", stagePrefix, shortID(), name))
		err := r.move(path, staged)
		if err == nil {
			logger.Debug("Staged original", "from", name, "to", filepath.Base(staged))
			return staged, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to stage %s: %w", path, classifyFSError(err))
		}
	}
	return "", fmt.Errorf("failed to stage %s: %w", path, ErrRenameCollisionExhausted)
}

func (r *safeRenamer) TempPath(folder, ext string) string {
	return filepath.Join(folder, partialPrefix+uuid.NewString()+ext+partialSuffix)
}

func (r *safeRenamer) Commit(src, folder, ext string, counters SequenceCounters, vacate VacateFunc) (string, error) {
	index := counters.Next(ext)
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		candidate := filepath.Join(folder, SequentialName(index, ext))

		if candidate == src {
			counters.Advance(ext, index)
			return candidate, nil
		}

		// "1.PNG" -> "1.png" on a case-insensitive filesystem is the same file.
		if strings.EqualFold(candidate, src) && r.sameFile(candidate, src) {
			if !r.dryRun {
				if err := r.fs.Rename(src, candidate); err != nil {
					return "", fmt.Errorf("failed to commit %s to %s: %w", src, candidate, classifyFSError(err))
				}
			}
			counters.Advance(ext, index)
			return candidate, nil
		}

		if r.exists(candidate) && (vacate == nil || !vacate(candidate)) {
			logger.Debug("Sequential name occupied, probing next", "name", filepath.Base(candidate))
			index++
			continue
		}

		err := r.move(src, candidate)
		if err == nil {
			counters.Advance(ext, index)
			logger.Debug("Committed", "from", filepath.Base(src), "to", filepath.Base(candidate))
			return candidate, nil
		}
		if errors.Is(err, fs.ErrExist) {
			// Someone else created the name between the check and the move.
			index++
			continue
		}
		return "", fmt.Errorf("failed to commit %s to %s: %w", src, candidate, classifyFSError(err))
	}
	return "", fmt.Errorf("%w: %d attempts from index %d in %s", ErrRenameCollisionExhausted, r.maxAttempts, counters.Next(ext), folder)
}

func (r *safeRenamer) Rollback(staged, original string) (string, error) {
	if staged == original {
		return original, nil
	}
	err := r.move(staged, original)
	if err == nil {
		logger.Debug("Rolled back staged original", "file", filepath.Base(original))
		return original, nil
	}
	if errors.Is(err, fs.ErrExist) {
		logger.Warn("Original name taken, leaving file at staged name", "original", original, "staged", staged)
		return staged, nil
	}
	return staged, fmt.Errorf("failed to roll back %s: %w", staged, classifyFSError(err))
}

func (r *safeRenamer) Discard(path string) error {
	if r.dryRun {
		r.setPresent(path, false)
		return nil
	}
	if err := r.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove temporary file %s: %w", path, err)
	}
	return nil
}

func (r *safeRenamer) Remove(path string) error {
	if r.dryRun {
		r.setPresent(path, false)
		return nil
	}
	if err := r.fs.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, classifyFSError(err))
	}
	return nil
}

// exists treats anything other than a definite "not found" as occupied.
func (r *safeRenamer) exists(path string) bool {
	if r.dryRun {
		r.mu.Lock()
		present, ok := r.overlay[path]
		r.mu.Unlock()
		if ok {
			return present
		}
	}
	_, err := r.fs.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func (r *safeRenamer) sameFile(a, b string) bool {
	infoA, err := r.fs.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := r.fs.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

func (r *safeRenamer) setPresent(path string, present bool) {
	r.mu.Lock()
	r.overlay[path] = present
	r.mu.Unlock()
}

// move renames src to dst and fails with fs.ErrExist instead of replacing dst.
func (r *safeRenamer) move(src, dst string) error {
	if r.dryRun {
		if r.exists(dst) {
			return fmt.Errorf("%s: %w", dst, fs.ErrExist)
		}
		r.setPresent(src, false)
		r.setPresent(dst, true)
		return nil
	}

	if _, ok := r.fs.(*afero.OsFs); ok {
		err := renameNoReplace(src, dst)
		if !errors.Is(err, errNoReplaceUnsupported) {
			return err
		}
	}

	if r.exists(dst) {
		return fmt.Errorf("%s: %w", dst, fs.ErrExist)
	}
	return r.fs.Rename(src, dst)
}

func classifyFSError(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrFilesystemPermission, err)
	}
	return err
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
