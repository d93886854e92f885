package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/acm19/normalise/internal/logger"
	"github.com/spf13/afero"
)

// ScanResult is the output of a directory scan.
type ScanResult struct {
	// Root is the absolute, cleaned root that was scanned.
	Root string
	// Folders maps each folder to its supported entries, in directory order.
	Folders map[string][]MediaEntry
	// Denied holds one ErrScanPermissionDenied-wrapped error per skipped entry.
	Denied []error
	// Partials lists leftover temporary outputs from interrupted runs.
	Partials []string
}

// Batches returns one FolderBatch per folder, ordered by folder path.
func (r *ScanResult) Batches() []FolderBatch {
	folders := make([]string, 0, len(r.Folders))
	for folder := range r.Folders {
		folders = append(folders, folder)
	}
	slices.Sort(folders)

	batches := make([]FolderBatch, 0, len(folders))
	for _, folder := range folders {
		batches = append(batches, FolderBatch{Folder: folder, Entries: r.Folders[folder]})
	}
	return batches
}

// EntryCount returns the number of entries across all folders.
func (r *ScanResult) EntryCount() int {
	n := 0
	for _, entries := range r.Folders {
		n += len(entries)
	}
	return n
}

// DirectoryScanner walks a tree and groups supported files by folder.
type DirectoryScanner interface {
	// Scan walks root recursively. Unreadable entries are skipped and reported in
	// the result; an unreadable root fails with ErrScanRootInaccessible.
	// Dot files and dot directories are ignored, and symlinks are never followed.
	Scan(root string) (*ScanResult, error)
}

// directoryScanner implements the DirectoryScanner interface
type directoryScanner struct {
	fs         afero.Fs
	extensions Extensions
}

// NewDirectoryScanner creates a scanner over fs.
func NewDirectoryScanner(fs afero.Fs) DirectoryScanner {
	return &directoryScanner{
		fs:         fs,
		extensions: NewExtensions(),
	}
}

func (s *directoryScanner) Scan(root string) (*ScanResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScanRootInaccessible, root, err)
	}
	root = abs

	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrScanRootInaccessible, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrScanRootInaccessible, root)
	}

	result := &ScanResult{
		Root:    root,
		Folders: make(map[string][]MediaEntry),
	}

	logger.Info("Scanning directory tree", "root", root)
	walkErr := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %s: %v", ErrScanRootInaccessible, root, err)
			}
			denied := fmt.Errorf("%w: %s: %v", ErrScanPermissionDenied, path, err)
			if !errors.Is(err, fs.ErrPermission) {
				denied = fmt.Errorf("cannot read %s: %w", path, err)
			}
			logger.Warn("Skipping unreadable entry", "path", path, "error", err)
			result.Denied = append(result.Denied, denied)
			return nil
		}

		if path == root {
			return nil
		}

		name := info.Name()
		if strings.HasPrefix(name, ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			if IsPartialName(name) {
				result.Partials = append(result.Partials, path)
			}
			return nil
		}

		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		ext := filepath.Ext(name)
		kind := s.extensions.ClassifyExt(ext)
		if kind == Unsupported {
			return nil
		}

		folder := filepath.Dir(path)
		result.Folders[folder] = append(result.Folders[folder], MediaEntry{
			Path:      path,
			Folder:    folder,
			Kind:      kind,
			SourceExt: strings.ToLower(ext),
		})
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, ErrScanRootInaccessible) {
			return nil, walkErr
		}
		return nil, fmt.Errorf("failed to scan %s: %w", root, walkErr)
	}

	logger.Info("Scan complete", "folders", len(result.Folders), "files", result.EntryCount(), "skipped_entries", len(result.Denied))
	return result, nil
}
