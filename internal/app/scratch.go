package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const scratchPrefix = "fetch-"

// ScratchDir is an exclusively owned per-request temporary directory.
// Release removes it recursively and is safe to call more than once.
type ScratchDir struct {
	path string
	once sync.Once
	err  error
}

// NewScratchDir creates a uniquely named directory under baseDir
func NewScratchDir(baseDir string) (*ScratchDir, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	path, err := os.MkdirTemp(baseDir, scratchPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &ScratchDir{path: path}, nil
}

// Path returns the directory path
func (s *ScratchDir) Path() string {
	return s.path
}

// Release removes the directory and everything in it
func (s *ScratchDir) Release() error {
	s.once.Do(func() {
		s.err = os.RemoveAll(s.path)
	})
	return s.err
}

// Files lists the regular files in the directory, skipping yt-dlp partials
func (s *ScratchDir) Files() ([]string, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list scratch directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isPartialFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(s.path, entry.Name()))
	}
	return files, nil
}

// isPartialFile checks for the in-progress files yt-dlp leaves behind
func isPartialFile(name string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".temp"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.Contains(name, ".part-Frag")
}

// WithScratchDir runs fn with a fresh scratch directory and releases it on return.
// fn may call keep to hand ownership to the caller instead.
func WithScratchDir(baseDir string, fn func(dir *ScratchDir, keep func()) error) error {
	dir, err := NewScratchDir(baseDir)
	if err != nil {
		return err
	}

	kept := false
	defer func() {
		if !kept {
			dir.Release()
		}
	}()

	return fn(dir, func() { kept = true })
}

// SweepScratch removes scratch directories left under baseDir by a previous
// process. It must only run before any fetch is admitted.
func SweepScratch(baseDir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(baseDir, scratchPrefix+"*"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, path := range matches {
		fi, err := os.Lstat(path)
		if err != nil || !fi.IsDir() {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return n, fmt.Errorf("failed to remove %s: %w", path, err)
		}
		n++
	}
	return n, nil
}
