package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchDir_CreateAndRelease(t *testing.T) {
	base := t.TempDir()

	dir, err := NewScratchDir(base)
	require.NoError(t, err)
	assert.DirExists(t, dir.Path())
	assert.Equal(t, base, filepath.Dir(dir.Path()))

	require.NoError(t, os.MkdirAll(filepath.Join(dir.Path(), "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir.Path(), "nested", "a.mp4"), []byte("x"), 0644))

	require.NoError(t, dir.Release())
	assert.NoDirExists(t, dir.Path())
	assert.NoError(t, dir.Release(), "release is idempotent")
}

func TestScratchDir_UniqueNames(t *testing.T) {
	base := t.TempDir()

	a, err := NewScratchDir(base)
	require.NoError(t, err)
	b, err := NewScratchDir(base)
	require.NoError(t, err)

	assert.NotEqual(t, a.Path(), b.Path())
}

func TestScratchDir_FilesSkipsPartials(t *testing.T) {
	dir, err := NewScratchDir(t.TempDir())
	require.NoError(t, err)
	defer dir.Release()

	for _, name := range []string{"Song.mp3", "Song.webm.part", "Song.f140.m4a.ytdl", "Song.part-Frag3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir.Path(), name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir.Path(), "sub"), 0755))

	files, err := dir.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir.Path(), "Song.mp3")}, files)
}

func TestWithScratchDir_ReleasesOnError(t *testing.T) {
	base := t.TempDir()
	var path string

	err := WithScratchDir(base, func(dir *ScratchDir, keep func()) error {
		path = dir.Path()
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.NoDirExists(t, path)
}

func TestWithScratchDir_ReleasesOnPanic(t *testing.T) {
	base := t.TempDir()
	var path string

	assert.Panics(t, func() {
		_ = WithScratchDir(base, func(dir *ScratchDir, keep func()) error {
			path = dir.Path()
			panic("boom")
		})
	})
	assert.NoDirExists(t, path)
}

func TestWithScratchDir_Keep(t *testing.T) {
	base := t.TempDir()
	var kept *ScratchDir

	err := WithScratchDir(base, func(dir *ScratchDir, keep func()) error {
		kept = dir
		keep()
		return nil
	})

	require.NoError(t, err)
	assert.DirExists(t, kept.Path())
	require.NoError(t, kept.Release())
}

func TestSweepScratch(t *testing.T) {
	base := t.TempDir()

	stale, err := NewScratchDir(base)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stale.Path(), "half.mp4.part"), []byte("x"), 0644))

	keepDir := filepath.Join(base, "logs")
	require.NoError(t, os.Mkdir(keepDir, 0755))
	keepFile := filepath.Join(base, "fetch-history.db")
	require.NoError(t, os.WriteFile(keepFile, nil, 0644))

	n, err := SweepScratch(base)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, stale.Path())
	assert.DirExists(t, keepDir)
	assert.FileExists(t, keepFile)
}

func TestSweepScratch_MissingBase(t *testing.T) {
	n, err := SweepScratch(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
