package infrastructure

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

func setupTestRepo(t *testing.T) *SQLiteHistoryRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")
	repo, err := NewSQLiteHistoryRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func terminalRecord(t *testing.T, created time.Time, fail error) *domain.FetchRecord {
	t.Helper()
	req, err := domain.NewFetchRequest("https://youtu.be/dQw4w9WgXcQ", "high")
	require.NoError(t, err)

	rec := domain.NewStatusRecord(req, created)
	require.NoError(t, rec.Advance(domain.StateExtracting, created))
	if fail != nil {
		require.NoError(t, rec.MarkFailed(fail, created.Add(time.Second)))
	} else {
		require.NoError(t, rec.MarkCompleted(&domain.FetchResult{
			Path:  "/tmp/scratch/Never Gonna.mp4",
			Title: "Never Gonna",
			Kind:  domain.MediaVideo,
			Size:  2048,
		}, created.Add(time.Second)))
	}
	return domain.NewFetchRecord(rec)
}

func TestSave_AndFindByID(t *testing.T) {
	repo := setupTestRepo(t)

	rec := terminalRecord(t, time.Now(), nil)
	require.NoError(t, repo.Save(rec))

	found, err := repo.FindByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.Equal(t, domain.StateComplete, found.State)
	assert.Equal(t, "Never Gonna.mp4", found.FileName)
	assert.Equal(t, int64(2048), found.Size)
	assert.Equal(t, domain.QualityHigh, found.Quality)
	require.NotNil(t, found.CompletedAt)
}

func TestSave_Upserts(t *testing.T) {
	repo := setupTestRepo(t)

	rec := terminalRecord(t, time.Now(), nil)
	require.NoError(t, repo.Save(rec))

	rec.Title = "Renamed"
	require.NoError(t, repo.Save(rec))

	found, err := repo.FindByID(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.Title)

	all, err := repo.FindAll(nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestFindByID_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	found, err := repo.FindByID("missing")
	assert.Nil(t, found)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindRecent_NewestFirst(t *testing.T) {
	repo := setupTestRepo(t)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		rec := terminalRecord(t, base.Add(time.Duration(i)*time.Minute), nil)
		require.NoError(t, repo.Save(rec))
		ids = append(ids, rec.ID)
	}

	recent, err := repo.FindRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[2], recent[0].ID)
	assert.Equal(t, ids[1], recent[1].ID)

	all, err := repo.FindRecent(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFindAll_Filters(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.Save(terminalRecord(t, time.Now(), nil)))
	failed := terminalRecord(t, time.Now(), domain.NewFetchError(domain.KindSourceUnavailable, "resolve", errors.New("private video")))
	require.NoError(t, repo.Save(failed))

	found, err := repo.FindAll(map[string]interface{}{"state": domain.StateFailed})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, failed.ID, found[0].ID)
	assert.Equal(t, domain.KindSourceUnavailable, found[0].ErrorKind)
	assert.Contains(t, found[0].Error, "private video")

	_, err = repo.FindAll(map[string]interface{}{"1=1; DROP TABLE fetch_history; --": 1})
	assert.Error(t, err)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := setupTestRepo(t)

	old := terminalRecord(t, time.Now().Add(-48*time.Hour), nil)
	fresh := terminalRecord(t, time.Now(), nil)
	require.NoError(t, repo.Save(old))
	require.NoError(t, repo.Save(fresh))

	n, err := repo.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.FindByID(old.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.FindByID(fresh.ID)
	assert.NoError(t, err)
}

func TestGetStats(t *testing.T) {
	repo := setupTestRepo(t)

	now := time.Now()
	require.NoError(t, repo.Save(terminalRecord(t, now, nil)))
	require.NoError(t, repo.Save(terminalRecord(t, now, nil)))
	require.NoError(t, repo.Save(terminalRecord(t, now, domain.NewFetchError(domain.KindFetchFailed, "transfer", errors.New("403")))))
	require.NoError(t, repo.Save(terminalRecord(t, now, errors.New("disk full"))))

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Complete)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(4096), stats.TotalBytes)
	assert.Equal(t, int64(1), stats.ByKind[string(domain.KindFetchFailed)])
	assert.Equal(t, int64(1), stats.ByKind["unclassified"])
}

func TestGetStats_Empty(t *testing.T) {
	repo := setupTestRepo(t)

	stats, err := repo.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.TotalBytes)
	assert.Empty(t, stats.ByKind)
}
