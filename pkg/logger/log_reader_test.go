package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeLogLines(t *testing.T, dir string, category LogCategory, lines ...string) {
	t.Helper()
	path := CategoryLogPath(dir, category, time.Now())
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func TestParseLogLine(t *testing.T) {
	entry := ParseLogLine(`{"level":"info","ts":"2024-01-01T00:00:00.000Z","msg":"fetch_admitted","category":"registry","id":"abc","size":12}`, CategoryFetch)

	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", entry.Timestamp)
	assert.Equal(t, "fetch_admitted", entry.Message)
	assert.Equal(t, "registry", entry.Category)
	assert.Equal(t, "abc", entry.Fields["id"])
	assert.Equal(t, float64(12), entry.Fields["size"])
}

func TestParseLogLine_PlainText(t *testing.T) {
	entry := ParseLogLine("not json", CategoryError)

	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "not json", entry.Message)
	assert.Equal(t, "error", entry.Category)
	assert.Nil(t, entry.Fields)
}

func TestLogReader_ReadLogs(t *testing.T) {
	dir := t.TempDir()
	writeLogLines(t, dir, CategoryFetch,
		`{"level":"info","ts":"t1","msg":"one"}`,
		`{"level":"info","ts":"t2","msg":"two"}`,
		"",
		`{"level":"warn","ts":"t3","msg":"three"}`,
	)

	reader := NewLogReader(dir)

	all, err := reader.ReadLogs(CategoryFetch, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Message)

	last, err := reader.ReadLogs(CategoryFetch, time.Now(), 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "two", last[0].Message)
	assert.Equal(t, "three", last[1].Message)
}

func TestLogReader_ReadLogsMissingFile(t *testing.T) {
	reader := NewLogReader(t.TempDir())

	entries, err := reader.ReadLogs(CategoryRegistry, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogReader_SearchLogs(t *testing.T) {
	dir := t.TempDir()
	writeLogLines(t, dir, CategoryFetch,
		`{"level":"info","ts":"t1","msg":"fetch_admitted","video_id":"dQw4w9WgXcQ"}`,
		`{"level":"info","ts":"t2","msg":"fetch_complete","video_id":"aaaaaaaaaaa"}`,
		`{"level":"error","ts":"t3","msg":"fetch_failed","video_id":"dQw4w9WgXcQ"}`,
	)

	reader := NewLogReader(dir)

	byField, err := reader.SearchLogs(CategoryFetch, time.Now(), "dqw4w9wgxcq", 0)
	require.NoError(t, err)
	assert.Len(t, byField, 2)

	byMessage, err := reader.SearchLogs(CategoryFetch, time.Now(), "COMPLETE", 0)
	require.NoError(t, err)
	require.Len(t, byMessage, 1)
	assert.Equal(t, "t2", byMessage[0].Timestamp)

	limited, err := reader.SearchLogs(CategoryFetch, time.Now(), "fetch_", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "fetch_failed", limited[0].Message)
}

func TestLogReader_TailLogs(t *testing.T) {
	dir := t.TempDir()
	writeLogLines(t, dir, CategoryRegistry, `{"level":"info","ts":"t0","msg":"old"}`)

	reader := NewLogReader(dir)
	reader.pollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() {
		done <- reader.TailLogs(ctx, CategoryRegistry, entries)
	}()

	// let the tailer seek to the end before appending
	time.Sleep(50 * time.Millisecond)

	f, err := os.OpenFile(CategoryLogPath(dir, CategoryRegistry, time.Now()), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"level":"info","ts":"t1","msg":"new"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case entry := <-entries:
		assert.Equal(t, "new", entry.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("tailer did not deliver the appended entry")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tailer did not stop")
	}
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogFetchEvent("fetch_started", zap.String("id", "abc"))
	ml.Registry().Info("registry_purged", zap.Int("count", 2))
	ml.LogAppError("boom", zap.String("id", "abc"))
	require.NoError(t, ml.Close())

	for _, category := range Categories() {
		assert.FileExists(t, filepath.Join(dir, string(category)+"-"+time.Now().Format("20060102")+".log"))
	}

	reader := NewLogReader(dir)
	fetchEntries, err := reader.ReadLogs(CategoryFetch, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, fetchEntries, 1)
	assert.Equal(t, "fetch_started", fetchEntries[0].Message)
	assert.Equal(t, "fetch", fetchEntries[0].Category)
	assert.Equal(t, "abc", fetchEntries[0].Fields["id"])

	errorEntries, err := reader.ReadLogs(CategoryError, time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, errorEntries, 1)
	assert.Equal(t, "error", errorEntries[0].Level)
}

func TestMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{Level: "info"})
	assert.Error(t, err)
}

func TestLoggerAdapter_SingleLogger(t *testing.T) {
	la := NewSingleLoggerAdapter(nil)

	assert.NotNil(t, la.General())
	assert.NotNil(t, la.Fetch())
	assert.NotNil(t, la.Registry())
	assert.NoError(t, la.Sync())
	la.LogError("ignored")
}
