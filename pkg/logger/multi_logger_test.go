package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMultiLogger(t *testing.T) (*MultiLogger, string) {
	t.Helper()
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "debug", LogsDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { ml.Close() })
	return ml, dir
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{Level: "info"})
	assert.Error(t, err)
}

func TestMultiLogger_CreatesCategoryFiles(t *testing.T) {
	_, dir := newTestMultiLogger(t)

	date := time.Now().Format("20060102")
	for _, category := range Categories {
		assert.FileExists(t, filepath.Join(dir, LogFileName(category, date)))
	}
}

func TestMultiLogger_WriteAndRead(t *testing.T) {
	ml, dir := newTestMultiLogger(t)

	ml.LogQueueEvent("paper_added", zap.String("id", "p-1"), zap.String("url", "https://cbse.gov.in/a.pdf"))
	ml.LogFetchEvent("fetch_completed", zap.Int64("bytes", 2048))
	ml.LogAppError("fetch failed", zap.String("reason", "status"))
	require.NoError(t, ml.Sync())

	reader := NewLogReader(dir)

	queue, err := reader.ReadTodayLogs(CategoryQueue, 10)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "paper_added", queue[0].Message)
	assert.Equal(t, "info", queue[0].Level)
	assert.Equal(t, "queue", queue[0].Category)
	assert.Equal(t, "p-1", queue[0].Fields["id"])
	assert.NotEmpty(t, queue[0].Timestamp)

	fetch, err := reader.ReadTodayLogs(CategoryFetch, 10)
	require.NoError(t, err)
	require.Len(t, fetch, 1)
	assert.Equal(t, float64(2048), fetch[0].Fields["bytes"])

	errs, err := reader.ReadTodayLogs(CategoryError, 10)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestMultiLogger_ErrorCategoryDropsInfo(t *testing.T) {
	ml, dir := newTestMultiLogger(t)

	ml.Error().Info("not an error")
	require.NoError(t, ml.Sync())

	entries, err := NewLogReader(dir).ReadTodayLogs(CategoryError, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMultiLogger_RotatesOnDateChange(t *testing.T) {
	ml, dir := newTestMultiLogger(t)

	tomorrow := time.Now().Add(24 * time.Hour)
	ml.now = func() time.Time { return tomorrow }

	ml.LogQueueEvent("after_midnight")
	require.NoError(t, ml.Sync())

	entries, err := NewLogReader(dir).ReadLogs(CategoryQueue, tomorrow, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "after_midnight", entries[0].Message)
}

func TestMultiLogger_HeldLoggerFollowsRotation(t *testing.T) {
	ml, dir := newTestMultiLogger(t)

	held := ml.Fetch().With(zap.String("component", "fetcher"))
	held.Info("before_midnight")

	tomorrow := time.Now().Add(24 * time.Hour)
	ml.now = func() time.Time { return tomorrow }

	held.Info("after_midnight")
	require.NoError(t, ml.Sync())

	reader := NewLogReader(dir)
	today, err := reader.ReadTodayLogs(CategoryFetch, 0)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "before_midnight", today[0].Message)

	next, err := reader.ReadLogs(CategoryFetch, tomorrow, 0)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "after_midnight", next[0].Message)
	assert.Equal(t, "fetcher", next[0].Fields["component"])
}

func TestLogReader_LimitAndSearch(t *testing.T) {
	ml, dir := newTestMultiLogger(t)

	for _, url := range []string{"https://a.example/1.pdf", "https://b.example/2.pdf", "https://a.example/3.pdf"} {
		ml.LogQueueEvent("paper_added", zap.String("url", url))
	}
	require.NoError(t, ml.Sync())

	reader := NewLogReader(dir)

	last, err := reader.ReadTodayLogs(CategoryQueue, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "https://b.example/2.pdf", last[0].Fields["url"])

	found, err := reader.SearchLogs(CategoryQueue, time.Now(), "A.EXAMPLE", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	limited, err := reader.SearchLogs(CategoryQueue, time.Now(), "paper_added", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "https://a.example/3.pdf", limited[0].Fields["url"])
}

func TestLogReader_MissingFileAndPlainLines(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(dir)

	entries, err := reader.ReadTodayLogs(CategoryFetch, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, os.WriteFile(reader.GetTodayLogPath(CategoryFetch), []byte("plain text line\n"), 0644))
	entries, err = reader.ReadTodayLogs(CategoryFetch, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "plain text line", entries[0].Message)
}

func TestLogReader_TailLogs(t *testing.T) {
	ml, dir := newTestMultiLogger(t)
	reader := NewLogReader(dir)
	reader.pollInterval = 10 * time.Millisecond

	entries := make(chan LogEntry, 1)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- reader.TailLogs(CategoryQueue, entries, stop)
	}()

	// give the tail time to seek to the end
	time.Sleep(100 * time.Millisecond)
	ml.LogQueueEvent("queue_started")
	require.NoError(t, ml.Sync())

	select {
	case entry := <-entries:
		assert.Equal(t, "queue_started", entry.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("no entry received")
	}

	close(stop)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tail did not stop")
	}
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryFetch))
	assert.False(t, ValidCategory("web-access"))
}

func TestLoggerAdapter_Single(t *testing.T) {
	adapter := NewSingleLoggerAdapter(nil)
	assert.NotNil(t, adapter.Queue())
	assert.Same(t, adapter.Queue(), adapter.Fetch())
	assert.Nil(t, adapter.GetMultiLogger())
}
