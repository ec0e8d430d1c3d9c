//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/qpaper-go/api"
	"github.com/yourusername/qpaper-go/internal/app"
	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/internal/infrastructure"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

var paperBody = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), 4000)...)

// newOrigin serves PDFs, failing the first failures requests to /flaky.pdf with 503
func newOrigin(t *testing.T, failures int32) *httptest.Server {
	var flakyHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/flaky.pdf" && atomic.AddInt32(&flakyHits, 1) <= failures:
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.URL.Path == "/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html><body>moved</body></html>"))
		case strings.HasSuffix(r.URL.Path, ".pdf"):
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(paperBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type stack struct {
	config   *domain.Config
	repo     *infrastructure.SQLitePaperRepository
	queueMgr *app.QueueManager
	syncer   *app.Syncer
	router   http.Handler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dir := t.TempDir()

	config := domain.DefaultConfig()
	config.Fetch.BaseDir = dir
	config.Fetch.Backoff = 10 * time.Millisecond
	config.Fetch.Timeout = 5 * time.Second
	config.Queue.DatabasePath = filepath.Join(dir, "queue.db")
	config.Queue.CheckInterval = 20 * time.Millisecond

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{Level: "debug", LogsDir: config.Fetch.LogsDir()})
	require.NoError(t, err)
	t.Cleanup(func() { multiLog.Close() })
	logs := logger.NewLoggerAdapter(multiLog)

	repo, err := infrastructure.NewSQLitePaperRepository(config.Queue.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	fetcher := infrastructure.NewHTTPFetcher(config.Fetch.Backoff, logs.Fetch(),
		infrastructure.WithLockDir(config.Fetch.LockDir()))
	fetchMgr := app.NewFetchManager(repo, fetcher, nil, &config.Fetch, config.Queue.ConcurrentLimit, logs)
	queueMgr := app.NewQueueManager(repo, fetchMgr, &config.Queue, logs)
	syncer := app.NewSyncer(fetcher, queueMgr, nil, &config.Fetch, 0, logs)

	router := api.SetupRouter(api.RouterDeps{
		QueueMgr:    queueMgr,
		FetchMgr:    fetchMgr,
		Syncer:      syncer,
		FetchConfig: &config.Fetch,
		LogAdapter:  logs,
		LogsDir:     config.Fetch.LogsDir(),
	})

	return &stack{config: config, repo: repo, queueMgr: queueMgr, syncer: syncer, router: router}
}

func (s *stack) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestQueuedPapersAreFetched(t *testing.T) {
	origin := newOrigin(t, 2)
	s := newStack(t)

	require.NoError(t, s.queueMgr.Start(context.Background()))
	defer s.queueMgr.Stop()

	ids := map[string]string{}
	for name, path := range map[string]string{
		"CBSE-Class-10-Mathematics-2024": "/math.pdf",
		"CBSE-Class-12-Physics-2023":     "/flaky.pdf",
		"WBBSE-Class-10-English-2024":    "/page.html",
	} {
		w := s.post(t, "/api/v1/papers", map[string]string{"url": origin.URL + path, "name": name})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var paper domain.Paper
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paper))
		ids[name] = paper.ID
	}

	require.Eventually(t, func() bool {
		stats, err := s.repo.GetStats()
		return err == nil && stats.Completed+stats.Failed == 3
	}, 10*time.Second, 20*time.Millisecond)

	math, err := s.repo.FindByID(ids["CBSE-Class-10-Mathematics-2024"])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, math.Status)
	assert.Equal(t, 1, math.Attempts)
	data, err := os.ReadFile(math.Destination)
	require.NoError(t, err)
	assert.Equal(t, paperBody, data)

	flaky, err := s.repo.FindByID(ids["CBSE-Class-12-Physics-2023"])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, flaky.Status)
	assert.Equal(t, 3, flaky.Attempts)

	page, err := s.repo.FindByID(ids["WBBSE-Class-10-English-2024"])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, page.Status)
	assert.Equal(t, domain.ReasonContentType, page.FailureReason)
	assert.NoFileExists(t, page.Destination)

	entries, err := logger.NewLogReader(s.config.Fetch.LogsDir()).ReadTodayLogs(logger.CategoryFetch, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestSyncCatalog(t *testing.T) {
	origin := newOrigin(t, 5)
	s := newStack(t)

	catalog := &domain.Catalog{Boards: []domain.CatalogGroup{{Board: "CBSE", Papers: []domain.CatalogEntry{
		{Name: "CBSE-Class-10-Mathematics-2024", URL: origin.URL + "/math.pdf"},
		{Name: "CBSE-Class-10-Science-2024", URL: origin.URL + "/flaky.pdf"},
		{Name: "CBSE-Class-10-Hindi-2024", URL: origin.URL + "/missing.pdf"},
	}}}}

	report := s.syncer.Sync(context.Background(), catalog)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Results, 3)
	assert.Equal(t, domain.ReasonStatus, report.Results[1].Reason)
	assert.Equal(t, domain.ReasonStatus, report.Results[2].Reason)
	assert.FileExists(t, report.Results[0].Path)

	locks, err := os.ReadDir(s.config.Fetch.LockDir())
	require.NoError(t, err)
	assert.NotEmpty(t, locks)
}
