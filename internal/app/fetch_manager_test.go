package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/qpaper-go/internal/domain"
)

// the fetchers here are stubs, so nothing is written under this root
const testBaseDir = "/srv/qpaper"

var testPapersRoot = filepath.Join(testBaseDir, "real-papers")

func newTestFetchManager(repo domain.PaperRepository, fetcher domain.Fetcher, limit int) *FetchManager {
	config := domain.DefaultConfig().Fetch
	config.BaseDir = testBaseDir
	return NewFetchManager(repo, fetcher, nil, &config, limit, nil)
}

func queuedPaper(t *testing.T, repo *mockRepo, url string) *domain.Paper {
	t.Helper()
	paper := domain.NewPaper(url, "CBSE-Class-10-Mathematics-2024", filepath.Join(testPapersRoot, url[len(url)-5:]))
	require.NoError(t, repo.Create(paper))
	return paper
}

func TestProcessPaper_Success(t *testing.T) {
	repo := newMockRepo()
	fetcher := &mockFetcher{}
	fm := newTestFetchManager(repo, fetcher, 1)
	paper := queuedPaper(t, repo, "https://cbse.gov.in/a.pdf")

	require.NoError(t, fm.ProcessPaper(context.Background(), paper))

	stored := repo.get(paper.ID)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	assert.Equal(t, int64(4096), stored.ByteSize)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.CompletedAt)

	require.Equal(t, 1, fetcher.calls())
	req := fetcher.requests[0]
	assert.Equal(t, paper.URL, req.URL)
	assert.Equal(t, paper.Destination, req.Destination)
	assert.Equal(t, 3, req.MaxAttempts)
	assert.Equal(t, int64(1000), req.MinSize)
}

func TestProcessPaper_Failure(t *testing.T) {
	repo := newMockRepo()
	fetcher := &mockFetcher{respond: func(ctx context.Context, req domain.FetchRequest) domain.FetchOutcome {
		return domain.FetchOutcome{Attempts: 3, Backoffs: 2, Err: &domain.SizeError{Size: 12, MinSize: 1000}}
	}}
	fm := newTestFetchManager(repo, fetcher, 1)
	paper := queuedPaper(t, repo, "https://cbse.gov.in/b.pdf")

	err := fm.ProcessPaper(context.Background(), paper)

	var sizeErr *domain.SizeError
	require.ErrorAs(t, err, &sizeErr)
	stored := repo.get(paper.ID)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, domain.ReasonTooSmall, stored.FailureReason)
	assert.Equal(t, 3, stored.Attempts)
	assert.Contains(t, stored.ErrorMessage, "too small")
}

func TestProcessPaper_SkipsCancelledWhileWaiting(t *testing.T) {
	repo := newMockRepo()
	fetcher := &mockFetcher{}
	fm := newTestFetchManager(repo, fetcher, 1)
	paper := queuedPaper(t, repo, "https://cbse.gov.in/c.pdf")

	require.NoError(t, fm.CancelPaper(paper.ID))
	require.NoError(t, fm.ProcessPaper(context.Background(), paper))

	assert.Equal(t, 0, fetcher.calls())
	assert.Equal(t, domain.StatusCancelled, paper.Status)
}

func TestProcessPaper_CancelInFlight(t *testing.T) {
	repo := newMockRepo()
	started := make(chan struct{})
	fetcher := &mockFetcher{respond: func(ctx context.Context, req domain.FetchRequest) domain.FetchOutcome {
		close(started)
		<-ctx.Done()
		return domain.FetchOutcome{Attempts: 1, Err: &domain.TransportError{URL: req.URL, Err: ctx.Err()}}
	}}
	fm := newTestFetchManager(repo, fetcher, 1)
	paper := queuedPaper(t, repo, "https://cbse.gov.in/d.pdf")

	done := make(chan error, 1)
	go func() { done <- fm.ProcessPaper(context.Background(), paper) }()

	<-started
	require.NoError(t, fm.CancelPaper(paper.ID))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessPaper did not return after cancel")
	}
	assert.Equal(t, domain.StatusCancelled, repo.status(paper.ID))
}

// racingRepo runs onFind or onProcessing once, in the middle of the
// matching repository call
type racingRepo struct {
	*mockRepo
	once         sync.Once
	onFind       func(id string)
	onProcessing func(id string)
}

func (r *racingRepo) FindByID(id string) (*domain.Paper, error) {
	if r.onFind != nil {
		r.once.Do(func() { r.onFind(id) })
	}
	return r.mockRepo.FindByID(id)
}

func (r *racingRepo) Update(paper *domain.Paper) error {
	if r.onProcessing != nil && paper.Status == domain.StatusProcessing {
		r.once.Do(func() { r.onProcessing(paper.ID) })
	}
	return r.mockRepo.Update(paper)
}

func TestProcessPaper_CancelDuringClaim(t *testing.T) {
	tests := []struct {
		name  string
		setup func(repo *racingRepo, cancel func(id string))
	}{
		{"while reloading", func(repo *racingRepo, cancel func(id string)) { repo.onFind = cancel }},
		{"while marking processing", func(repo *racingRepo, cancel func(id string)) { repo.onProcessing = cancel }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := newMockRepo()
			repo := &racingRepo{mockRepo: base}
			fetcher := &mockFetcher{respond: func(ctx context.Context, req domain.FetchRequest) domain.FetchOutcome {
				select {
				case <-ctx.Done():
					return domain.FetchOutcome{Attempts: 1, Err: &domain.TransportError{URL: req.URL, Err: ctx.Err()}}
				case <-time.After(5 * time.Second):
					return domain.FetchOutcome{Path: req.Destination, ByteSize: 4096, Attempts: 1}
				}
			}}
			fm := newTestFetchManager(repo, fetcher, 1)
			paper := queuedPaper(t, base, "https://cbse.gov.in/r.pdf")

			cancelErr := make(chan error, 1)
			tt.setup(repo, func(id string) {
				go func() { cancelErr <- fm.CancelPaper(id) }()
			})

			require.NoError(t, fm.ProcessPaper(context.Background(), paper))
			require.NoError(t, <-cancelErr)

			assert.Equal(t, domain.StatusCancelled, paper.Status)
			assert.Equal(t, domain.StatusCancelled, base.status(paper.ID))
		})
	}
}

func TestProcessPaper_RejectsDestinationOutsideRoot(t *testing.T) {
	repo := newMockRepo()
	fetcher := &mockFetcher{}
	fm := newTestFetchManager(repo, fetcher, 1)

	paper := domain.NewPaper("https://cbse.gov.in/x.pdf", "CBSE-Class-10-Mathematics-2024", "/home/user/.bashrc")
	require.NoError(t, repo.Create(paper))

	err := fm.ProcessPaper(context.Background(), paper)

	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 0, fetcher.calls())
	stored := repo.get(paper.ID)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.Equal(t, domain.ReasonInvalidRequest, stored.FailureReason)
}

func TestProcessPaper_OneFetchPerHost(t *testing.T) {
	repo := newMockRepo()
	var current, peak int32
	fetcher := &mockFetcher{respond: func(ctx context.Context, req domain.FetchRequest) domain.FetchOutcome {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return domain.FetchOutcome{Path: req.Destination, ByteSize: 2000, Attempts: 1}
	}}
	fm := newTestFetchManager(repo, fetcher, 4)

	var papers []*domain.Paper
	for _, u := range []string{"https://cbse.gov.in/1.pdf", "https://cbse.gov.in/2.pdf", "https://CBSE.gov.in/3.pdf"} {
		papers = append(papers, queuedPaper(t, repo, u))
	}

	var wg sync.WaitGroup
	for _, p := range papers {
		wg.Add(1)
		go func(p *domain.Paper) {
			defer wg.Done()
			assert.NoError(t, fm.ProcessPaper(context.Background(), p))
		}(p)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Equal(t, 3, fetcher.calls())
}

func TestProcessPaper_ContextCancelledBeforeSlot(t *testing.T) {
	repo := newMockRepo()
	fm := newTestFetchManager(repo, &mockFetcher{}, 1)
	paper := queuedPaper(t, repo, "https://cbse.gov.in/e.pdf")

	fm.slots <- struct{}{} // occupy the only slot
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fm.ProcessPaper(ctx, paper)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, domain.StatusQueued, repo.status(paper.ID))
}

func TestCancelPaper_States(t *testing.T) {
	repo := newMockRepo()
	fm := newTestFetchManager(repo, &mockFetcher{}, 1)

	completed := domain.NewPaper("https://a.example/1.pdf", "NIT-Physics-2024", "/p/1.pdf")
	completed.MarkCompleted(domain.FetchOutcome{Path: "/p/1.pdf", ByteSize: 2000, Attempts: 1})
	require.NoError(t, repo.Create(completed))

	err := fm.CancelPaper(completed.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	err = fm.CancelPaper("missing")
	assert.ErrorIs(t, err, domain.ErrPaperNotFound)
}

func TestRetryPaper(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.PaperStatus
		wantErr bool
	}{
		{"failed", domain.StatusFailed, false},
		{"cancelled", domain.StatusCancelled, false},
		{"queued", domain.StatusQueued, true},
		{"processing", domain.StatusProcessing, true},
		{"completed", domain.StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			fm := newTestFetchManager(repo, &mockFetcher{}, 1)

			paper := domain.NewPaper("https://a.example/x.pdf", "NIT-Physics-2024", "/p/x.pdf")
			paper.Status = tt.status
			paper.FailureReason = domain.ReasonStatus
			paper.ErrorMessage = "boom"
			require.NoError(t, repo.Create(paper))

			retried, err := fm.RetryPaper(paper.ID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidState)
				assert.Equal(t, tt.status, repo.status(paper.ID))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.StatusQueued, retried.Status)
			assert.Equal(t, 1, retried.RetryCount)
			assert.Empty(t, retried.ErrorMessage)
			assert.Empty(t, retried.FailureReason)
			assert.Equal(t, domain.StatusQueued, repo.status(paper.ID))
		})
	}
}

func TestRetryPaper_NotFound(t *testing.T) {
	fm := newTestFetchManager(newMockRepo(), &mockFetcher{}, 1)

	_, err := fm.RetryPaper("nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
