package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/internal/infrastructure"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

// ErrInvalidState is returned when a paper cannot move to the requested status
var ErrInvalidState = errors.New("invalid paper state")

// FetchManager runs queued papers through the Fetcher and records the outcome
type FetchManager struct {
	repo     domain.PaperRepository
	fetcher  domain.Fetcher
	notifier *infrastructure.NotificationService
	config   *domain.FetchConfig
	logs     *logger.LoggerAdapter

	slots          chan struct{}            // global concurrency limit
	hostSemaphores map[string]chan struct{} // one in-flight fetch per host
	inflight       map[string]context.CancelFunc
	mu             sync.Mutex
}

// NewFetchManager creates a new fetch manager allowing concurrentLimit fetches at once
func NewFetchManager(
	repo domain.PaperRepository,
	fetcher domain.Fetcher,
	notifier *infrastructure.NotificationService,
	config *domain.FetchConfig,
	concurrentLimit int,
	logs *logger.LoggerAdapter,
) *FetchManager {
	if concurrentLimit < 1 {
		concurrentLimit = 1
	}
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	if notifier == nil {
		notifier = infrastructure.NewNotificationService(&domain.NotificationConfig{}, nil)
	}

	return &FetchManager{
		repo:           repo,
		fetcher:        fetcher,
		notifier:       notifier,
		config:         config,
		logs:           logs,
		slots:          make(chan struct{}, concurrentLimit),
		hostSemaphores: make(map[string]chan struct{}),
		inflight:       make(map[string]context.CancelFunc),
	}
}

func (fm *FetchManager) hostSemaphore(rawURL string) chan struct{} {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = strings.ToLower(u.Host)
	}

	fm.mu.Lock()
	defer fm.mu.Unlock()

	sem, ok := fm.hostSemaphores[host]
	if !ok {
		sem = make(chan struct{}, 1)
		fm.hostSemaphores[host] = sem
	}
	return sem
}

func acquire(ctx context.Context, sem chan struct{}) error {
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessPaper fetches a single paper and persists the result.
// It returns the fetch error when the paper ends up failed.
func (fm *FetchManager) ProcessPaper(ctx context.Context, paper *domain.Paper) error {
	if err := acquire(ctx, fm.slots); err != nil {
		return err
	}
	defer func() { <-fm.slots }()

	hostSem := fm.hostSemaphore(paper.URL)
	if err := acquire(ctx, hostSem); err != nil {
		return err
	}
	defer func() { <-hostSem }()

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, claimed, err := fm.claim(paper, cancel)
	if err != nil {
		if paper.Status == domain.StatusFailed {
			fm.notifier.NotifyPaperFailed(paper)
		}
		return err
	}
	if !claimed {
		return nil
	}

	fm.logs.Fetch().Info("Processing paper",
		zap.String("id", paper.ID),
		zap.String("name", paper.Name),
		zap.String("url", paper.URL))

	outcome := fm.fetcher.Fetch(fetchCtx, req)

	// CancelPaper holds fm.mu while it persists and signals, so the result
	// recorded here always agrees with what it reported
	fm.mu.Lock()
	delete(fm.inflight, paper.ID)
	cancelled := fetchCtx.Err() != nil && ctx.Err() == nil
	switch {
	case cancelled:
		paper.MarkCancelled()
	case outcome.Succeeded():
		paper.MarkCompleted(outcome)
	default:
		paper.MarkFailed(outcome)
	}
	updateErr := fm.repo.Update(paper)
	fm.mu.Unlock()

	if updateErr != nil {
		fm.logs.LogAppError("Failed to update paper status", zap.String("id", paper.ID), zap.Error(updateErr))
	}

	switch {
	case cancelled:
		fm.logs.LogQueueEvent("paper_cancelled", zap.String("id", paper.ID))
		return nil
	case outcome.Succeeded():
		fm.logs.LogFetchEvent("fetch_completed",
			zap.String("id", paper.ID),
			zap.String("path", outcome.Path),
			zap.Int64("bytes", outcome.ByteSize),
			zap.Int("attempts", outcome.Attempts))
		fm.notifier.NotifyPaperCompleted(paper)
		return nil
	}

	fm.logs.LogFetchEvent("fetch_failed",
		zap.String("id", paper.ID),
		zap.String("url", paper.URL),
		zap.String("reason", string(outcome.Reason())),
		zap.Int("attempts", outcome.Attempts),
		zap.Error(outcome.Err))

	fm.notifier.NotifyPaperFailed(paper)
	return outcome.Err
}

// claim moves a still-pending paper to processing and registers its cancel func.
// It reports false when the paper left the queue while waiting for a slot.
func (fm *FetchManager) claim(paper *domain.Paper, cancel context.CancelFunc) (domain.FetchRequest, bool, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	current, err := fm.repo.FindByID(paper.ID)
	if err != nil {
		return domain.FetchRequest{}, false, fmt.Errorf("failed to reload paper: %w", err)
	}
	*paper = *current
	if !paper.IsPending() {
		fm.logs.LogQueueEvent("paper_skipped",
			zap.String("id", paper.ID),
			zap.String("status", string(paper.Status)))
		return domain.FetchRequest{}, false, nil
	}

	dest, err := fm.confine(paper.Destination)
	if err != nil {
		outcome := domain.FetchOutcome{Err: &domain.RequestError{Err: err}}
		paper.MarkFailed(outcome)
		if updateErr := fm.repo.Update(paper); updateErr != nil {
			fm.logs.LogAppError("Failed to update paper status", zap.String("id", paper.ID), zap.Error(updateErr))
		}
		fm.logs.LogFetchEvent("fetch_rejected",
			zap.String("id", paper.ID),
			zap.String("destination", paper.Destination),
			zap.Error(err))
		return domain.FetchRequest{}, false, outcome.Err
	}

	paper.MarkProcessing()
	if err := fm.repo.Update(paper); err != nil {
		return domain.FetchRequest{}, false, fmt.Errorf("failed to update paper status: %w", err)
	}
	fm.inflight[paper.ID] = cancel

	return fm.config.NewRequest(paper.URL, dest), true, nil
}

// confine keeps destinations inside the papers directory
func (fm *FetchManager) confine(dest string) (string, error) {
	return infrastructure.ConfineDestination(fm.config.PapersDir(), dest)
}

// CancelPaper cancels a queued or in-flight paper
func (fm *FetchManager) CancelPaper(id string) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	paper, err := fm.repo.FindByID(id)
	if err != nil {
		return fmt.Errorf("paper not found: %w", err)
	}

	if paper.IsTerminal() || paper.Status == domain.StatusFailed {
		return fmt.Errorf("%w: paper already %s", ErrInvalidState, paper.Status)
	}

	paper.MarkCancelled()
	if err := fm.repo.Update(paper); err != nil {
		return fmt.Errorf("failed to update paper: %w", err)
	}

	cancel, ok := fm.inflight[id]
	if ok {
		cancel()
	}

	fm.logs.LogQueueEvent("paper_cancelled", zap.String("id", id), zap.Bool("in_flight", ok))
	return nil
}

// RetryPaper requeues a failed or cancelled paper
func (fm *FetchManager) RetryPaper(id string) (*domain.Paper, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	paper, err := fm.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("paper not found: %w", err)
	}

	if paper.Status != domain.StatusFailed && paper.Status != domain.StatusCancelled {
		return nil, fmt.Errorf("%w: paper is %s, not failed or cancelled", ErrInvalidState, paper.Status)
	}

	paper.Requeue()
	if err := fm.repo.Update(paper); err != nil {
		return nil, fmt.Errorf("failed to update paper: %w", err)
	}

	fm.logs.LogQueueEvent("paper_requeued", zap.String("id", id), zap.Int("retry_count", paper.RetryCount))
	return paper, nil
}
