package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

// QueueManager manages the paper queue
type QueueManager struct {
	repo     domain.PaperRepository
	fetchMgr *FetchManager
	config   *domain.QueueConfig
	logs     *logger.LoggerAdapter
	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	exitChan chan struct{}
	workerWg sync.WaitGroup

	dispatched map[string]struct{} // papers handed to a worker and not yet finished
	dispatchMu sync.Mutex
}

// NewQueueManager creates a new queue manager
func NewQueueManager(
	repo domain.PaperRepository,
	fetchMgr *FetchManager,
	config *domain.QueueConfig,
	logs *logger.LoggerAdapter,
) *QueueManager {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	return &QueueManager{
		repo:       repo,
		fetchMgr:   fetchMgr,
		config:     config,
		logs:       logs,
		stopChan:   make(chan struct{}),
		exitChan:   make(chan struct{}),
		dispatched: make(map[string]struct{}),
	}
}

// Start starts the queue processor
func (qm *QueueManager) Start(ctx context.Context) error {
	qm.mu.Lock()
	if qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager already running")
	}
	qm.running = true
	qm.mu.Unlock()

	if n, err := qm.repo.ResetOrphanedProcessing(); err != nil {
		qm.logs.LogAppError("Failed to reset orphaned papers", zap.Error(err))
	} else if n > 0 {
		qm.logs.LogQueueEvent("orphaned_papers_requeued", zap.Int64("count", n))
	}

	qm.logs.LogQueueEvent("queue_started")

	qm.workerWg.Add(1)
	go qm.processQueue(ctx)

	return nil
}

// Stop stops the queue processor and waits for in-flight papers
func (qm *QueueManager) Stop() error {
	qm.mu.Lock()
	if !qm.running {
		qm.mu.Unlock()
		return fmt.Errorf("queue manager not running")
	}
	qm.running = false
	qm.mu.Unlock()

	qm.logs.LogQueueEvent("queue_stopped")
	close(qm.stopChan)
	qm.workerWg.Wait()

	return nil
}

// IsRunning returns whether the queue manager is running
func (qm *QueueManager) IsRunning() bool {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.running
}

// WaitForExit returns a channel closed when the processor exits on an empty queue
func (qm *QueueManager) WaitForExit() <-chan struct{} {
	return qm.exitChan
}

// AddPaper adds a paper to the queue, returning the existing record when the URL
// is already queued, in progress, or completed with its file still on disk.
// The destination is resolved inside the papers directory.
func (qm *QueueManager) AddPaper(rawURL, name, destination string) (*domain.Paper, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if destination == "" {
		return nil, fmt.Errorf("destination is required")
	}
	if qm.fetchMgr != nil {
		confined, err := qm.fetchMgr.confine(destination)
		if err != nil {
			return nil, err
		}
		destination = confined
	}

	existing, err := qm.repo.FindByURL(rawURL, domain.ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing papers: %w", err)
	}
	if existing != nil && qm.stillValid(existing) {
		qm.logs.LogQueueEvent("paper_duplicate",
			zap.String("id", existing.ID),
			zap.String("url", rawURL),
			zap.String("status", string(existing.Status)))
		return existing, nil
	}

	paper := domain.NewPaper(rawURL, name, destination)
	if err := qm.repo.Create(paper); err != nil {
		return nil, fmt.Errorf("failed to create paper: %w", err)
	}

	qm.logs.LogQueueEvent("paper_added",
		zap.String("id", paper.ID),
		zap.String("name", name),
		zap.String("url", rawURL),
		zap.String("destination", destination))

	if qm.fetchMgr != nil {
		qm.fetchMgr.notifier.NotifyPaperQueued(paper)
	}

	return paper, nil
}

// stillValid reports whether an existing record makes a new one redundant
func (qm *QueueManager) stillValid(paper *domain.Paper) bool {
	if paper.Status != domain.StatusCompleted {
		return true
	}
	info, err := os.Stat(paper.Destination)
	return err == nil && !info.IsDir()
}

// GetPaper retrieves a paper by ID
func (qm *QueueManager) GetPaper(id string) (*domain.Paper, error) {
	return qm.repo.FindByID(id)
}

// ListPapers lists all papers with optional filters
func (qm *QueueManager) ListPapers(filters map[string]interface{}) ([]*domain.Paper, error) {
	return qm.repo.FindAll(filters)
}

// DeletePaper removes a paper record; in-flight papers must be cancelled first
func (qm *QueueManager) DeletePaper(id string) error {
	paper, err := qm.repo.FindByID(id)
	if err != nil {
		return err
	}
	if paper.IsProcessing() {
		return fmt.Errorf("%w: paper is processing", ErrInvalidState)
	}
	if err := qm.repo.Delete(id); err != nil {
		return err
	}
	qm.logs.LogQueueEvent("paper_deleted", zap.String("id", id))
	return nil
}

// GetStats returns queue statistics
func (qm *QueueManager) GetStats() (*domain.PaperStats, error) {
	return qm.repo.GetStats()
}

// processQueue dispatches pending papers on every tick
func (qm *QueueManager) processQueue(ctx context.Context) {
	defer qm.workerWg.Done()

	ticker := time.NewTicker(qm.config.CheckInterval)
	defer ticker.Stop()

	emptyStartTime := time.Time{}

	for {
		select {
		case <-ctx.Done():
			qm.logs.LogQueueEvent("queue_processor_stopped", zap.String("reason", "context_cancelled"))
			return
		case <-qm.stopChan:
			qm.logs.LogQueueEvent("queue_processor_stopped", zap.String("reason", "stop_signal"))
			return
		case <-ticker.C:
			pending, err := qm.repo.FindPending()
			if err != nil {
				qm.logs.LogAppError("Failed to fetch pending papers", zap.Error(err))
				continue
			}

			if len(pending) == 0 && qm.inFlight() == 0 {
				if emptyStartTime.IsZero() {
					emptyStartTime = time.Now()
					qm.logs.LogQueueEvent("queue_empty")
					if qm.fetchMgr != nil {
						qm.fetchMgr.notifier.NotifyQueueEmpty()
					}
				} else if qm.config.AutoExitOnEmpty && time.Since(emptyStartTime) > qm.config.EmptyWaitTime {
					qm.logs.LogQueueEvent("queue_auto_exit", zap.String("reason", "empty_timeout"))
					close(qm.exitChan)
					return
				}
				continue
			}

			emptyStartTime = time.Time{}

			for _, paper := range pending {
				if !qm.markDispatched(paper.ID) {
					continue
				}

				qm.logs.LogQueueEvent("paper_dispatched",
					zap.String("id", paper.ID),
					zap.String("url", paper.URL))

				// FetchManager's semaphores bound the actual concurrency
				qm.workerWg.Add(1)
				go func(paper *domain.Paper) {
					defer qm.workerWg.Done()
					defer qm.clearDispatched(paper.ID)

					if err := qm.fetchMgr.ProcessPaper(ctx, paper); err != nil {
						qm.logs.LogQueueEvent("paper_failed",
							zap.String("id", paper.ID),
							zap.Error(err))
						qm.logs.LogAppError("Failed to process paper",
							zap.String("id", paper.ID),
							zap.Error(err))
						return
					}
					qm.logs.LogQueueEvent("paper_finished",
						zap.String("id", paper.ID),
						zap.String("status", string(paper.Status)),
						zap.String("path", paper.Destination))
				}(paper)
			}
		}
	}
}

func (qm *QueueManager) markDispatched(id string) bool {
	qm.dispatchMu.Lock()
	defer qm.dispatchMu.Unlock()
	if _, ok := qm.dispatched[id]; ok {
		return false
	}
	qm.dispatched[id] = struct{}{}
	return true
}

func (qm *QueueManager) clearDispatched(id string) {
	qm.dispatchMu.Lock()
	defer qm.dispatchMu.Unlock()
	delete(qm.dispatched, id)
}

func (qm *QueueManager) inFlight() int {
	qm.dispatchMu.Lock()
	defer qm.dispatchMu.Unlock()
	return len(qm.dispatched)
}
