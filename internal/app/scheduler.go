package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

// CatalogLoader returns the catalog a scheduled run should process
type CatalogLoader func() (*domain.Catalog, error)

// Scheduler runs catalog syncs on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
	syncer  *Syncer
	load    CatalogLoader
	logs    *logger.LoggerAdapter

	mu      sync.Mutex
	ctx     context.Context
	last    *BatchReport
	started bool
}

// NewScheduler parses schedule (standard cron fields or descriptors such as @daily)
func NewScheduler(schedule string, syncer *Syncer, load CatalogLoader, logs *logger.LoggerAdapter) (*Scheduler, error) {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}

	s := &Scheduler{
		syncer: syncer,
		load:   load,
		logs:   logs,
		ctx:    context.Background(),
	}

	c := cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(cronLogger{logs.Queue()}),
		cron.WithChain(cron.Recover(cronLogger{logs.Error()}), cron.SkipIfStillRunning(cronLogger{logs.Queue()})),
	)

	id, err := c.AddFunc(schedule, s.run)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.cron = c
	s.entryID = id
	return s, nil
}

// Start begins running scheduled syncs until ctx is done or Stop is called
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx = ctx
	s.started = true
	s.cron.Start()

	s.logs.LogQueueEvent("scheduler_started", zap.Time("next_run", s.Next()))
}

// Stop stops the scheduler and waits for a running sync to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logs.LogQueueEvent("scheduler_stopped")
}

// Next returns the time of the next scheduled run
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// LastReport returns the report of the most recent run, or nil
func (s *Scheduler) LastReport() *BatchReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logs.LogAppError("Scheduled catalog sync failed", zap.Error(err))
	}
}

// RunOnce loads the catalog and processes it immediately.
// With a queue the entries are enqueued, otherwise they are fetched inline.
func (s *Scheduler) RunOnce(ctx context.Context) (*BatchReport, error) {
	catalog, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	var report *BatchReport
	if s.syncer.queue != nil {
		report, err = s.syncer.Enqueue(catalog)
		if err != nil {
			return nil, err
		}
	} else {
		report = s.syncer.Sync(ctx, catalog)
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, nil
}

// cronLogger routes cron's key/value logging to zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
