package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/internal/infrastructure"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

// EntryStatus is the per-entry result of a batch run
type EntryStatus string

const (
	EntryFetched   EntryStatus = "fetched"
	EntryFailed    EntryStatus = "failed"
	EntrySkipped   EntryStatus = "skipped"
	EntryQueued    EntryStatus = "queued"
	EntryDuplicate EntryStatus = "duplicate"
)

// EntryResult records what happened to one catalog entry
type EntryResult struct {
	Name     string               `json:"name"`
	URL      string               `json:"url"`
	Path     string               `json:"path,omitempty"`
	Status   EntryStatus          `json:"status"`
	Reason   domain.FailureReason `json:"reason,omitempty"`
	ByteSize int64                `json:"byte_size,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// BatchReport summarizes a catalog sync or enqueue
type BatchReport struct {
	Total     int           `json:"total"`
	Fetched   int           `json:"fetched"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Queued    int           `json:"queued"`
	Duplicate int           `json:"duplicate"`
	Duration  time.Duration `json:"duration"`
	Results   []EntryResult `json:"results"`
	errs      *multierror.Error
}

// Err returns every per-entry error combined, or nil
func (r *BatchReport) Err() error {
	return r.errs.ErrorOrNil()
}

func (r *BatchReport) record(result EntryResult, err error) {
	r.Results = append(r.Results, result)
	switch result.Status {
	case EntryFetched:
		r.Fetched++
	case EntryFailed:
		r.Failed++
	case EntrySkipped:
		r.Skipped++
	case EntryQueued:
		r.Queued++
	case EntryDuplicate:
		r.Duplicate++
	}
	if err != nil {
		r.errs = multierror.Append(r.errs, fmt.Errorf("%s: %w", result.Name, err))
	}
}

// Syncer mirrors every catalog entry into the papers directory
type Syncer struct {
	fetcher      domain.Fetcher
	queue        *QueueManager
	notifier     *infrastructure.NotificationService
	config       *domain.FetchConfig
	politeDelay  time.Duration
	skipExisting bool
	sleep        infrastructure.SleepFunc
	logs         *logger.LoggerAdapter
}

// NewSyncer creates a syncer; queue may be nil when only Sync is used
func NewSyncer(
	fetcher domain.Fetcher,
	queue *QueueManager,
	notifier *infrastructure.NotificationService,
	config *domain.FetchConfig,
	politeDelay time.Duration,
	logs *logger.LoggerAdapter,
) *Syncer {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	if notifier == nil {
		notifier = infrastructure.NewNotificationService(&domain.NotificationConfig{}, nil)
	}
	return &Syncer{
		fetcher:     fetcher,
		queue:       queue,
		notifier:    notifier,
		config:      config,
		politeDelay: politeDelay,
		sleep:       infrastructure.SleepContext,
		logs:        logs,
	}
}

// SetSkipExisting makes Sync leave destinations that already hold a valid artifact
func (s *Syncer) SetSkipExisting(skip bool) {
	s.skipExisting = skip
}

// Sync fetches every entry in catalog order, waiting the polite delay between fetches.
// One entry failing never stops the batch; cancellation does.
func (s *Syncer) Sync(ctx context.Context, catalog *domain.Catalog) *BatchReport {
	start := time.Now()
	entries := catalog.Entries()
	report := &BatchReport{Total: len(entries)}

	s.logs.LogQueueEvent("sync_started", zap.Int("entries", len(entries)))

	fetchedAny := false
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			report.errs = multierror.Append(report.errs, fmt.Errorf("sync interrupted: %w", err))
			break
		}

		dest, err := infrastructure.ResolveDestination(s.config.PapersDir(), entry.Name)
		if err != nil {
			s.logs.Queue().Warn("Skipping catalog entry", zap.String("name", entry.Name), zap.Error(err))
			report.record(EntryResult{Name: entry.Name, URL: entry.URL, Status: EntrySkipped, Error: err.Error()}, err)
			continue
		}

		if s.skipExisting && s.hasValidArtifact(dest) {
			report.record(EntryResult{Name: entry.Name, URL: entry.URL, Path: dest, Status: EntrySkipped}, nil)
			continue
		}

		if fetchedAny && s.politeDelay > 0 {
			if err := s.sleep(ctx, s.politeDelay); err != nil {
				report.errs = multierror.Append(report.errs, fmt.Errorf("sync interrupted: %w", err))
				break
			}
		}
		fetchedAny = true

		outcome := s.fetcher.Fetch(ctx, s.config.NewRequest(entry.URL, dest))
		if outcome.Succeeded() {
			report.record(EntryResult{
				Name:     entry.Name,
				URL:      entry.URL,
				Path:     outcome.Path,
				Status:   EntryFetched,
				ByteSize: outcome.ByteSize,
			}, nil)
			continue
		}

		report.record(EntryResult{
			Name:   entry.Name,
			URL:    entry.URL,
			Path:   dest,
			Status: EntryFailed,
			Reason: outcome.Reason(),
			Error:  outcome.Err.Error(),
		}, outcome.Err)
	}

	report.Duration = time.Since(start)

	s.logs.LogQueueEvent("sync_finished",
		zap.Int("total", report.Total),
		zap.Int("fetched", report.Fetched),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))
	if err := report.Err(); err != nil {
		s.logs.LogAppError("Catalog sync finished with errors", zap.Error(err))
	}
	s.notifier.NotifySyncFinished(report.Fetched, report.Total)

	return report
}

// Enqueue adds every catalog entry to the paper queue instead of fetching inline
func (s *Syncer) Enqueue(catalog *domain.Catalog) (*BatchReport, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("no queue configured")
	}

	start := time.Now()
	entries := catalog.Entries()
	report := &BatchReport{Total: len(entries)}

	for _, entry := range entries {
		dest, err := infrastructure.ResolveDestination(s.config.PapersDir(), entry.Name)
		if err != nil {
			report.record(EntryResult{Name: entry.Name, URL: entry.URL, Status: EntrySkipped, Error: err.Error()}, err)
			continue
		}

		before, _ := s.queue.repo.FindByURL(entry.URL, domain.ActiveStatuses)
		paper, err := s.queue.AddPaper(entry.URL, entry.Name, dest)
		if err != nil {
			report.record(EntryResult{Name: entry.Name, URL: entry.URL, Path: dest, Status: EntryFailed, Error: err.Error()}, err)
			continue
		}

		status := EntryQueued
		if before != nil && before.ID == paper.ID {
			status = EntryDuplicate
		}
		report.record(EntryResult{Name: entry.Name, URL: entry.URL, Path: dest, Status: status}, nil)
	}

	report.Duration = time.Since(start)
	s.logs.LogQueueEvent("catalog_enqueued",
		zap.Int("total", report.Total),
		zap.Int("queued", report.Queued),
		zap.Int("duplicate", report.Duplicate),
		zap.Int("skipped", report.Skipped))

	return report, nil
}

func (s *Syncer) hasValidArtifact(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() >= s.config.MinSize
}
