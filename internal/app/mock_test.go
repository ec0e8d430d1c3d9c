package app

import (
	"context"
	"sort"
	"sync"

	"github.com/yourusername/qpaper-go/internal/domain"
)

// mockRepo implements domain.PaperRepository for testing.
// It stores copies so callers never share records, like a real database.
type mockRepo struct {
	mu     sync.Mutex
	papers []*domain.Paper
}

func newMockRepo() *mockRepo {
	return &mockRepo{papers: make([]*domain.Paper, 0)}
}

func (m *mockRepo) Create(paper *domain.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *paper
	m.papers = append(m.papers, &cp)
	return nil
}

func (m *mockRepo) Update(paper *domain.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.papers {
		if p.ID == paper.ID {
			cp := *paper
			m.papers[i] = &cp
			return nil
		}
	}
	return domain.ErrPaperNotFound
}

func (m *mockRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.papers {
		if p.ID == id {
			m.papers = append(m.papers[:i], m.papers[i+1:]...)
			return nil
		}
	}
	return domain.ErrPaperNotFound
}

func (m *mockRepo) FindByID(id string) (*domain.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.papers {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrPaperNotFound
}

func (m *mockRepo) FindByURL(url string, statuses []domain.PaperStatus) (*domain.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.papers) - 1; i >= 0; i-- {
		p := m.papers[i]
		if p.URL == url {
			for _, s := range statuses {
				if p.Status == s {
					cp := *p
					return &cp, nil
				}
			}
		}
	}
	return nil, nil
}

func (m *mockRepo) FindByStatus(status domain.PaperStatus) ([]*domain.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Paper
	for _, p := range m.papers {
		if p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) FindPending() ([]*domain.Paper, error) {
	pending, _ := m.FindByStatus(domain.StatusQueued)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Priority > pending[j].Priority })
	return pending, nil
}

func (m *mockRepo) FindAll(filters map[string]interface{}) ([]*domain.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Paper
	for _, p := range m.papers {
		if status, ok := filters["status"]; ok && string(p.Status) != status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockRepo) Count() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.papers)), nil
}

func (m *mockRepo) CountByStatus(status domain.PaperStatus) (int64, error) {
	papers, _ := m.FindByStatus(status)
	return int64(len(papers)), nil
}

func (m *mockRepo) ResetOrphanedProcessing() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.papers {
		if p.Status == domain.StatusProcessing {
			p.Status = domain.StatusQueued
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) GetStats() (*domain.PaperStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.PaperStats{Total: int64(len(m.papers))}
	for _, p := range m.papers {
		switch p.Status {
		case domain.StatusQueued:
			stats.Queued++
		case domain.StatusProcessing:
			stats.Processing++
		case domain.StatusCompleted:
			stats.Completed++
			stats.Bytes += p.ByteSize
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (m *mockRepo) status(id string) domain.PaperStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.papers {
		if p.ID == id {
			return p.Status
		}
	}
	return ""
}

// mockFetcher records requests and answers with a configurable outcome
type mockFetcher struct {
	mu       sync.Mutex
	requests []domain.FetchRequest
	respond  func(ctx context.Context, req domain.FetchRequest) domain.FetchOutcome
}

func (m *mockFetcher) Fetch(ctx context.Context, req domain.FetchRequest) domain.FetchOutcome {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.respond == nil {
		return domain.FetchOutcome{Path: req.Destination, ByteSize: 4096, Attempts: 1}
	}
	return m.respond(ctx, req)
}

func (m *mockFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockRepo) get(id string) *domain.Paper {
	p, err := m.FindByID(id)
	if err != nil {
		return nil
	}
	return p
}
