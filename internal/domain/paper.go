package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaperStatus represents the current status of a queued paper
type PaperStatus string

const (
	StatusQueued     PaperStatus = "queued"
	StatusProcessing PaperStatus = "processing"
	StatusCompleted  PaperStatus = "completed"
	StatusFailed     PaperStatus = "failed"
	StatusCancelled  PaperStatus = "cancelled"
)

// Paper represents a question paper fetch task
type Paper struct {
	ID            string        `json:"id" gorm:"primaryKey"`
	Name          string        `json:"name" gorm:"index"`
	URL           string        `json:"url" gorm:"not null;index"`
	Board         string        `json:"board,omitempty"`
	Subject       string        `json:"subject,omitempty"`
	Year          int           `json:"year,omitempty"`
	Destination   string        `json:"destination" gorm:"not null"`
	Status        PaperStatus   `json:"status" gorm:"not null;index"`
	Priority      int           `json:"priority" gorm:"default:0;index"`
	Attempts      int           `json:"attempts" gorm:"default:0"`
	RetryCount    int           `json:"retry_count" gorm:"default:0"`
	FailureReason FailureReason `json:"failure_reason,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	ByteSize      int64         `json:"byte_size,omitempty"`
	CreatedAt     time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// NewPaper creates a new queued paper task
func NewPaper(url, name, destination string) *Paper {
	p := &Paper{
		ID:          uuid.New().String(),
		Name:        name,
		URL:         url,
		Destination: destination,
		Status:      StatusQueued,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if parsed, err := ParsePaperName(name); err == nil {
		p.Board = parsed.Code
		p.Subject = parsed.Subject
		p.Year = parsed.Year
	}

	return p
}

// MarkProcessing marks the paper as processing
func (p *Paper) MarkProcessing() {
	p.Status = StatusProcessing
	now := time.Now()
	p.StartedAt = &now
	p.UpdatedAt = now
}

// MarkCompleted records a successful fetch outcome
func (p *Paper) MarkCompleted(outcome FetchOutcome) {
	p.Status = StatusCompleted
	p.Destination = outcome.Path
	p.ByteSize = outcome.ByteSize
	p.Attempts += outcome.Attempts
	p.FailureReason = ""
	p.ErrorMessage = ""
	now := time.Now()
	p.CompletedAt = &now
	p.UpdatedAt = now
}

// MarkFailed records a failed fetch outcome
func (p *Paper) MarkFailed(outcome FetchOutcome) {
	p.Status = StatusFailed
	p.Attempts += outcome.Attempts
	p.FailureReason = outcome.Reason()
	if outcome.Err != nil {
		p.ErrorMessage = outcome.Err.Error()
	}
	p.UpdatedAt = time.Now()
}

// MarkCancelled marks the paper as cancelled
func (p *Paper) MarkCancelled() {
	p.Status = StatusCancelled
	p.UpdatedAt = time.Now()
}

// Requeue resets a failed or cancelled paper so the queue picks it up again
func (p *Paper) Requeue() {
	p.Status = StatusQueued
	p.RetryCount++
	p.FailureReason = ""
	p.ErrorMessage = ""
	p.StartedAt = nil
	p.CompletedAt = nil
	p.UpdatedAt = time.Now()
}

// IsTerminal checks if the paper is in a terminal state
func (p *Paper) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusCancelled
}

// IsPending checks if the paper is waiting in the queue
func (p *Paper) IsPending() bool {
	return p.Status == StatusQueued
}

// IsProcessing checks if the paper is currently being fetched
func (p *Paper) IsProcessing() bool {
	return p.Status == StatusProcessing
}

// ActiveStatuses are the statuses that block re-adding the same URL
var ActiveStatuses = []PaperStatus{StatusQueued, StatusProcessing, StatusCompleted}

// ValidateStatus checks if a status filter value is valid
func ValidateStatus(status PaperStatus) bool {
	switch status {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
