package domain

import "errors"

// ErrPaperNotFound is returned when a paper ID does not exist
var ErrPaperNotFound = errors.New("paper not found")

// PaperRepository defines the interface for paper persistence
type PaperRepository interface {
	// Create creates a new paper
	Create(paper *Paper) error

	// Update updates an existing paper
	Update(paper *Paper) error

	// Delete deletes a paper by ID
	Delete(id string) error

	// FindByID finds a paper by ID, returning ErrPaperNotFound when missing
	FindByID(id string) (*Paper, error)

	// FindByURL finds the most recent paper for a URL in one of the given statuses.
	// Returns nil when none matches.
	FindByURL(url string, statuses []PaperStatus) (*Paper, error)

	// FindByStatus finds papers by status
	FindByStatus(status PaperStatus) ([]*Paper, error)

	// FindPending finds all queued papers ordered by priority and creation time
	FindPending() ([]*Paper, error)

	// FindAll finds all papers with optional column filters
	FindAll(filters map[string]interface{}) ([]*Paper, error)

	// Count returns the total number of papers
	Count() (int64, error)

	// CountByStatus returns the number of papers in a status
	CountByStatus(status PaperStatus) (int64, error)

	// ResetOrphanedProcessing requeues papers left processing by a previous run
	ResetOrphanedProcessing() (int64, error)

	// GetStats returns queue statistics
	GetStats() (*PaperStats, error)
}

// PaperStats represents queue statistics
type PaperStats struct {
	Total      int64 `json:"total"`
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Bytes      int64 `json:"bytes"`
}
