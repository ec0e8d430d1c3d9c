package infrastructure

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/qpaper-go/internal/domain"
)

// SQLitePaperRepository implements PaperRepository using SQLite
type SQLitePaperRepository struct {
	db *gorm.DB
}

// NewSQLitePaperRepository creates a new SQLite repository
func NewSQLitePaperRepository(dbPath string) (*SQLitePaperRepository, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Paper{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLitePaperRepository{db: db}, nil
}

// Create creates a new paper
func (r *SQLitePaperRepository) Create(paper *domain.Paper) error {
	return r.db.Create(paper).Error
}

// Update updates an existing paper
func (r *SQLitePaperRepository) Update(paper *domain.Paper) error {
	return r.db.Save(paper).Error
}

// Delete deletes a paper by ID
func (r *SQLitePaperRepository) Delete(id string) error {
	result := r.db.Delete(&domain.Paper{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrPaperNotFound
	}
	return nil
}

// FindByID finds a paper by ID
func (r *SQLitePaperRepository) FindByID(id string) (*domain.Paper, error) {
	var paper domain.Paper
	err := r.db.First(&paper, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaperNotFound
		}
		return nil, err
	}
	return &paper, nil
}

// FindByURL returns the most recent paper for url whose status is one of statuses, or nil
func (r *SQLitePaperRepository) FindByURL(url string, statuses []domain.PaperStatus) (*domain.Paper, error) {
	var paper domain.Paper
	err := r.db.Where("url = ? AND status IN ?", url, statuses).
		Order("created_at DESC").
		First(&paper).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &paper, nil
}

// FindByStatus finds papers by status
func (r *SQLitePaperRepository) FindByStatus(status domain.PaperStatus) ([]*domain.Paper, error) {
	var papers []*domain.Paper
	err := r.db.Where("status = ?", status).Find(&papers).Error
	return papers, err
}

// FindPending finds all queued papers ordered by priority and creation time
func (r *SQLitePaperRepository) FindPending() ([]*domain.Paper, error) {
	var papers []*domain.Paper
	err := r.db.Where("status = ?", domain.StatusQueued).
		Order("priority DESC, created_at ASC").
		Find(&papers).Error
	return papers, err
}

// FindAll finds all papers with optional filters
func (r *SQLitePaperRepository) FindAll(filters map[string]interface{}) ([]*domain.Paper, error) {
	var papers []*domain.Paper
	query := r.db

	for key, value := range filters {
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&papers).Error
	return papers, err
}

// Count returns the total number of papers
func (r *SQLitePaperRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Paper{}).Count(&count).Error
	return count, err
}

// CountByStatus returns the number of papers by status
func (r *SQLitePaperRepository) CountByStatus(status domain.PaperStatus) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Paper{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// ResetOrphanedProcessing requeues papers a previous run left in processing
func (r *SQLitePaperRepository) ResetOrphanedProcessing() (int64, error) {
	result := r.db.Model(&domain.Paper{}).
		Where("status = ?", domain.StatusProcessing).
		Updates(map[string]interface{}{
			"status":     domain.StatusQueued,
			"started_at": nil,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// GetStats returns queue statistics
func (r *SQLitePaperRepository) GetStats() (*domain.PaperStats, error) {
	stats := &domain.PaperStats{}

	if err := r.db.Model(&domain.Paper{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	statusCounts := []struct {
		Status domain.PaperStatus
		Count  int64
	}{}

	if err := r.db.Model(&domain.Paper{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return nil, err
	}

	for _, sc := range statusCounts {
		switch sc.Status {
		case domain.StatusQueued:
			stats.Queued = sc.Count
		case domain.StatusProcessing:
			stats.Processing = sc.Count
		case domain.StatusCompleted:
			stats.Completed = sc.Count
		case domain.StatusFailed:
			stats.Failed = sc.Count
		case domain.StatusCancelled:
			stats.Cancelled = sc.Count
		}
	}

	if err := r.db.Model(&domain.Paper{}).
		Where("status = ?", domain.StatusCompleted).
		Select("COALESCE(SUM(byte_size), 0)").
		Scan(&stats.Bytes).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// Close closes the database connection
func (r *SQLitePaperRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
