package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

// filterColumns are the columns FindAll accepts as filters
var filterColumns = map[string]bool{
	"state":      true,
	"quality":    true,
	"video_id":   true,
	"error_kind": true,
	"url":        true,
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (creating if needed) the history database
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.FetchRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Save inserts a record or overwrites the stored one with the same ID
func (r *SQLiteHistoryRepository) Save(record *domain.FetchRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(record).Error
}

// FindByID finds a record by ID
func (r *SQLiteHistoryRepository) FindByID(id string) (*domain.FetchRecord, error) {
	var record domain.FetchRecord
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fetch %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}

// FindRecent returns up to limit records, newest first. A non-positive limit returns everything.
func (r *SQLiteHistoryRepository) FindRecent(limit int) ([]*domain.FetchRecord, error) {
	var records []*domain.FetchRecord
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// FindAll finds records matching every filter, newest first
func (r *SQLiteHistoryRepository) FindAll(filters map[string]interface{}) ([]*domain.FetchRecord, error) {
	var records []*domain.FetchRecord
	query := r.db

	for key, value := range filters {
		if !filterColumns[key] {
			return nil, fmt.Errorf("unsupported filter: %s", key)
		}
		query = query.Where(fmt.Sprintf("%s = ?", key), value)
	}

	err := query.Order("created_at DESC").Find(&records).Error
	return records, err
}

// DeleteOlderThan removes records created before cutoff
func (r *SQLiteHistoryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", cutoff).Delete(&domain.FetchRecord{})
	return result.RowsAffected, result.Error
}

// GetStats returns history statistics
func (r *SQLiteHistoryRepository) GetStats() (*domain.FetchStats, error) {
	stats := &domain.FetchStats{ByKind: make(map[string]int64)}

	if err := r.db.Model(&domain.FetchRecord{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}

	stateCounts := []struct {
		State domain.FetchState
		Count int64
	}{}
	if err := r.db.Model(&domain.FetchRecord{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&stateCounts).Error; err != nil {
		return nil, err
	}
	for _, sc := range stateCounts {
		switch sc.State {
		case domain.StateComplete:
			stats.Complete = sc.Count
		case domain.StateFailed:
			stats.Failed = sc.Count
		}
	}

	kindCounts := []struct {
		ErrorKind string
		Count     int64
	}{}
	if err := r.db.Model(&domain.FetchRecord{}).
		Select("error_kind, count(*) as count").
		Where("state = ?", domain.StateFailed).
		Group("error_kind").
		Scan(&kindCounts).Error; err != nil {
		return nil, err
	}
	for _, kc := range kindCounts {
		kind := kc.ErrorKind
		if kind == "" {
			kind = "unclassified"
		}
		stats.ByKind[kind] += kc.Count
	}

	var totalBytes struct{ Total int64 }
	if err := r.db.Model(&domain.FetchRecord{}).
		Select("COALESCE(SUM(size), 0) as total").
		Where("state = ?", domain.StateComplete).
		Scan(&totalBytes).Error; err != nil {
		return nil, err
	}
	stats.TotalBytes = totalBytes.Total

	return stats, nil
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
