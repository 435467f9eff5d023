package domain

import "time"

// FetchRecord is a terminal StatusRecord persisted to history
type FetchRecord struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	URL         string     `json:"url" gorm:"not null"`
	VideoID     string     `json:"video_id" gorm:"index"`
	Quality     Quality    `json:"quality"`
	State       FetchState `json:"state" gorm:"not null;index"`
	Progress    float64    `json:"progress"`
	Title       string     `json:"title,omitempty"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	ErrorKind   ErrorKind  `json:"error_kind,omitempty"`
	FileName    string     `json:"file_name,omitempty"`
	Size        int64      `json:"size,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for GORM
func (FetchRecord) TableName() string {
	return "fetch_history"
}

// NewFetchRecord snapshots a status record for persistence
func NewFetchRecord(r *StatusRecord) *FetchRecord {
	return &FetchRecord{
		ID:          r.ID,
		URL:         r.URL,
		VideoID:     r.VideoID,
		Quality:     r.Quality,
		State:       r.State,
		Progress:    r.Progress,
		Title:       r.Title,
		Error:       r.Error,
		ErrorKind:   r.ErrorKind,
		FileName:    r.FileName,
		Size:        r.Size,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}

// StatusRecord converts the persisted record back into a status view
func (f *FetchRecord) StatusRecord() *StatusRecord {
	r := &StatusRecord{
		ID:          f.ID,
		URL:         f.URL,
		VideoID:     f.VideoID,
		Quality:     f.Quality,
		State:       f.State,
		Progress:    f.Progress,
		Title:       f.Title,
		Error:       f.Error,
		ErrorKind:   f.ErrorKind,
		FileName:    f.FileName,
		Size:        f.Size,
		CreatedAt:   f.CreatedAt,
		CompletedAt: f.CompletedAt,
	}
	if f.CompletedAt != nil {
		r.UpdatedAt = *f.CompletedAt
	} else {
		r.UpdatedAt = f.CreatedAt
	}
	return r
}

// HistoryRepository defines the interface for fetch history persistence
type HistoryRepository interface {
	// Save inserts or updates a record
	Save(record *FetchRecord) error

	// FindByID finds a record by ID, returning ErrNotFound if missing
	FindByID(id string) (*FetchRecord, error)

	// FindRecent returns the newest records first
	FindRecent(limit int) ([]*FetchRecord, error)

	// FindAll finds records with optional column filters
	FindAll(filters map[string]interface{}) ([]*FetchRecord, error)

	// DeleteOlderThan removes records created before cutoff
	DeleteOlderThan(cutoff time.Time) (int64, error)

	// GetStats returns history statistics
	GetStats() (*FetchStats, error)
}

// FetchStats represents fetch history statistics
type FetchStats struct {
	Total      int64            `json:"total"`
	Complete   int64            `json:"complete"`
	Failed     int64            `json:"failed"`
	TotalBytes int64            `json:"total_bytes"`
	ByKind     map[string]int64 `json:"failures_by_kind"`
}
