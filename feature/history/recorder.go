package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultRecentLimit = 20

// Recorder stores run history. A nil Recorder or one without a database is a
// no-op so callers do not need to check whether history is configured.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a recorder. db may be nil.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Enabled reports whether runs are persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.db != nil
}

// Record inserts run, assigning a RunID when empty.
func (r *Recorder) Record(ctx context.Context, run *Run) error {
	if !r.Enabled() {
		return nil
	}
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	if !r.Enabled() {
		return []Run{}, nil
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	var runs []Run
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}
