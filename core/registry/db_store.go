package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

const dbInsertBatchSize = 1000

// Entry is one registry row in the database backend.
type Entry struct {
	ID        uint   `gorm:"column:id;primaryKey"`
	Version   string `gorm:"column:version;size:64;uniqueIndex:idx_registry_label_path"`
	Branch    string `gorm:"column:branch;size:64;uniqueIndex:idx_registry_label_path"`
	Path      string `gorm:"column:path;size:512;uniqueIndex:idx_registry_label_path"`
	Extension string `gorm:"column:extension;size:32"`
	Size      uint64 `gorm:"column:size"`
}

// TableName overrides the table name.
func (Entry) TableName() string {
	return "registry_entries"
}

// LabelRow marks a label as saved, including when it has no entries.
type LabelRow struct {
	ID      uint      `gorm:"column:id;primaryKey"`
	Version string    `gorm:"column:version;size:64;uniqueIndex:idx_registry_label"`
	Branch  string    `gorm:"column:branch;size:64;uniqueIndex:idx_registry_label"`
	Entries int       `gorm:"column:entries"`
	SavedAt time.Time `gorm:"column:saved_at"`
}

// TableName overrides the table name.
func (LabelRow) TableName() string {
	return "registry_labels"
}

// DBStore keeps registries in a single table keyed by label. A label that was
// never written reads as ErrNotFound; one saved without entries reads as an
// empty map.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore creates a database-backed store.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

// Read loads all rows for label.
func (s *DBStore) Read(ctx context.Context, label Label) (map[string]AssetRecord, error) {
	db := s.db.WithContext(ctx)

	var labels []LabelRow
	err := db.Where("version = ? AND branch = ?", label.Version, label.Branch).
		Find(&labels).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", label, err)
	}
	if len(labels) == 0 {
		return nil, ErrNotFound
	}

	var rows []Entry
	err = db.Where("version = ? AND branch = ?", label.Version, label.Branch).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read registry %s: %w", label, err)
	}

	entries := make(map[string]AssetRecord, len(rows))
	for _, row := range rows {
		entries[row.Path] = AssetRecord{Extension: row.Extension, Size: row.Size}
	}
	return entries, nil
}

// Write replaces every row of label and its label row in one transaction.
func (s *DBStore) Write(ctx context.Context, label Label, entries map[string]AssetRecord) error {
	rows := make([]Entry, 0, len(entries))
	for p, rec := range entries {
		rows = append(rows, Entry{
			Version:   label.Version,
			Branch:    label.Branch,
			Path:      p,
			Extension: rec.Extension,
			Size:      rec.Size,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Path < rows[j].Path })

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("version = ? AND branch = ?", label.Version, label.Branch).Delete(&Entry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("version = ? AND branch = ?", label.Version, label.Branch).Delete(&LabelRow{}).Error; err != nil {
			return err
		}
		head := LabelRow{
			Version: label.Version,
			Branch:  label.Branch,
			Entries: len(rows),
			SavedAt: time.Now(),
		}
		if err := tx.Create(&head).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, dbInsertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to write registry %s: %w", label, err)
	}
	return nil
}
