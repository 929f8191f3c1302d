// Package store archives finished pipeline runs in a local SQLite database.
// The driver is pure Go, so the archive works without cgo.
package store

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"botforge/pkg/models"
)

// Store wraps the GORM database holding the run archive.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the archive database at path and migrates the
// schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive at %s: %w", path, err)
	}

	if err := db.AutoMigrate(&models.RunRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate run archive: %w", err)
	}

	return &Store{db: db}, nil
}

// Archive inserts or updates the record for a finished run.
func (s *Store) Archive(rec *models.RunRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to archive run %s: %w", rec.ID, err)
	}
	return nil
}

// Get fetches one archived run. Returns gorm.ErrRecordNotFound when the run
// was never archived.
func (s *Store) Get(id string) (*models.RunRecord, error) {
	var rec models.RunRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the most recently finished runs, newest first.
func (s *Store) List(limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []models.RunRecord
	if err := s.db.Order("finished_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
