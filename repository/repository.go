// Package repository buffers telemetry readings on the local file system
// (SQLite) until they have been uploaded to the time-series database, so a
// flaky uplink does not lose samples.
package repository

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func New(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	err = db.AutoMigrate(&StoredReading{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) AddReading(reading StoredReading) error {
	result := r.db.Create(&reading)
	return result.Error
}

// GetReadings returns up to limit buffered readings. With fresh=true only
// readings that have never failed an upload are returned, otherwise only
// readings with at least one failed attempt.
func (r *Repository) GetReadings(limit int, fresh bool) ([]StoredReading, error) {
	var readings []StoredReading

	query := r.db.Limit(limit).Order("upload_attempt_count asc, time desc")
	if fresh {
		query = query.Where("upload_attempt_count = ?", 0)
	} else {
		query = query.Where("upload_attempt_count > ?", 0)
	}
	result := query.Find(&readings)
	if result.Error != nil {
		return nil, result.Error
	}
	return readings, nil
}

func (r *Repository) DeleteReadings(readings []StoredReading) error {
	result := r.db.Delete(&readings)
	return result.Error
}

func (r *Repository) IncrementUploadAttemptCount(readings []StoredReading) error {
	ids := make([]interface{}, 0, len(readings))
	for _, reading := range readings {
		ids = append(ids, reading.ID)
	}
	result := r.db.Model(&StoredReading{}).
		Where("id IN ?", ids).
		UpdateColumn("upload_attempt_count", gorm.Expr("upload_attempt_count + 1"))
	return result.Error
}
