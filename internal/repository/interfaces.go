package repository

import (
	"ecosort/internal/dto"
	"ecosort/internal/model"
)

// CaptureRepository defines the interface for capture history operations.
type CaptureRepository interface {
	// Create operations
	Insert(record *model.CaptureRecord) (int64, error)
	InsertBatch(records []model.CaptureRecord) error

	// Read operations
	GetByID(id int64) (*model.CaptureRecord, error)
	GetAll(filter *dto.CaptureFilter) ([]model.CaptureRecord, error)
	GetTotalCount(filter *dto.CaptureFilter) (int, error)
	CountByClassification() (map[model.Category]int, error)

	// Delete operations
	DeleteAll() error
}
