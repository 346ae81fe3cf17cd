package dto

import (
	"time"

	"ecosort/internal/model"
)

// CaptureFilter narrows the capture history listing.
type CaptureFilter struct {
	Classification model.Category
	Status         string
	After          time.Time
	Before         time.Time
	Limit          int
	Offset         int
}
