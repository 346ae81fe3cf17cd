package dto

import (
	"time"

	"ecosort/internal/model"
)

// ArduinoTestResponse answers the device connectivity check.
type ArduinoTestResponse struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	Classification model.Category `json:"classification"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Clients   int       `json:"clients"`
	Timestamp time.Time `json:"timestamp"`
}

// CapturesData is a paginated capture history payload.
type CapturesData struct {
	Captures []model.CaptureRecord  `json:"captures"`
	Total    int                    `json:"total"`
	Counts   map[model.Category]int `json:"counts"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}
