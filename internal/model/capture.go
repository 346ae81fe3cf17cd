package model

import "time"

// CapturedImage references an image written by the image store.
type CapturedImage struct {
	Timestamp  string    `json:"timestamp"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	CapturedAt time.Time `json:"capturedAt"`
}

// CaptureRecord represents a capture history row.
type CaptureRecord struct {
	ID             int64     `json:"id"`
	SessionID      string    `json:"sessionId"`
	ClientID       string    `json:"clientId"`
	Filename       string    `json:"filename"`
	FilePath       string    `json:"filepath"`
	Classification Category  `json:"classification"`
	Confidence     float64   `json:"confidence"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	CapturedAt     time.Time `json:"capturedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Capture record statuses. They mirror the terminal states of a capture.
const (
	CaptureResolved = "resolved"
	CaptureRejected = "rejected"
	CaptureTimedOut = "timed_out"
)
