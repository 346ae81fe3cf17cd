package dto

import (
	"time"

	"ecosort/internal/model"
)

// TriggerResponse is returned to a device once its capture was classified.
// Classification is repeated at the top level for devices that only read that field.
type TriggerResponse struct {
	Status         string         `json:"status"`
	Message        string         `json:"message"`
	Classification model.Category `json:"classification"`
	Data           TriggerData    `json:"data"`
}

type TriggerData struct {
	Classification model.Category `json:"classification"`
	Timestamp      time.Time      `json:"timestamp"`
	Image          *ImageRef      `json:"image"`
}

// ImageRef identifies a stored capture without exposing its path.
type ImageRef struct {
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error"`
}

// NewTriggerResponse builds the success body for a classified capture.
func NewTriggerResponse(result model.ClassificationResult, image model.CapturedImage, now time.Time) TriggerResponse {
	var ref *ImageRef
	if image.Filename != "" {
		ref = &ImageRef{Filename: image.Filename, Timestamp: image.Timestamp}
	}

	return TriggerResponse{
		Status:         "success",
		Message:        "Image captured and processed successfully",
		Classification: result.Data.Classification,
		Data: TriggerData{
			Classification: result.Data.Classification,
			Timestamp:      now.UTC(),
			Image:          ref,
		},
	}
}

// NewCaptureError builds the failure body for a capture that did not complete.
func NewCaptureError(err error) ErrorResponse {
	return ErrorResponse{
		Status:  "error",
		Message: "Failed to capture image",
		Error:   err.Error(),
	}
}
