package model

import "time"

// Category is one of the three bins an item can be sorted into.
type Category string

const (
	CategoryRecycle Category = "recycle"
	CategoryWaste   Category = "waste"
	CategoryMix     Category = "mix"
)

// Categories lists the bins in the order they are matched against model output.
var Categories = []Category{CategoryRecycle, CategoryWaste, CategoryMix}

// Status describes the state of a classification.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Detection is a single label produced by the classifier.
type Detection struct {
	Label      Category `json:"label"`
	Confidence float64  `json:"confidence"`
}

// ClassificationData is the payload part of a ClassificationResult.
type ClassificationData struct {
	Timestamp      time.Time   `json:"timestamp"`
	Detections     []Detection `json:"detections"`
	Classification Category    `json:"classification"`
}

// ClassificationResult is what the classifier returns for one image.
// It is also sent to the capturing client as the processing_result event.
type ClassificationResult struct {
	Status  Status             `json:"status"`
	Message string             `json:"message,omitempty"`
	Data    ClassificationData `json:"data"`
}

// Confidence returns the confidence of the first detection, or 0 if there is none.
func (r ClassificationResult) Confidence() float64 {
	if len(r.Data.Detections) == 0 {
		return 0
	}
	return r.Data.Detections[0].Confidence
}

// LatestClassification is the value exposed to polling devices.
type LatestClassification struct {
	Status         Status    `json:"status"`
	Classification Category  `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
	ImagePath      string    `json:"imagePath,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// PendingClassification is the placeholder set when a new capture starts.
func PendingClassification(now time.Time) LatestClassification {
	return LatestClassification{
		Status:    StatusPending,
		Timestamp: now,
	}
}
