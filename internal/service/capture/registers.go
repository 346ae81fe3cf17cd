package capture

import (
	"sync/atomic"
	"time"

	"ecosort/internal/model"
)

// Registers hold the latest classification and the latest captured image.
// Values are immutable snapshots swapped atomically; the last write wins.
type Registers struct {
	classification atomic.Pointer[model.LatestClassification]
	image          atomic.Pointer[model.CapturedImage]
	now            func() time.Time
}

func NewRegisters() *Registers {
	r := &Registers{now: time.Now}
	r.Reset()
	return r
}

// Reset puts the classification back to pending and forgets the latest image.
func (r *Registers) Reset() {
	pending := model.PendingClassification(r.now().UTC())
	r.classification.Store(&pending)
	r.image.Store(nil)
}

func (r *Registers) Classification() model.LatestClassification {
	return *r.classification.Load()
}

func (r *Registers) SetClassification(result model.ClassificationResult, imagePath string) {
	category := result.Data.Classification
	if category == "" {
		category = model.CategoryMix
	}
	r.classification.Store(&model.LatestClassification{
		Status:         model.StatusSuccess,
		Classification: category,
		Timestamp:      r.now().UTC(),
		ImagePath:      imagePath,
	})
}

// SetError records a failed client-initiated capture.
func (r *Registers) SetError(message string) {
	r.classification.Store(&model.LatestClassification{
		Status:    model.StatusError,
		Timestamp: r.now().UTC(),
		Error:     message,
	})
}

// Image returns the latest captured image, if any.
func (r *Registers) Image() (model.CapturedImage, bool) {
	img := r.image.Load()
	if img == nil {
		return model.CapturedImage{}, false
	}
	return *img, true
}

func (r *Registers) SetImage(img model.CapturedImage) {
	r.image.Store(&img)
}
