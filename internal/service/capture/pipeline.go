package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecosort/internal/logger"
	"ecosort/internal/model"
	"ecosort/internal/service/storage"
	"ecosort/internal/service/websocket"
)

// ErrClassification is returned when the classifier reports an error status.
var ErrClassification = errors.New("failed to classify image")

const archiveTimeout = 30 * time.Second

// ImageSaver persists a data URI as a capture file.
type ImageSaver interface {
	SaveCapture(dataURI string, capturedAt time.Time) (model.CapturedImage, error)
}

// Classifier sorts a stored image into a bin.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) model.ClassificationResult
}

// Recorder keeps the capture history.
type Recorder interface {
	Record(record model.CaptureRecord)
}

// Outcome is what a finished capture produced.
type Outcome struct {
	SessionID string
	ClientID  string
	Result    model.ClassificationResult
	Image     model.CapturedImage
}

// Pipeline stores an incoming image, classifies it and publishes the result
// to the registers and the capturing client.
type Pipeline struct {
	store      ImageSaver
	classifier Classifier
	registers  *Registers
	archiver   storage.Archiver
	recorder   Recorder
	logger     *logger.Logger
	now        func() time.Time
}

// NewPipeline wires a pipeline. archiver and recorder are optional.
func NewPipeline(store ImageSaver, classifier Classifier, registers *Registers, archiver storage.Archiver, recorder Recorder, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		classifier: classifier,
		registers:  registers,
		archiver:   archiver,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

func (p *Pipeline) Registers() *Registers {
	return p.registers
}

// Process runs one image through storage and classification. The client is
// told about the result with processing_result, or with error on failure.
func (p *Pipeline) Process(ctx context.Context, sessionID, dataURI string, from websocket.Responder) (*Outcome, error) {
	outcome := &Outcome{SessionID: sessionID, ClientID: from.ID()}

	img, err := p.store.SaveCapture(dataURI, p.now())
	if err != nil {
		p.notifyError(from, err)
		return outcome, fmt.Errorf("failed to save captured image: %w", err)
	}
	outcome.Image = img
	p.registers.SetImage(img)
	p.logger.Info("Session %s: saved image from client %s to %s", sessionID, from.ID(), img.Path)

	p.archive(img.Path)

	result := p.classifier.Classify(ctx, img.Path)
	outcome.Result = result
	if result.Status != model.StatusSuccess {
		p.logger.Error("Session %s: classification failed: %s", sessionID, result.Message)
		p.notifyError(from, ErrClassification)
		return outcome, fmt.Errorf("%w: %s", ErrClassification, result.Message)
	}

	p.registers.SetClassification(result, img.Path)

	if err := from.Emit(websocket.EventProcessingResult, result); err != nil {
		p.logger.Warning("Session %s: failed to send result to client %s: %v", sessionID, from.ID(), err)
	}
	return outcome, nil
}

func (p *Pipeline) notifyError(to websocket.Responder, err error) {
	payload := map[string]string{"message": err.Error()}
	if emitErr := to.Emit(websocket.EventError, payload); emitErr != nil {
		p.logger.Warning("Failed to send error to client %s: %v", to.ID(), emitErr)
	}
}

func (p *Pipeline) archive(path string) {
	if p.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := p.archiver.Archive(ctx, path); err != nil {
			p.logger.Warning("Failed to archive %s: %v", path, err)
		}
	}()
}

// Record adds a finished capture to the history. outcome may be nil.
func (p *Pipeline) Record(sessionID, status string, outcome *Outcome, err error) {
	if p.recorder == nil {
		return
	}

	record := model.CaptureRecord{
		SessionID: sessionID,
		Status:    status,
		CreatedAt: p.now().UTC(),
	}
	if outcome != nil {
		record.ClientID = outcome.ClientID
		record.Filename = outcome.Image.Filename
		record.FilePath = outcome.Image.Path
		record.CapturedAt = outcome.Image.CapturedAt
		record.Classification = outcome.Result.Data.Classification
		record.Confidence = outcome.Result.Confidence()
	}
	if err != nil {
		record.Error = err.Error()
	}

	p.recorder.Record(record)
}
