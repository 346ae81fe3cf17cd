package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ecosort/internal/config"
	"ecosort/internal/logger"
	"ecosort/internal/model"
	"ecosort/internal/service/capture"
	"ecosort/internal/service/websocket"
)

// ErrChannelUnavailable is returned when a capture is triggered while the
// websocket hub is not running.
var ErrChannelUnavailable = errors.New("websocket hub not initialized")

// clientCaptureError is what polling devices see after a failed client-initiated capture.
const clientCaptureError = "Failed to process image"

// Manager coordinates capture triggers between devices, camera clients and
// the processing pipeline.
type Manager struct {
	hub      *websocket.Hub
	pipeline *capture.Pipeline
	timeout  time.Duration
	logger   *logger.Logger
}

func NewManager(hub *websocket.Hub, pipeline *capture.Pipeline, config *config.Config, logger *logger.Logger) *Manager {
	manager := &Manager{
		hub:      hub,
		pipeline: pipeline,
		timeout:  config.CaptureTimeout,
		logger:   logger,
	}
	hub.OnCaptureRequest(manager.handleCaptureRequest)
	return manager
}

// TriggerCapture starts a capture session and waits for its outcome. The
// session keeps running if ctx ends first.
func (m *Manager) TriggerCapture(ctx context.Context) (*capture.Outcome, error) {
	if !m.hub.Ready() {
		return nil, ErrChannelUnavailable
	}

	session := capture.NewSession(m.hub, m.pipeline, m.timeout, m.logger)
	session.Start(context.WithoutCancel(ctx))
	return session.Wait(ctx)
}

// handleCaptureRequest serves a capture_image event: only the requesting
// client is asked for an image.
func (m *Manager) handleCaptureRequest(client *websocket.Client) {
	client.Once(func(dataURI string, from websocket.Responder) {
		go m.processClientCapture(dataURI, from)
	})

	if err := client.Emit(websocket.EventStartCapture, nil); err != nil {
		m.logger.Error("Error sending start_capture to client %s: %v", client.ID(), err)
	}
}

func (m *Manager) processClientCapture(dataURI string, from websocket.Responder) {
	id := uuid.NewString()

	outcome, err := m.pipeline.Process(context.Background(), id, dataURI, from)
	if err != nil {
		m.logger.Error("Client capture %s from %s failed: %v", id, from.ID(), err)
		m.pipeline.Registers().SetError(clientCaptureError)
		m.pipeline.Record(id, model.CaptureRejected, outcome, err)
		return
	}

	m.logger.Info("Client capture %s from %s classified as %s", id, from.ID(), outcome.Result.Data.Classification)
	m.pipeline.Record(id, model.CaptureResolved, outcome, nil)
}

func (m *Manager) GetHub() *websocket.Hub {
	return m.hub
}

func (m *Manager) GetRegisters() *capture.Registers {
	return m.pipeline.Registers()
}
