package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"ecosort/internal/dto"
	"ecosort/internal/logger"
	"ecosort/internal/model"
	"ecosort/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	w.Write(data)
}

// TriggerCaptureHandler asks the camera clients for an image and answers with
// its classification once available.
func TriggerCaptureHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info("Capture triggered from %s", r.RemoteAddr)

		outcome, err := manager.TriggerCapture(r.Context())
		if errors.Is(err, service.ErrChannelUnavailable) {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Status: "error", Error: err.Error()})
			return
		}
		if err != nil {
			logger.Error("Error in capture process: %v", err)
			writeJSON(w, http.StatusInternalServerError, dto.NewCaptureError(err))
			return
		}

		writeJSON(w, http.StatusOK, dto.NewTriggerResponse(outcome.Result, outcome.Image, time.Now()))
	}
}

// ClassificationResultHandler returns the latest classification for polling devices.
func ClassificationResultHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, manager.GetRegisters().Classification())
	}
}

// LatestImageHandler serves the most recently captured image.
func LatestImageHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, ok := manager.GetRegisters().Image()
		if !ok {
			noImage(w)
			return
		}

		data, err := os.ReadFile(img.Path)
		if err != nil {
			logger.Warning("Latest image %s unavailable: %v", img.Path, err)
			noImage(w)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}

func noImage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte("No image available"))
}

// ArduinoTestHandler lets a device check it can reach the server.
func ArduinoTestHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info("Arduino test endpoint accessed from %s", r.RemoteAddr)
		writeJSON(w, http.StatusOK, dto.ArduinoTestResponse{
			Status:         "success",
			Message:        "Arduino connection successful",
			Classification: model.CategoryMix,
		})
	}
}

func HealthHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.HealthResponse{
			Status:    "healthy",
			Clients:   manager.GetHub().ClientCount(),
			Timestamp: time.Now().UTC(),
		})
	}
}
