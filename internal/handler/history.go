package handler

import (
	"net/http"
	"strconv"
	"time"

	"ecosort/internal/dto"
	"ecosort/internal/logger"
	"ecosort/internal/model"
	"ecosort/internal/repository"
)

const (
	defaultCaptureLimit = 20
	maxCaptureLimit     = 100
)

// CapturesHandler lists the capture history, newest first.
// Query parameters: limit, offset, classification, status, after, before (RFC 3339).
func CapturesHandler(repo repository.CaptureRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseCaptureFilter(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Status: "error", Error: err.Error()})
			return
		}

		captures, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error reading capture history: %v", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Status: "error", Error: "failed to read capture history"})
			return
		}

		total, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting captures: %v", err)
			total = len(captures)
		}

		counts, err := repo.CountByClassification()
		if err != nil {
			logger.Error("Error counting classifications: %v", err)
			counts = map[model.Category]int{}
		}

		writeJSON(w, http.StatusOK, dto.CapturesData{
			Captures: captures,
			Total:    total,
			Counts:   counts,
			Limit:    filter.Limit,
			Offset:   filter.Offset,
		})
	}
}

func parseCaptureFilter(r *http.Request) (*dto.CaptureFilter, error) {
	q := r.URL.Query()
	filter := &dto.CaptureFilter{
		Limit:          defaultCaptureLimit,
		Classification: model.Category(q.Get("classification")),
		Status:         q.Get("status"),
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return nil, errBadParam("limit")
		}
		filter.Limit = min(limit, maxCaptureLimit)
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return nil, errBadParam("offset")
		}
		filter.Offset = offset
	}
	if v := q.Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errBadParam("after")
		}
		filter.After = t.UTC()
	}
	if v := q.Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errBadParam("before")
		}
		filter.Before = t.UTC()
	}

	return filter, nil
}

type errBadParam string

func (e errBadParam) Error() string {
	return "invalid " + string(e) + " parameter"
}
