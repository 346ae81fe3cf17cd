package storage

import (
	"context"
	"sync"
	"time"

	"ecosort/internal/config"
	"ecosort/internal/logger"
	"ecosort/internal/model"
	"ecosort/internal/repository"
)

// HistoryBufferLimit is how many records are held before an early flush.
const HistoryBufferLimit = 50

// HistoryBuffer collects capture records in memory and periodically writes
// them to the capture repository.
type HistoryBuffer struct {
	records  []model.CaptureRecord
	mu       sync.Mutex
	interval time.Duration
	repo     repository.CaptureRepository
	logger   *logger.Logger
}

func NewHistoryBuffer(config *config.Config, logger *logger.Logger, repo repository.CaptureRepository) *HistoryBuffer {
	return &HistoryBuffer{
		records:  make([]model.CaptureRecord, 0),
		interval: config.HistoryFlushInterval,
		repo:     repo,
		logger:   logger,
	}
}

// Run flushes on every tick and once more when ctx ends.
func (s *HistoryBuffer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Record queues a capture record, flushing early when the buffer is full.
func (s *HistoryBuffer) Record(record model.CaptureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if len(s.records) >= HistoryBufferLimit {
		s.flushLocked()
	}
}

// Pending returns how many records wait for the next flush.
func (s *HistoryBuffer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Flush writes buffered records to the repository and empties the buffer.
// Records that fail to save are dropped.
func (s *HistoryBuffer) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *HistoryBuffer) flushLocked() {
	if len(s.records) == 0 {
		return
	}

	if err := s.repo.InsertBatch(s.records); err != nil {
		s.logger.Error("Error saving %d capture records: %v", len(s.records), err)
	} else {
		s.logger.Info("Flushed %d capture records to database", len(s.records))
	}

	s.records = s.records[:0]
}
