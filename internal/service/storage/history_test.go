package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ecosort/internal/config"
	"ecosort/internal/dto"
	"ecosort/internal/model"
)

type fakeCaptureRepo struct {
	mu      sync.Mutex
	batches [][]model.CaptureRecord
	err     error
}

func (f *fakeCaptureRepo) Insert(record *model.CaptureRecord) (int64, error) {
	return 0, f.InsertBatch([]model.CaptureRecord{*record})
}

func (f *fakeCaptureRepo) InsertBatch(records []model.CaptureRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]model.CaptureRecord(nil), records...))
	return nil
}

func (f *fakeCaptureRepo) GetByID(id int64) (*model.CaptureRecord, error) { return nil, nil }
func (f *fakeCaptureRepo) GetAll(filter *dto.CaptureFilter) ([]model.CaptureRecord, error) {
	return nil, nil
}
func (f *fakeCaptureRepo) GetTotalCount(filter *dto.CaptureFilter) (int, error) { return 0, nil }
func (f *fakeCaptureRepo) CountByClassification() (map[model.Category]int, error) {
	return nil, nil
}
func (f *fakeCaptureRepo) DeleteAll() error { return nil }

func (f *fakeCaptureRepo) saved() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestHistoryBuffer_Flush(t *testing.T) {
	repo := &fakeCaptureRepo{}
	buf := NewHistoryBuffer(&config.Config{HistoryFlushInterval: time.Hour}, newTestLogger(t), repo)

	buf.Record(model.CaptureRecord{SessionID: "a"})
	buf.Record(model.CaptureRecord{SessionID: "b"})
	if buf.Pending() != 2 {
		t.Fatalf("Expected 2 pending records, got %d", buf.Pending())
	}

	buf.Flush()
	if repo.saved() != 2 || len(repo.batches) != 1 {
		t.Errorf("Expected one batch of 2, got %v", repo.batches)
	}
	if buf.Pending() != 0 {
		t.Errorf("Expected empty buffer after flush, got %d", buf.Pending())
	}

	// Empty flush does not hit the repository
	buf.Flush()
	if len(repo.batches) != 1 {
		t.Errorf("Expected no extra batch, got %d", len(repo.batches))
	}
}

func TestHistoryBuffer_FlushesWhenFull(t *testing.T) {
	repo := &fakeCaptureRepo{}
	buf := NewHistoryBuffer(&config.Config{HistoryFlushInterval: time.Hour}, newTestLogger(t), repo)

	for i := 0; i < HistoryBufferLimit; i++ {
		buf.Record(model.CaptureRecord{SessionID: "s"})
	}
	if repo.saved() != HistoryBufferLimit {
		t.Errorf("Expected early flush of %d records, got %d", HistoryBufferLimit, repo.saved())
	}
}

func TestHistoryBuffer_DropsOnError(t *testing.T) {
	repo := &fakeCaptureRepo{err: errors.New("disk full")}
	buf := NewHistoryBuffer(&config.Config{HistoryFlushInterval: time.Hour}, newTestLogger(t), repo)

	buf.Record(model.CaptureRecord{SessionID: "a"})
	buf.Flush()
	if buf.Pending() != 0 {
		t.Errorf("Expected records to be dropped, got %d pending", buf.Pending())
	}
}

func TestHistoryBuffer_RunFlushesOnShutdown(t *testing.T) {
	repo := &fakeCaptureRepo{}
	buf := NewHistoryBuffer(&config.Config{HistoryFlushInterval: time.Hour}, newTestLogger(t), repo)
	buf.Record(model.CaptureRecord{SessionID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		buf.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if repo.saved() != 1 {
		t.Errorf("Expected final flush, got %d saved", repo.saved())
	}
}
