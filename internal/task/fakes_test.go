package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryTaskStore is an in-memory TaskStore.
type memoryTaskStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
	saveErr error
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{records: make(map[uuid.UUID]*Record)}
}

func (s *memoryTaskStore) SaveTask(ctx context.Context, t Task) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.records[t.ID()] = &Record{
		ID:        t.ID(),
		Type:      t.Type(),
		Payload:   t.Payload(),
		Status:    t.Status(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *memoryTaskStore) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status TaskStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.Status = status
		rec.ErrorMessage = msg
		rec.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *memoryTaskStore) byStatus(status TaskStatus, olderThan time.Duration) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Status != status {
			continue
		}
		if olderThan > 0 && time.Since(rec.UpdatedAt) < olderThan {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

func (s *memoryTaskStore) GetPendingTasks(ctx context.Context) ([]Record, error) {
	return s.byStatus(TaskStatusPending, 0), nil
}

func (s *memoryTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Record, error) {
	return s.byStatus(TaskStatusProcessing, olderThan), nil
}

func (s *memoryTaskStore) WithTx(tx *sql.Tx) TaskStore { return s }

func (s *memoryTaskStore) status(id uuid.UUID) (TaskStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		return rec.Status, rec.ErrorMessage
	}
	return "", ""
}

func (s *memoryTaskStore) put(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = &rec
}

// recordingConverter counts conversions and can fail on demand.
type recordingConverter struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
	done  chan uuid.UUID
}

func newRecordingConverter() *recordingConverter {
	return &recordingConverter{done: make(chan uuid.UUID, 16)}
}

func (c *recordingConverter) ConvertMissing(ctx context.Context, avatarID uuid.UUID) error {
	c.mu.Lock()
	c.calls = append(c.calls, avatarID)
	err := c.err
	c.mu.Unlock()
	c.done <- avatarID
	return err
}
