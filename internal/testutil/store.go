package testutil

import (
	"context"
	"sync"

	"construct-calc/internal/domain/models"
	"construct-calc/internal/store"
)

// RecordingStore wraps a MemoryStore, counts every call by method name and
// can be told to fail writes.
type RecordingStore struct {
	*store.MemoryStore

	// FailWrites, when non-nil, is returned by CreateTemplate and AppendRecord.
	FailWrites error

	mu         sync.Mutex
	calls      map[string]int
	lastFilter models.RecordFilter
}

func NewRecordingStore() *RecordingStore {
	return &RecordingStore{MemoryStore: store.NewMemoryStore(), calls: make(map[string]int)}
}

// Calls returns how many times method was invoked.
func (s *RecordingStore) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// LastFilter returns the filter passed to the most recent ListRecords call.
func (s *RecordingStore) LastFilter() models.RecordFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFilter
}

func (s *RecordingStore) record(method string) {
	s.mu.Lock()
	s.calls[method]++
	s.mu.Unlock()
}

func (s *RecordingStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	s.record("CreateTemplate")
	if s.FailWrites != nil {
		return s.FailWrites
	}
	return s.MemoryStore.CreateTemplate(ctx, t)
}

func (s *RecordingStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	s.record("GetTemplate")
	return s.MemoryStore.GetTemplate(ctx, id)
}

func (s *RecordingStore) AppendRecord(ctx context.Context, rec *models.CalculationRecord) error {
	s.record("AppendRecord")
	if s.FailWrites != nil {
		return s.FailWrites
	}
	return s.MemoryStore.AppendRecord(ctx, rec)
}

func (s *RecordingStore) ListRecords(ctx context.Context, f models.RecordFilter) ([]*models.CalculationRecord, error) {
	s.record("ListRecords")
	s.mu.Lock()
	s.lastFilter = f
	s.mu.Unlock()
	return s.MemoryStore.ListRecords(ctx, f)
}

var _ store.Store = (*RecordingStore)(nil)
