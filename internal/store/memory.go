package store

import (
	"context"
	"sync"

	"construct-calc/internal/domain/models"
)

// MemoryStore keeps everything in process memory. Entities are deep-copied
// on the way in and out so callers can never alias stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*models.Template
	records   map[string]*models.CalculationRecord
	// insertion order; newest-first listing walks these backwards so equal
	// timestamps still come out in a stable order
	templateOrder []string
	recordOrder   []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*models.Template),
		records:   make(map[string]*models.CalculationRecord),
	}
}

func (s *MemoryStore) CreateTemplate(_ context.Context, t *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[t.ID]; ok {
		return ErrConflict
	}
	s.templates[t.ID] = cloneTemplate(t)
	s.templateOrder = append(s.templateOrder, t.ID)
	return nil
}

func (s *MemoryStore) GetTemplate(_ context.Context, id string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTemplate(t), nil
}

func (s *MemoryStore) ListTemplates(_ context.Context) ([]*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Template, 0, len(s.templateOrder))
	for i := len(s.templateOrder) - 1; i >= 0; i-- {
		out = append(out, cloneTemplate(s.templates[s.templateOrder[i]]))
	}
	sortTemplatesNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) AppendRecord(_ context.Context, rec *models.CalculationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return ErrConflict
	}
	s.records[rec.ID] = cloneRecord(rec)
	s.recordOrder = append(s.recordOrder, rec.ID)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, id string) (*models.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) ListRecords(_ context.Context, f models.RecordFilter) ([]*models.CalculationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.CalculationRecord
	for i := len(s.recordOrder) - 1; i >= 0; i-- {
		rec := s.records[s.recordOrder[i]]
		if f.Matches(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	sortRecordsNewestFirst(out)
	return applyLimit(out, f.Limit), nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }

func cloneTemplate(t *models.Template) *models.Template {
	c := *t
	c.Variables = append([]models.Variable(nil), t.Variables...)
	c.Formulas = append([]models.Formula(nil), t.Formulas...)
	return &c
}

func cloneRecord(r *models.CalculationRecord) *models.CalculationRecord {
	c := *r
	c.Values = cloneFloats(r.Values)
	c.Results = cloneFloats(r.Results)
	if r.Errors != nil {
		c.Errors = make(map[string]string, len(r.Errors))
		for k, v := range r.Errors {
			c.Errors[k] = v
		}
	}
	return &c
}

func cloneFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
