// Package store persists calculator templates and calculation records.
//
// Three backends share one contract: an in-process memory store, MongoDB and
// NATS JetStream key-value buckets. Records are append-only; nothing in this
// package updates or deletes a stored record.
package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"construct-calc/internal/config"
	"construct-calc/internal/domain/models"
)

// TemplateStore reads and writes calculator templates.
type TemplateStore interface {
	// CreateTemplate stores t under t.ID. ErrConflict if the id is taken.
	CreateTemplate(ctx context.Context, t *models.Template) error
	// GetTemplate returns ErrNotFound when id is unknown.
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	// ListTemplates returns every template, newest first.
	ListTemplates(ctx context.Context) ([]*models.Template, error)
}

// RecordStore is the append-only calculation history.
type RecordStore interface {
	AppendRecord(ctx context.Context, rec *models.CalculationRecord) error
	GetRecord(ctx context.Context, id string) (*models.CalculationRecord, error)
	// ListRecords returns the records matching f, newest first.
	ListRecords(ctx context.Context, f models.RecordFilter) ([]*models.CalculationRecord, error)
}

// Store bundles both contracts with the backend's lifecycle.
type Store interface {
	TemplateStore
	RecordStore
	Close(ctx context.Context) error
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory store")
		return NewMemoryStore(), nil
	case config.DriverMongo:
		s, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to mongodb store", zap.String("database", cfg.MongoDBName))
		return s, nil
	case config.DriverNATS:
		s, err := NewNATSStore(ctx, cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to nats kv store")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// newer reports whether an entry created at a with store sequence seqA sorts
// before one created at b with seqB. Sequences only break timestamp ties.
func newer(a time.Time, seqA uint64, b time.Time, seqB uint64) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return seqA > seqB
}

// sortTemplatesNewestFirst expects ts in reverse insertion order, so equal
// timestamps keep the later insert first.
func sortTemplatesNewestFirst(ts []*models.Template) {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}

// sortRecordsNewestFirst expects rs in reverse insertion order, like
// sortTemplatesNewestFirst.
func sortRecordsNewestFirst(rs []*models.CalculationRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}

func applyLimit(rs []*models.CalculationRecord, limit int) []*models.CalculationRecord {
	if limit > 0 && len(rs) > limit {
		return rs[:limit]
	}
	return rs
}
