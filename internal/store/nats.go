package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"construct-calc/internal/domain/models"
)

// Bucket names for the NATS backend.
const (
	BucketTemplates = "CALC_TEMPLATES"
	BucketRecords   = "CALC_RECORDS"
)

// NATSStore implements Store on NATS JetStream key-value buckets. Writes use
// KV Create, so an existing key is never overwritten. Listings break
// created_at ties with the entry revision, which grows with every write to
// a bucket.
type NATSStore struct {
	nc        *nats.Conn
	templates jetstream.KeyValue
	records   jetstream.KeyValue
}

// NewNATSStore connects to url and opens (or creates) both buckets.
func NewNATSStore(ctx context.Context, url string) (*NATSStore, error) {
	nc, err := nats.Connect(url, nats.Name("construct-calc"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	s, err := newNATSStore(ctx, js)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.nc = nc
	return s, nil
}

func newNATSStore(ctx context.Context, js jetstream.JetStream) (*NATSStore, error) {
	templates, err := getOrCreateBucket(ctx, js, BucketTemplates)
	if err != nil {
		return nil, fmt.Errorf("create templates bucket: %w", err)
	}

	records, err := getOrCreateBucket(ctx, js, BucketRecords)
	if err != nil {
		return nil, fmt.Errorf("create records bucket: %w", err)
	}

	return &NATSStore{templates: templates, records: records}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("construct-calc %s storage", strings.ToLower(name)),
		History:     1,
	})
}

func (s *NATSStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	return s.create(ctx, s.templates, "template", t.ID, t)
}

func (s *NATSStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var t models.Template
	if _, err := s.get(ctx, s.templates, "template", id, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *NATSStore) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	keys, err := listKeys(ctx, s.templates)
	if err != nil {
		return nil, persistence("list template keys", err)
	}

	type revisioned struct {
		t   *models.Template
		rev uint64
	}
	entries := make([]revisioned, 0, len(keys))
	for _, key := range keys {
		var t models.Template
		rev, err := s.get(ctx, s.templates, "template", key, &t)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, revisioned{&t, rev})
	}
	sort.Slice(entries, func(i, j int) bool {
		return newer(entries[i].t.CreatedAt, entries[i].rev, entries[j].t.CreatedAt, entries[j].rev)
	})

	out := make([]*models.Template, len(entries))
	for i, e := range entries {
		out[i] = e.t
	}
	return out, nil
}

func (s *NATSStore) AppendRecord(ctx context.Context, rec *models.CalculationRecord) error {
	return s.create(ctx, s.records, "calculation record", rec.ID, rec)
}

func (s *NATSStore) GetRecord(ctx context.Context, id string) (*models.CalculationRecord, error) {
	var rec models.CalculationRecord
	if _, err := s.get(ctx, s.records, "calculation record", id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords scans the whole bucket; KV has no secondary indexes.
func (s *NATSStore) ListRecords(ctx context.Context, f models.RecordFilter) ([]*models.CalculationRecord, error) {
	keys, err := listKeys(ctx, s.records)
	if err != nil {
		return nil, persistence("list record keys", err)
	}

	type revisioned struct {
		rec *models.CalculationRecord
		rev uint64
	}
	var entries []revisioned
	for _, key := range keys {
		var rec models.CalculationRecord
		rev, err := s.get(ctx, s.records, "calculation record", key, &rec)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if f.Matches(&rec) {
			entries = append(entries, revisioned{&rec, rev})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return newer(entries[i].rec.CreatedAt, entries[i].rev, entries[j].rec.CreatedAt, entries[j].rev)
	})

	out := make([]*models.CalculationRecord, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return applyLimit(out, f.Limit), nil
}

// Close drains the connection. It is a no-op when the store was built on a
// caller-owned JetStream context.
func (s *NATSStore) Close(context.Context) error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}

func (s *NATSStore) create(ctx context.Context, kv jetstream.KeyValue, kind, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if _, err := kv.Create(ctx, key, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return ErrConflict
		}
		return persistence("store "+kind, err)
	}
	return nil
}

// get decodes the value under key into dst and returns the entry revision.
func (s *NATSStore) get(ctx context.Context, kv jetstream.KeyValue, kind, key string, dst any) (uint64, error) {
	entry, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, ErrNotFound
		}
		return 0, persistence("get "+kind, err)
	}
	if err := json.Unmarshal(entry.Value(), dst); err != nil {
		return 0, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return entry.Revision(), nil
}

func listKeys(ctx context.Context, kv jetstream.KeyValue) ([]string, error) {
	lister, err := kv.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	defer lister.Stop()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	return keys, nil
}
