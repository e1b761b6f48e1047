package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"construct-calc/internal/domain/models"
)

const (
	templatesCollection = "calculator_templates"
	recordsCollection   = "calculation_records"
	countersCollection  = "calculator_counters"
)

// MongoStore implements Store on top of MongoDB.
//
// BSON dates keep milliseconds only, so every document also carries a "seq"
// drawn from a per-collection counter. Listings sort on created_at and then
// seq, which keeps saves from the same millisecond in insertion order.
type MongoStore struct {
	client    *mongo.Client
	templates *mongo.Collection
	records   *mongo.Collection
	counters  *mongo.Collection
}

type mongoTemplate struct {
	models.Template `bson:",inline"`
	Seq             int64 `bson:"seq"`
}

type mongoRecord struct {
	models.CalculationRecord `bson:",inline"`
	Seq                      int64 `bson:"seq"`
}

// newestFirst is the listing order shared by both collections.
func newestFirst() bson.D {
	return bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}
}

// NewMongoStore connects to uri, verifies the connection and ensures the
// history index exists.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:    client,
		templates: db.Collection(templatesCollection),
		records:   db.Collection(recordsCollection),
		counters:  db.Collection(countersCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: append(bson.D{{Key: "line_item_id", Value: 1}}, newestFirst()...)},
		{Keys: append(bson.D{{Key: "line_item_id", Value: 1}, {Key: "template_id", Value: 1}}, newestFirst()...)},
	})
	if err != nil {
		return fmt.Errorf("failed to create record indexes: %w", err)
	}

	_, err = s.templates.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: newestFirst(),
	})
	if err != nil {
		return fmt.Errorf("failed to create template index: %w", err)
	}
	return nil
}

// nextSeq atomically increments and returns the counter for collection.
func (s *MongoStore) nextSeq(ctx context.Context, collection string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, persistence("next "+collection+" sequence", err)
	}
	return counter.Seq, nil
}

func (s *MongoStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	seq, err := s.nextSeq(ctx, templatesCollection)
	if err != nil {
		return err
	}
	if _, err := s.templates.InsertOne(ctx, mongoTemplate{Template: *t, Seq: seq}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return persistence("insert template", err)
	}
	return nil
}

func (s *MongoStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	var t models.Template
	err := s.templates.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, persistence("find template", err)
	}
	return &t, nil
}

func (s *MongoStore) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	opts := options.Find().SetSort(newestFirst())
	cursor, err := s.templates.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, persistence("list templates", err)
	}

	var out []*models.Template
	if err := cursor.All(ctx, &out); err != nil {
		return nil, persistence("decode templates", err)
	}
	return out, nil
}

func (s *MongoStore) AppendRecord(ctx context.Context, rec *models.CalculationRecord) error {
	seq, err := s.nextSeq(ctx, recordsCollection)
	if err != nil {
		return err
	}
	if _, err := s.records.InsertOne(ctx, mongoRecord{CalculationRecord: *rec, Seq: seq}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return persistence("insert calculation record", err)
	}
	return nil
}

func (s *MongoStore) GetRecord(ctx context.Context, id string) (*models.CalculationRecord, error) {
	var rec models.CalculationRecord
	err := s.records.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, persistence("find calculation record", err)
	}
	return &rec, nil
}

func (s *MongoStore) ListRecords(ctx context.Context, f models.RecordFilter) ([]*models.CalculationRecord, error) {
	filter := bson.M{}
	if f.LineItemID != "" {
		filter["line_item_id"] = f.LineItemID
	}
	if f.TemplateID != "" {
		filter["template_id"] = f.TemplateID
	}

	opts := options.Find().SetSort(newestFirst())
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := s.records.Find(ctx, filter, opts)
	if err != nil {
		return nil, persistence("list calculation records", err)
	}

	var out []*models.CalculationRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, persistence("decode calculation records", err)
	}
	return out, nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
