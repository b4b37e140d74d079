package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sgbridge/internal/constants"
	"sgbridge/pkg/metrics"
)

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection(constants.DefaultAuditCollection),
	}
}

func (s *MongoStore) Save(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	start := time.Now()
	_, err := s.collection.InsertOne(ctx, entry)
	s.recordQuery("insert_audit", start, err)

	if err != nil {
		metrics.IncAuditRecord(constants.AuditDriverMongoDB, "error")
		return fmt.Errorf("failed to log audit entry: %w", err)
	}

	metrics.IncAuditRecord(constants.AuditDriverMongoDB, "success")
	return nil
}

func (s *MongoStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))

	start := time.Now()
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	s.recordQuery("list_audit", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}

func (s *MongoStore) recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceNameBridge, "mongodb", operation, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceNameBridge, "mongodb", operation, time.Since(start))
}
