// Package store provides storage backends for welcomebot.
//
// This file implements the MongoDB-backed store: one document per hashed
// user id in "users", a singleton counter document per counter name in
// "counters", and the answer-index rows in "qa_vectors".
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdg-ntpu/welcomebot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultMongoDatabase is used when no database name is configured.
	DefaultMongoDatabase = "welcomebot"
	// mongoConnectTimeout bounds the initial connection handshake.
	mongoConnectTimeout = 10 * time.Second
)

// MongoStore persists profiles, counters and answer vectors in MongoDB.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	counters *mongo.Collection
	vectors  *mongo.Collection
}

// NewMongoStore creates a new MongoDB store. The DSN is a mongodb:// or
// mongodb+srv:// URI.
func NewMongoStore(opts ...Option) (*MongoStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewMongoStore invoked", "DSN_set", cfg.DSN != "", "database", cfg.Database)

	if cfg.DSN == "" {
		slog.Error("MongoStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DSN).SetRetryWrites(true))
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		slog.Error("MongoDB ping failed", "error", err)
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	db := client.Database(cfg.Database)
	return &MongoStore{
		client:   client,
		users:    db.Collection("users"),
		counters: db.Collection("counters"),
		vectors:  db.Collection("qa_vectors"),
	}, nil
}

// GetProfile returns the profile for the hashed user id, or nil when absent.
func (s *MongoStore) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		slog.Debug("MongoStore GetProfile not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("MongoStore GetProfile failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to query profile %s: %w", id, err)
	}
	return &p, nil
}

// InsertProfileIfAbsent inserts the profile unless its id is taken.
func (s *MongoStore) InsertProfileIfAbsent(ctx context.Context, profile models.UserProfile) (bool, error) {
	_, err := s.users.InsertOne(ctx, profile)
	if mongo.IsDuplicateKeyError(err) {
		slog.Debug("MongoStore InsertProfileIfAbsent already present", "id", profile.ID)
		return false, nil
	}
	if err != nil {
		slog.Error("MongoStore InsertProfileIfAbsent failed", "error", err, "id", profile.ID)
		return false, fmt.Errorf("failed to insert profile %s: %w", profile.ID, err)
	}
	slog.Debug("MongoStore InsertProfileIfAbsent inserted", "id", profile.ID)
	return true, nil
}

// UpdateProfile applies only the set fields of the partial update via $set.
func (s *MongoStore) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) error {
	cols, args := profileUpdateFields(upd)
	if len(cols) == 0 {
		return nil
	}
	set := bson.M{}
	for i, col := range cols {
		set[col] = args[i]
	}
	if _, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		slog.Error("MongoStore UpdateProfile failed", "error", err, "id", id)
		return fmt.Errorf("failed to update profile %s: %w", id, err)
	}
	slog.Debug("MongoStore UpdateProfile succeeded", "id", id, "fields", len(cols))
	return nil
}

// IncrementCounter atomically increments the named counter with a single
// $inc upsert and returns the new value.
func (s *MongoStore) IncrementCounter(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		slog.Error("MongoStore IncrementCounter failed", "error", err, "name", name)
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	slog.Debug("MongoStore IncrementCounter succeeded", "name", name, "value", doc.Value)
	return doc.Value, nil
}

// ListAnswerVectors loads every answer-index row.
func (s *MongoStore) ListAnswerVectors(ctx context.Context) ([]models.AnswerVector, error) {
	cursor, err := s.vectors.Find(ctx, bson.M{})
	if err != nil {
		slog.Error("MongoStore ListAnswerVectors query failed", "error", err)
		return nil, fmt.Errorf("failed to query answer vectors: %w", err)
	}
	var vectors []models.AnswerVector
	if err := cursor.All(ctx, &vectors); err != nil {
		slog.Error("MongoStore ListAnswerVectors decode failed", "error", err)
		return nil, fmt.Errorf("failed to decode answer vectors: %w", err)
	}
	slog.Debug("MongoStore ListAnswerVectors succeeded", "count", len(vectors))
	return vectors, nil
}

// Close disconnects the MongoDB client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
