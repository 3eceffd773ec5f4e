package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
)

// MongoConfig selects the MongoDB deployment and database
type MongoConfig struct {
	URI      string
	Database string
}

// MongoClient wraps the MongoDB client and database
type MongoClient struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewMongoClient creates a new MongoDB client connection
func NewMongoClient(ctx context.Context, config MongoConfig, logger *zap.Logger) (*MongoClient, error) {
	clientOptions := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB", zap.String("database", config.Database))

	return &MongoClient{
		Client:   client,
		Database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

// Close closes the MongoDB connection
func (c *MongoClient) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}

// MongoRepository stores the transcript as one document per conversation
type MongoRepository struct {
	collection     *mongo.Collection
	conversationID string
	now            func() time.Time
}

// Ensure MongoRepository implements the HistoryRepository interface
var _ repositories.HistoryRepository = (*MongoRepository)(nil)

// NewMongoRepository creates a repository that keeps conversationID in collection
func NewMongoRepository(collection *mongo.Collection, conversationID string) *MongoRepository {
	return &MongoRepository{collection: collection, conversationID: conversationID, now: time.Now}
}

type historyDocument struct {
	ID        string    `bson:"_id"`
	Record    bson.Raw  `bson:"record"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Load implements repositories.HistoryRepository
func (r *MongoRepository) Load(ctx context.Context) (*entities.HistoryRecord, error) {
	var doc historyDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": r.conversationID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	// Round-trip through relaxed extended JSON so client fields stay untyped.
	data, err := bson.MarshalExtJSON(doc.Record, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert chat history: %w", err)
	}
	var record entities.HistoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	record.Normalize()
	return &record, nil
}

// Save implements repositories.HistoryRepository
func (r *MongoRepository) Save(ctx context.Context, record *entities.HistoryRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	now := r.now()
	record.Normalize()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}
	var body bson.D
	if err := bson.UnmarshalExtJSON(data, false, &body); err != nil {
		return fmt.Errorf("failed to convert chat history: %w", err)
	}

	update := bson.M{"$set": bson.M{"record": body, "updated_at": now.UTC()}}
	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": r.conversationID}, update, opts); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

// Clear implements repositories.HistoryRepository
func (r *MongoRepository) Clear(ctx context.Context) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": r.conversationID}); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
