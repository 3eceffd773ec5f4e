package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
)

// RedisConfig configures the redis connection
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisRepository stores the transcript as a JSON string value
type RedisRepository struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// Ensure RedisRepository implements the HistoryRepository interface
var _ repositories.HistoryRepository = (*RedisRepository)(nil)

// NewRedisRepository connects to redis and verifies the connection
func NewRedisRepository(ctx context.Context, config RedisConfig, conversationID string, logger *zap.Logger) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	key := config.KeyPrefix + "history:" + conversationID
	logger.Info("Successfully connected to redis", zap.String("addr", config.Addr), zap.String("key", key))

	return &RedisRepository{client: client, key: key, logger: logger}, nil
}

// Load implements repositories.HistoryRepository
func (r *RedisRepository) Load(ctx context.Context) (*entities.HistoryRecord, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	var record entities.HistoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	record.Normalize()
	return &record, nil
}

// Save implements repositories.HistoryRepository
func (r *RedisRepository) Save(ctx context.Context, record *entities.HistoryRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	record.Normalize()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

// Clear implements repositories.HistoryRepository
func (r *RedisRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}

// Close closes the redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
