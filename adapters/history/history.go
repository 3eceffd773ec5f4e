package history

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/config"
)

// ErrNilRecord is returned when Save is called without a record
var ErrNilRecord = errors.New("history: record cannot be nil")

// CloseFunc releases the resources held by a history store
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// New builds the history store selected by cfg.Backend
func New(ctx context.Context, cfg config.History, logger *zap.Logger) (repositories.HistoryRepository, CloseFunc, error) {
	logger = logger.With(zap.String("history", cfg.Backend))

	switch cfg.Backend {
	case config.HistoryBackendFile:
		return NewFileRepository(cfg.File.Path, logger), noopClose, nil
	case config.HistoryBackendMongo:
		client, err := NewMongoClient(ctx, MongoConfig{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database}, logger)
		if err != nil {
			return nil, nil, err
		}
		repo := NewMongoRepository(client.Database.Collection(cfg.Mongo.Collection), cfg.ConversationID)
		return repo, client.Close, nil
	case config.HistoryBackendRedis:
		repo, err := NewRedisRepository(ctx, RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, cfg.ConversationID, logger)
		if err != nil {
			return nil, nil, err
		}
		return repo, func(context.Context) error { return repo.Close() }, nil
	default:
		return nil, nil, &config.UnknownBackendError{
			Category:  "history",
			Name:      cfg.Backend,
			Supported: []string{config.HistoryBackendFile, config.HistoryBackendMongo, config.HistoryBackendRedis},
		}
	}
}
