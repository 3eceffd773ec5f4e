package repositories

import (
	"context"

	"github.com/satriahrh/emotivoice/domain/entities"
)

// HistoryRepository persists the conversation transcript
type HistoryRepository interface {
	// Load returns nil, nil when no record is stored
	Load(ctx context.Context) (*entities.HistoryRecord, error)
	// Save replaces the stored record
	Save(ctx context.Context, record *entities.HistoryRecord) error
	// Clear removes the stored record
	Clear(ctx context.Context) error
}
