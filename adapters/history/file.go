package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
)

// FileRepository keeps the transcript in a single JSON file
type FileRepository struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// Ensure FileRepository implements the HistoryRepository interface
var _ repositories.HistoryRepository = (*FileRepository)(nil)

// NewFileRepository creates a store backed by path. The file is created on first save.
func NewFileRepository(path string, logger *zap.Logger) *FileRepository {
	return &FileRepository{path: path, logger: logger}
}

// Load implements repositories.HistoryRepository
func (r *FileRepository) Load(ctx context.Context) (*entities.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	var record entities.HistoryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode chat history: %w", err)
	}
	record.Normalize()
	return &record, nil
}

// Save implements repositories.HistoryRepository.
// The file is replaced atomically so readers never see a partial record.
func (r *FileRepository) Save(ctx context.Context, record *entities.HistoryRecord) error {
	if record == nil {
		return ErrNilRecord
	}
	record.Normalize()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chat-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write chat history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write chat history: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace chat history: %w", err)
	}

	r.logger.Debug("Saved chat history", zap.String("path", r.path), zap.Int("messages", len(record.Messages)))
	return nil
}

// Clear implements repositories.HistoryRepository
func (r *FileRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	r.logger.Info("Cleared chat history", zap.String("path", r.path))
	return nil
}
