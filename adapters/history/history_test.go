package history

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/config"
)

const clientRecord = `{
  "version": "1.0",
  "created": "2025-01-01T10:00:00Z",
  "updated": "2025-01-01T10:05:00Z",
  "messages": [
    {"sender": "You", "message": "你好", "timestamp": "10:00", "id": 1},
    {"sender": "Yae", "message": "hello there", "timestamp": "10:01", "motion": "wave"}
  ]
}`

func decodeRecord(t *testing.T, doc string) *entities.HistoryRecord {
	t.Helper()
	var record entities.HistoryRecord
	require.NoError(t, json.Unmarshal([]byte(doc), &record))
	return &record
}

// exerciseRepository runs the load/save/clear contract shared by every backend
func exerciseRepository(t *testing.T, repo repositories.HistoryRepository) {
	ctx := context.Background()

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store loads nil")

	require.NoError(t, repo.Save(ctx, decodeRecord(t, clientRecord)))

	got, err = repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2025-01-01T10:00:00Z", got.Created)
	assert.Equal(t, "2025-01-01T10:05:00Z", got.Updated)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "你好", got.Messages[0].Message)
	assert.Equal(t, entities.RoleUser, got.Messages[0].Conversation().Role)
	assert.JSONEq(t, `"wave"`, string(got.Messages[1].Extra["motion"]))

	// Whole-record replace
	require.NoError(t, repo.Save(ctx, decodeRecord(t, `{"messages":[]}`)))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Messages)
	assert.Equal(t, entities.HistoryVersion, got.Version)
	assert.Empty(t, got.Created, "missing timestamps are not invented")

	require.NoError(t, repo.Clear(ctx))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing an empty store is not an error
	require.NoError(t, repo.Clear(ctx))
	assert.ErrorIs(t, repo.Save(ctx, nil), ErrNilRecord)
}

func TestFileRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history", "chat.json")
	exerciseRepository(t, NewFileRepository(path, zaptest.NewLogger(t)))
}

func TestFileRepository_WritesIndentedUnescapedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	repo := NewFileRepository(path, zaptest.NewLogger(t))
	require.NoError(t, repo.Save(context.Background(), decodeRecord(t, clientRecord)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"version\": \"1.0\"")
	assert.Contains(t, string(data), "你好")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are renamed away")
}

func TestFileRepository_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileRepository(path, zaptest.NewLogger(t)).Load(context.Background())
	assert.Error(t, err)
}

func TestFileRepository_StoresRecordVerbatim(t *testing.T) {
	repo := NewFileRepository(filepath.Join(t.TempDir(), "chat.json"), zaptest.NewLogger(t))
	ctx := context.Background()

	for _, doc := range []string{
		`{"version":"1.0","created":"","updated":"","messages":[]}`,
		`{"version":"1.0","created":"a","updated":"b","messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`,
	} {
		require.NoError(t, repo.Save(ctx, decodeRecord(t, doc)))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		out, err := json.Marshal(got)
		require.NoError(t, err)
		assert.JSONEq(t, doc, string(out))
	}
}

func TestRedisRepository(t *testing.T) {
	mr := miniredis.RunT(t)

	repo, err := NewRedisRepository(context.Background(), RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"}, "room1", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer repo.Close()

	exerciseRepository(t, repo)
}

func TestRedisRepository_Key(t *testing.T) {
	mr := miniredis.RunT(t)

	repo, err := NewRedisRepository(context.Background(), RedisConfig{Addr: mr.Addr(), KeyPrefix: "emotivoice:"}, "default", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Save(context.Background(), entities.EmptyHistoryRecord()))
	assert.True(t, mr.Exists("emotivoice:history:default"))
}

func TestRedisRepository_Unreachable(t *testing.T) {
	_, err := NewRedisRepository(context.Background(), RedisConfig{Addr: "127.0.0.1:1"}, "default", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("Skipping MongoDB test - set MONGODB_URI to run")
	}

	ctx := context.Background()
	client, err := NewMongoClient(ctx, MongoConfig{URI: uri, Database: "emotivoice_test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer client.Close(ctx)

	collection := client.Database.Collection("chat_history_test")
	defer collection.Drop(ctx)

	exerciseRepository(t, NewMongoRepository(collection, "test-conversation"))
}

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		cfg  config.History
	}{
		{
			name: "file",
			cfg: func() config.History {
				var c config.History
				c.Backend = config.HistoryBackendFile
				c.File.Path = filepath.Join(t.TempDir(), "chat.json")
				return c
			}(),
		},
		{
			name: "redis",
			cfg: func() config.History {
				var c config.History
				c.Backend = config.HistoryBackendRedis
				c.ConversationID = "default"
				c.Redis.Addr = mr.Addr()
				return c
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, closeFn, err := New(context.Background(), tt.cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			require.NotNil(t, repo)
			assert.NoError(t, closeFn(context.Background()))
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, _, err := New(context.Background(), config.History{Backend: "sqlite"}, zaptest.NewLogger(t))

	var unknown *config.UnknownBackendError
	assert.True(t, errors.As(err, &unknown))
}
