package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/satriahrh/emotivoice/domain/entities"
)

// PublicPrefix is the route synthesized files are served under
const PublicPrefix = "/audio/"

// Store hands out unique file names inside the audio cache directory
type Store struct {
	dir string
}

// NewStore creates the cache directory if needed
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute cache directory
func (s *Store) Dir() string {
	return s.dir
}

// NewPath returns a fresh path for one artifact, e.g. cache/speech_<uuid>.wav
func (s *Store) NewPath(prefix string, format entities.AudioFormat) string {
	name := fmt.Sprintf("%s_%s.%s", prefix, uuid.NewString(), format.Ext())
	return filepath.Join(s.dir, name)
}

// Resolve maps a requested file name to a path inside the cache.
// Names with directory components are rejected.
func (s *Store) Resolve(name string) (string, bool) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

// PublicPath converts an artifact inside the cache to the URL path the
// client fetches it from. Paths outside the cache are returned unchanged.
func (s *Store) PublicPath(artifact *entities.SpeechArtifact) *string {
	if artifact == nil || artifact.Path == "" {
		return nil
	}

	path := artifact.Path
	if abs, err := filepath.Abs(path); err == nil {
		if rel, err := filepath.Rel(s.dir, abs); err == nil && !strings.HasPrefix(rel, "..") && !strings.ContainsRune(rel, filepath.Separator) {
			path = PublicPrefix + rel
		}
	}
	return &path
}
