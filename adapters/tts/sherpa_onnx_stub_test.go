//go:build !sherpa

package tts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewSherpaOnnxTTS_Unavailable(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.onnx")
	tokens := filepath.Join(dir, "tokens.txt")
	for _, p := range []string{model, tokens} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	_, err := NewSherpaOnnxTTS(SherpaOnnxTTSConfig{Vits: &SherpaVitsConfig{Model: model, Tokens: tokens}}, zaptest.NewLogger(t))
	if !errors.Is(err, ErrSherpaUnavailable) {
		t.Fatalf("expected ErrSherpaUnavailable, got %v", err)
	}
}
