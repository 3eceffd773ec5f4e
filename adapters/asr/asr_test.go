package asr

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/emotivoice/internal/config"
)

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New("kaldi", nil, zaptest.NewLogger(t))

	var unknown *config.UnknownBackendError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownBackendError, got %v", err)
	}
	if unknown.Category != "asr" {
		t.Errorf("expected category asr, got %q", unknown.Category)
	}
	want := `unknown asr backend "kaldi" (supported: funasr, sherpa_onnx, whispercpp, google)`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestNew_RejectsUnknownConfigKeys(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("url: http://127.0.0.1:8080\nbogus: true\n"), &node); err != nil {
		t.Fatal(err)
	}
	if _, err := New(BackendWhisperCpp, node.Content[0], zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestCleanTranscript(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"  hello world \n", "hello world"},
		{"<|en|><|NEUTRAL|><|Speech|><|withitn|>Hello there.", "Hello there."},
		{"<|zh|>你好", "你好"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cleanTranscript(tt.in); got != tt.want {
			t.Errorf("cleanTranscript(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBackendError_Unwrap(t *testing.T) {
	err := backendError(BackendFunASR, ErrNoAudio)
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected errors.Is to see ErrNoAudio through %v", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Backend != BackendFunASR {
		t.Fatalf("expected BackendError for funasr, got %v", err)
	}
}
