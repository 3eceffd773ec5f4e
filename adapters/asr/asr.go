package asr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/config"
)

// Supported backend names
const (
	BackendFunASR     = "funasr"
	BackendSherpaOnnx = "sherpa_onnx"
	BackendWhisperCpp = "whispercpp"
	BackendGoogle     = "google"
)

// Backends lists every registered ASR backend
var Backends = []string{BackendFunASR, BackendSherpaOnnx, BackendWhisperCpp, BackendGoogle}

// ErrNoAudio is returned when Transcribe is called without samples
var ErrNoAudio = errors.New("asr: no audio samples")

// New builds the recognizer registered under backend from its config section
func New(backend string, node *yaml.Node, logger *zap.Logger) (repositories.SpeechToText, error) {
	logger = logger.With(zap.String("asr", backend))

	switch backend {
	case BackendFunASR:
		var cfg FunASRConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		return NewFunASR(cfg, logger)
	case BackendSherpaOnnx:
		var cfg SherpaOnnxConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		return NewSherpaOnnxASR(cfg, logger)
	case BackendWhisperCpp:
		var cfg WhisperCppConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		return NewWhisperCppASR(cfg, logger)
	case BackendGoogle:
		var cfg GoogleConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		return NewGoogleSpeechToText(cfg, logger)
	default:
		return nil, &config.UnknownBackendError{Category: "asr", Name: backend, Supported: Backends}
	}
}

// BackendError tags a recognition failure with the engine that produced it
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("asr %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendError(backend string, err error) error {
	return &BackendError{Backend: backend, Err: err}
}

// richTags matches the <|lang|><|EMO|><|Event|> markers emitted by SenseVoice style models
var richTags = regexp.MustCompile(`<\|[^|]*\|>`)

// cleanTranscript removes model markup and surrounding whitespace
func cleanTranscript(text string) string {
	return strings.TrimSpace(richTags.ReplaceAllString(text, ""))
}
