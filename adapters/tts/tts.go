package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/artifact"
	"github.com/satriahrh/emotivoice/internal/config"
)

// Supported backend names
const (
	BackendFishSpeech = "fish_speech"
	BackendGPTSoVITS  = "gpt_sovits"
	BackendIndexTTS   = "index_tts"
	BackendMegaTTS    = "mega_tts"
	BackendSherpaOnnx = "sherpa_onnx"
	BackendElevenLabs = "elevenlabs"
)

// Backends lists every registered TTS backend
var Backends = []string{BackendFishSpeech, BackendGPTSoVITS, BackendIndexTTS, BackendMegaTTS, BackendSherpaOnnx, BackendElevenLabs}

// artifactPrefix is the file name prefix of every synthesized artifact
const artifactPrefix = "speech"

// ErrEmptyAudio is returned by an engine that produced no audio
var ErrEmptyAudio = errors.New("tts: engine returned no audio")

// engine writes the speech for text to path
type engine interface {
	synthesize(ctx context.Context, text, path string) error
}

// New builds the synthesizer registered under backend from its config section
func New(backend string, node *yaml.Node, store *artifact.Store, logger *zap.Logger) (repositories.TextToSpeech, error) {
	logger = logger.With(zap.String("tts", backend))

	switch backend {
	case BackendFishSpeech:
		var cfg FishSpeechConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		f, err := NewFishSpeechTTS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newGuard(backend, f, f.format, store, logger), nil
	case BackendGPTSoVITS:
		var cfg GPTSoVITSConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		g, err := NewGPTSoVITSTTS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newGuard(backend, g, entities.AudioFormatWAV, store, logger), nil
	case BackendIndexTTS:
		var cfg IndexTTSConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		i, err := NewIndexTTS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newGuard(backend, i, entities.AudioFormatWAV, store, logger), nil
	case BackendMegaTTS:
		var cfg MegaTTSConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		m, err := NewMegaTTS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newGuard(backend, m, entities.AudioFormatWAV, store, logger), nil
	case BackendSherpaOnnx:
		var cfg SherpaOnnxTTSConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		s, err := NewSherpaOnnxTTS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newGuard(backend, s, entities.AudioFormatWAV, store, logger), nil
	case BackendElevenLabs:
		var cfg ElevenLabsConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		e, err := NewElevenLabsTTS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return newGuard(backend, e, entities.AudioFormatMP3, store, logger), nil
	default:
		return nil, &config.UnknownBackendError{Category: "tts", Name: backend, Supported: Backends}
	}
}

// BackendError tags a synthesis failure with the engine that produced it
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("tts %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// guard adapts an engine to TextToSpeech. Engine failures and panics are
// logged and reported as a nil artifact; partial files are removed.
type guard struct {
	backend string
	engine  engine
	format  entities.AudioFormat
	store   *artifact.Store
	logger  *zap.Logger
}

// Ensure guard implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*guard)(nil)

func newGuard(backend string, eng engine, format entities.AudioFormat, store *artifact.Store, logger *zap.Logger) *guard {
	return &guard{
		backend: backend,
		engine:  eng,
		format:  format,
		store:   store,
		logger:  logger,
	}
}

// Format implements TextToSpeech
func (g *guard) Format() entities.AudioFormat {
	return g.format
}

// Close releases engines that hold native resources
func (g *guard) Close() {
	if c, ok := g.engine.(interface{ Close() }); ok {
		c.Close()
	}
}

// GenerateSpeech implements TextToSpeech
func (g *guard) GenerateSpeech(ctx context.Context, text string) (result *entities.SpeechArtifact) {
	if strings.TrimSpace(text) == "" {
		g.logger.Warn("Skipping speech synthesis for empty text")
		return nil
	}

	path := g.store.NewPath(artifactPrefix, g.format)

	defer func() {
		if r := recover(); r != nil {
			g.fail(path, fmt.Errorf("engine panic: %v", r))
			result = nil
		}
	}()

	if err := g.engine.synthesize(ctx, text, path); err != nil {
		g.fail(path, err)
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		g.fail(path, fmt.Errorf("artifact not written: %w", err))
		return nil
	}
	if info.Size() == 0 {
		g.fail(path, ErrEmptyAudio)
		return nil
	}

	g.logger.Info("Speech generated", zap.String("path", path), zap.Int64("bytes", info.Size()))
	return &entities.SpeechArtifact{Path: path, Format: g.format}
}

func (g *guard) fail(path string, err error) {
	g.logger.Error("Failed to generate speech", zap.Error(&BackendError{Backend: g.backend, Err: err}))
	if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
		g.logger.Warn("Failed to remove partial artifact", zap.String("path", path), zap.Error(rmErr))
	}
}
