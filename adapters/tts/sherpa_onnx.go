package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/internal/audio"
)

// ErrSherpaUnavailable is returned when the binary was built without the sherpa tag
var ErrSherpaUnavailable = errors.New("sherpa-onnx support not compiled in (build with -tags sherpa)")

// SherpaVitsConfig holds the VITS model files
type SherpaVitsConfig struct {
	Model   string `yaml:"model"`
	Lexicon string `yaml:"lexicon"`
	Tokens  string `yaml:"tokens"`
	DataDir string `yaml:"data_dir"` // espeak-ng data
	DictDir string `yaml:"dict_dir"` // jieba dict
}

// SherpaMatchaConfig holds the Matcha acoustic model and vocoder files
type SherpaMatchaConfig struct {
	AcousticModel string `yaml:"acoustic_model"`
	Vocoder       string `yaml:"vocoder"`
	Lexicon       string `yaml:"lexicon"`
	Tokens        string `yaml:"tokens"`
	DataDir       string `yaml:"data_dir"`
	DictDir       string `yaml:"dict_dir"`
}

// SherpaKokoroConfig holds the Kokoro model files
type SherpaKokoroConfig struct {
	Model   string `yaml:"model"`
	Voices  string `yaml:"voices"`
	Lexicon string `yaml:"lexicon"`
	Tokens  string `yaml:"tokens"`
	DataDir string `yaml:"data_dir"`
	DictDir string `yaml:"dict_dir"`
}

// SherpaOnnxTTSConfig configures the Sherpa-ONNX offline synthesizer.
// Exactly one of Vits, Matcha or Kokoro must be set.
type SherpaOnnxTTSConfig struct {
	Vits            *SherpaVitsConfig   `yaml:"vits"`
	Matcha          *SherpaMatchaConfig `yaml:"matcha"`
	Kokoro          *SherpaKokoroConfig `yaml:"kokoro"`
	Provider        string              `yaml:"provider"`
	Debug           bool                `yaml:"debug"`
	NumThreads      int                 `yaml:"num_threads"`
	RuleFsts        string              `yaml:"rule_fsts"`
	MaxNumSentences int                 `yaml:"max_num_sentences"`
	SID             int                 `yaml:"sid"`
	Speed           float32             `yaml:"speed"`
}

// Family returns the configured model family name
func (c SherpaOnnxTTSConfig) Family() string {
	switch {
	case c.Vits != nil:
		return "vits"
	case c.Matcha != nil:
		return "matcha"
	case c.Kokoro != nil:
		return "kokoro"
	default:
		return ""
	}
}

// ValidateSherpaOnnxTTSConfig checks that one family is configured with its model files
func ValidateSherpaOnnxTTSConfig(config SherpaOnnxTTSConfig) error {
	n := 0
	for _, set := range []bool{config.Vits != nil, config.Matcha != nil, config.Kokoro != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("sherpa_onnx tts needs exactly one of vits, matcha or kokoro, got %d", n)
	}

	var required [][2]string
	switch {
	case config.Vits != nil:
		required = [][2]string{{"vits.model", config.Vits.Model}, {"vits.tokens", config.Vits.Tokens}}
	case config.Matcha != nil:
		required = [][2]string{
			{"matcha.acoustic_model", config.Matcha.AcousticModel},
			{"matcha.vocoder", config.Matcha.Vocoder},
			{"matcha.tokens", config.Matcha.Tokens},
		}
	case config.Kokoro != nil:
		required = [][2]string{
			{"kokoro.model", config.Kokoro.Model},
			{"kokoro.voices", config.Kokoro.Voices},
			{"kokoro.tokens", config.Kokoro.Tokens},
		}
	}
	for _, r := range required {
		if r[1] == "" {
			return fmt.Errorf("sherpa_onnx tts requires %s", r[0])
		}
		if _, err := os.Stat(r[1]); err != nil {
			return fmt.Errorf("sherpa_onnx tts %s: %w", r[0], err)
		}
	}

	if config.Speed < 0 {
		return fmt.Errorf("speed must be positive, got %f", config.Speed)
	}
	return nil
}

// sherpaSynth is the native synthesizer behind SherpaOnnxTTS
type sherpaSynth interface {
	Generate(text string, sid int, speed float32) (samples []float32, sampleRate int)
	Close()
}

// SherpaOnnxTTS synthesizes speech locally and writes PCM16 wav files
type SherpaOnnxTTS struct {
	synth  sherpaSynth
	sid    int
	speed  float32
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSherpaOnnxTTS validates config and loads the synthesizer
func NewSherpaOnnxTTS(config SherpaOnnxTTSConfig, logger *zap.Logger) (*SherpaOnnxTTS, error) {
	if config.Provider == "" {
		config.Provider = "cpu"
	}
	if config.NumThreads == 0 {
		config.NumThreads = 1
	}
	if config.MaxNumSentences == 0 {
		config.MaxNumSentences = 2
	}
	if config.Speed == 0 {
		config.Speed = 1.0
	}
	if err := ValidateSherpaOnnxTTSConfig(config); err != nil {
		return nil, err
	}

	logger.Info("Creating sherpa-onnx synthesizer",
		zap.String("family", config.Family()),
		zap.String("provider", config.Provider),
		zap.Int("numThreads", config.NumThreads),
		zap.Int("sid", config.SID))

	synth, err := newSherpaSynth(config)
	if err != nil {
		return nil, err
	}
	return newSherpaOnnxTTS(config, synth, logger), nil
}

func newSherpaOnnxTTS(config SherpaOnnxTTSConfig, synth sherpaSynth, logger *zap.Logger) *SherpaOnnxTTS {
	return &SherpaOnnxTTS{
		synth:  synth,
		sid:    config.SID,
		speed:  config.Speed,
		logger: logger,
	}
}

func (s *SherpaOnnxTTS) synthesize(ctx context.Context, text, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	samples, rate := s.synth.Generate(text, s.sid, s.speed)
	s.mu.Unlock()

	if len(samples) == 0 {
		return ErrEmptyAudio
	}
	return audio.WriteWAVFile(path, samples, rate)
}

// Close releases the native synthesizer
func (s *SherpaOnnxTTS) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synth != nil {
		s.synth.Close()
		s.synth = nil
	}
}
