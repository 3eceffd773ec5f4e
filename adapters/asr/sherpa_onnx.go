package asr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/repositories"
)

// Sherpa-ONNX offline recognizer families
const (
	SherpaTransducer    = "transducer"
	SherpaParaformer    = "paraformer"
	SherpaSenseVoice    = "sense_voice"
	SherpaWhisper       = "whisper"
	SherpaNemoCTC       = "nemo_ctc"
	SherpaTeleSpeechCTC = "telespeech_ctc"
	SherpaFireRedASR    = "fire_red_asr"
	SherpaMoonshine     = "moonshine"
	SherpaTdnnCTC       = "tdnn_ctc"
	SherpaWenetCTC      = "wenet_ctc"
)

// SherpaSubModels lists the recognizer families in dispatch order
var SherpaSubModels = []string{
	SherpaTransducer, SherpaParaformer, SherpaSenseVoice, SherpaWhisper, SherpaNemoCTC,
	SherpaTeleSpeechCTC, SherpaFireRedASR, SherpaMoonshine, SherpaTdnnCTC, SherpaWenetCTC,
}

// ErrSherpaUnavailable is returned when the binary was built without the sherpa tag
var ErrSherpaUnavailable = errors.New("sherpa-onnx support not compiled in (build with -tags sherpa)")

// UnsupportedModelError reports an unknown recognizer family
type UnsupportedModelError struct {
	Model     string
	Supported []string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model type: %q (supported models: %s)", e.Model, strings.Join(e.Supported, ", "))
}

// SherpaOnnxConfig configures the Sherpa-ONNX offline recognizer.
// ModelName picks the family; the file fields it needs are listed in sherpaRequired.
type SherpaOnnxConfig struct {
	ModelName string `yaml:"model_name"`
	Tokens    string `yaml:"tokens"`

	Model           string `yaml:"model"`
	Encoder         string `yaml:"encoder"`
	Decoder         string `yaml:"decoder"`
	Joiner          string `yaml:"joiner"`
	Paraformer      string `yaml:"paraformer"`
	Preprocessor    string `yaml:"preprocessor"`
	UncachedDecoder string `yaml:"uncached_decoder"`
	CachedDecoder   string `yaml:"cached_decoder"`

	NumThreads     int     `yaml:"num_threads"`
	SampleRate     int     `yaml:"sample_rate"`
	FeatureDim     int     `yaml:"feature_dim"`
	DecodingMethod string  `yaml:"decoding_method"`
	Debug          bool    `yaml:"debug"`
	Provider       string  `yaml:"provider"`
	MaxActivePaths int     `yaml:"max_active_paths"`
	HotwordsFile   string  `yaml:"hotwords_file"`
	HotwordsScore  float32 `yaml:"hotwords_score"`
	BlankPenalty   float32 `yaml:"blank_penalty"`
	ModelingUnit   string  `yaml:"modeling_unit"`
	BpeVocab       string  `yaml:"bpe_vocab"`
	ModelType      string  `yaml:"model_type"`
	RuleFsts       string  `yaml:"rule_fsts"`
	RuleFars       string  `yaml:"rule_fars"`
	LM             string  `yaml:"lm"`
	LMScale        float32 `yaml:"lm_scale"`

	// Whisper and SenseVoice
	Language     string `yaml:"language"`
	Task         string `yaml:"task"`
	TailPaddings *int   `yaml:"tail_paddings"`
	UseITN       bool   `yaml:"use_itn"`
}

// sherpaRequired names the file settings each family cannot run without
var sherpaRequired = map[string][]string{
	SherpaTransducer:    {"encoder", "decoder", "joiner"},
	SherpaParaformer:    {"paraformer"},
	SherpaSenseVoice:    {"model"},
	SherpaWhisper:       {"encoder", "decoder"},
	SherpaNemoCTC:       {"model"},
	SherpaTeleSpeechCTC: {"model"},
	SherpaFireRedASR:    {"encoder", "decoder"},
	SherpaMoonshine:     {"preprocessor", "encoder", "uncached_decoder", "cached_decoder"},
	SherpaTdnnCTC:       {"model"},
	SherpaWenetCTC:      {"model"},
}

func (c *SherpaOnnxConfig) field(name string) string {
	switch name {
	case "model":
		return c.Model
	case "encoder":
		return c.Encoder
	case "decoder":
		return c.Decoder
	case "joiner":
		return c.Joiner
	case "paraformer":
		return c.Paraformer
	case "preprocessor":
		return c.Preprocessor
	case "uncached_decoder":
		return c.UncachedDecoder
	case "cached_decoder":
		return c.CachedDecoder
	default:
		return ""
	}
}

// applyDefaults fills the values the recognizer families share
func (c *SherpaOnnxConfig) applyDefaults(logger *zap.Logger) {
	if c.ModelName == "" {
		c.ModelName = SherpaParaformer
		logger.Info("Using default sherpa-onnx model", zap.String("modelName", c.ModelName))
	}
	if c.NumThreads == 0 {
		c.NumThreads = 1
	}
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.FeatureDim == 0 {
		c.FeatureDim = 80
	}
	if c.DecodingMethod == "" {
		c.DecodingMethod = "greedy_search"
	}
	if c.Provider == "" {
		c.Provider = "cpu"
	}
	if c.MaxActivePaths == 0 {
		c.MaxActivePaths = 4
	}
	if c.HotwordsScore == 0 {
		c.HotwordsScore = 1.5
	}
	if c.ModelingUnit == "" {
		c.ModelingUnit = "cjkchar"
	}
	if c.LMScale == 0 {
		c.LMScale = 0.1
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.Task == "" {
		c.Task = "transcribe"
	}
	if c.TailPaddings == nil {
		tp := -1
		c.TailPaddings = &tp
	}
}

// ValidateSherpaOnnxConfig checks the family name and that its model files exist
func ValidateSherpaOnnxConfig(config SherpaOnnxConfig) error {
	required, ok := sherpaRequired[config.ModelName]
	if !ok {
		return &UnsupportedModelError{Model: config.ModelName, Supported: SherpaSubModels}
	}

	files := append([]string{"tokens"}, required...)
	for _, name := range files {
		path := config.Tokens
		if name != "tokens" {
			path = config.field(name)
		}
		if path == "" {
			return fmt.Errorf("sherpa-onnx %s model requires %q", config.ModelName, name)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("sherpa-onnx %s: %s file: %w", config.ModelName, name, err)
		}
	}

	if config.NumThreads < 0 {
		return fmt.Errorf("num_threads must be positive, got %d", config.NumThreads)
	}
	switch config.DecodingMethod {
	case "greedy_search", "modified_beam_search":
	default:
		return fmt.Errorf("unsupported decoding_method %q (supported: greedy_search, modified_beam_search)", config.DecodingMethod)
	}
	if config.HotwordsFile != "" && config.ModelName != SherpaTransducer {
		return fmt.Errorf("hotwords_file is only supported by the transducer model")
	}
	return nil
}

// sherpaEngine is the native recognizer behind SherpaOnnxASR
type sherpaEngine interface {
	Recognize(sampleRate int, samples []float32) string
	Close()
}

// SherpaOnnxASR implements SpeechToText with a Sherpa-ONNX offline recognizer
type SherpaOnnxASR struct {
	modelName  string
	sampleRate int
	engine     sherpaEngine
	mu         sync.Mutex
	logger     *zap.Logger
}

// Ensure SherpaOnnxASR implements the SpeechToText interface
var _ repositories.SpeechToText = (*SherpaOnnxASR)(nil)

// NewSherpaOnnxASR validates config and creates the recognizer for its family
func NewSherpaOnnxASR(config SherpaOnnxConfig, logger *zap.Logger) (*SherpaOnnxASR, error) {
	config.applyDefaults(logger)
	if err := ValidateSherpaOnnxConfig(config); err != nil {
		return nil, err
	}

	logger.Info("Creating sherpa-onnx recognizer",
		zap.String("modelName", config.ModelName),
		zap.Int("numThreads", config.NumThreads),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("provider", config.Provider))

	engine, err := newSherpaEngine(config)
	if err != nil {
		return nil, err
	}
	return newSherpaOnnxASR(config, engine, logger), nil
}

func newSherpaOnnxASR(config SherpaOnnxConfig, engine sherpaEngine, logger *zap.Logger) *SherpaOnnxASR {
	return &SherpaOnnxASR{
		modelName:  config.ModelName,
		sampleRate: config.SampleRate,
		engine:     engine,
		logger:     logger,
	}
}

// SampleRate implements SpeechToText
func (s *SherpaOnnxASR) SampleRate() int {
	return s.sampleRate
}

// Transcribe decodes the samples on the native recognizer
func (s *SherpaOnnxASR) Transcribe(ctx context.Context, samples []float32) (text string, err error) {
	if len(samples) == 0 {
		return "", backendError(BackendSherpaOnnx, ErrNoAudio)
	}
	if err := ctx.Err(); err != nil {
		return "", backendError(BackendSherpaOnnx, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = backendError(BackendSherpaOnnx, fmt.Errorf("recognizer panic: %v", r))
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	text = cleanTranscript(s.engine.Recognize(s.sampleRate, samples))
	s.logger.Debug("Sherpa-onnx transcription completed", zap.String("modelName", s.modelName), zap.Int("chars", len(text)))
	return text, nil
}

// Close releases the native recognizer
func (s *SherpaOnnxASR) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
}
