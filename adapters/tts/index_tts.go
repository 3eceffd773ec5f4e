package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/internal/gradio"
)

const (
	defaultIndexTTSURL       = "http://127.0.0.1:7860"
	defaultIndexTTSInferMode = "普通推理"
	defaultIndexTTSTimeout   = 180 * time.Second
)

// IndexTTSConfig configures an IndexTTS Gradio app
type IndexTTSConfig struct {
	APIURL                   string        `yaml:"api_url"`
	PromptAudioPath          string        `yaml:"prompt_audio_path"` // Required: reference voice
	InferMode                string        `yaml:"infer_mode"`        // 普通推理 or 批次推理
	MaxTextTokensPerSentence int           `yaml:"max_text_tokens_per_sentence"`
	SentencesBucketMaxSize   int           `yaml:"sentences_bucket_max_size"`
	Timeout                  time.Duration `yaml:"timeout"`
}

// IndexTTS synthesizes speech through the IndexTTS /gen_single endpoint
type IndexTTS struct {
	client          *gradio.Client
	promptAudioPath string
	inferMode       string
	maxTokens       int
	bucketSize      int
	logger          *zap.Logger
}

// NewIndexTTS creates a new IndexTTS client
func NewIndexTTS(config IndexTTSConfig, logger *zap.Logger) (*IndexTTS, error) {
	if config.PromptAudioPath == "" {
		return nil, errors.New("index_tts prompt_audio_path is required")
	}
	if _, err := os.Stat(config.PromptAudioPath); err != nil {
		return nil, fmt.Errorf("index_tts prompt audio: %w", err)
	}
	switch config.InferMode {
	case "", "普通推理", "批次推理":
	default:
		return nil, fmt.Errorf("unsupported infer_mode %q (supported: 普通推理, 批次推理)", config.InferMode)
	}

	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = defaultIndexTTSURL
		logger.Info("Using default IndexTTS url", zap.String("apiURL", apiURL))
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultIndexTTSTimeout
	}
	client, err := gradio.NewClient(apiURL, timeout, logger)
	if err != nil {
		return nil, err
	}

	i := &IndexTTS{
		client:          client,
		promptAudioPath: config.PromptAudioPath,
		inferMode:       config.InferMode,
		maxTokens:       config.MaxTextTokensPerSentence,
		bucketSize:      config.SentencesBucketMaxSize,
		logger:          logger,
	}
	if i.inferMode == "" {
		i.inferMode = defaultIndexTTSInferMode
	}
	if i.maxTokens == 0 {
		i.maxTokens = 120
	}
	if i.bucketSize == 0 {
		i.bucketSize = 4
	}
	return i, nil
}

func (i *IndexTTS) synthesize(ctx context.Context, text, path string) error {
	if _, err := os.Stat(i.promptAudioPath); err != nil {
		return fmt.Errorf("prompt audio file not found: %w", err)
	}

	prompt, err := i.client.Upload(ctx, i.promptAudioPath)
	if err != nil {
		return err
	}

	// Positional inputs of /gen_single; the trailing values are the sampling settings.
	out, err := i.client.Predict(ctx, "/gen_single", []any{
		gradio.FileInput(prompt),
		text,
		i.inferMode,
		i.maxTokens,
		i.bucketSize,
		true, // do_sample
		0.8,  // top_p
		30,   // top_k
		1.0,  // temperature
		0,    // length_penalty
		3,    // num_beams
		10.0, // repetition_penalty
		600,  // max_mel_tokens
	})
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return errors.New("gen_single returned no outputs")
	}

	file, err := gradio.ParseFile(out[0])
	if err != nil {
		return err
	}
	return i.client.Download(ctx, file, path)
}
