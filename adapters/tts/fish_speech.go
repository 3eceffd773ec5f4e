package tts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/entities"
)

const (
	defaultFishBaseURL     = "https://api.fish.audio"
	defaultFishReferenceID = "0eb38bc974e1459facca38b359e13511"
	defaultFishLatency     = "normal"
	defaultFishBackend     = "speech-1.5"
	defaultFishChunkLength = 200
	defaultFishTimeout     = 120 * time.Second
)

// FishSpeechConfig configures the Fish Audio TTS API
type FishSpeechConfig struct {
	APIKey      string        `yaml:"api_key"` // Required
	BaseURL     string        `yaml:"base_url"`
	ReferenceID string        `yaml:"reference_id"`
	Latency     string        `yaml:"latency"` // normal or balanced
	Format      string        `yaml:"format"`  // mp3, wav or pcm
	Backend     string        `yaml:"backend"` // speech-1.5, speech-1.6 or s1
	Timeout     time.Duration `yaml:"timeout"`
}

// ValidateFishSpeechConfig validates the FishSpeechConfig
func ValidateFishSpeechConfig(config FishSpeechConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("fish audio API key is required")
	}
	switch config.Latency {
	case "", "normal", "balanced":
	default:
		return fmt.Errorf("unsupported latency %q (supported: normal, balanced)", config.Latency)
	}
	switch config.Backend {
	case "", "speech-1.5", "speech-1.6", "s1":
	default:
		return fmt.Errorf("unsupported fish audio backend %q (supported: speech-1.5, speech-1.6, s1)", config.Backend)
	}
	if config.Format != "" {
		if _, err := entities.ParseAudioFormat(config.Format); err != nil {
			return err
		}
	}
	return nil
}

// FishSpeechTTS synthesizes speech with the Fish Audio API
type FishSpeechTTS struct {
	apiKey      string
	baseURL     string
	referenceID string
	latency     string
	format      entities.AudioFormat
	backend     string
	httpClient  *http.Client
	logger      *zap.Logger
}

type fishRequest struct {
	Text        string `json:"text"`
	ReferenceID string `json:"reference_id"`
	Format      string `json:"format"`
	Latency     string `json:"latency"`
	ChunkLength int    `json:"chunk_length"`
	Normalize   bool   `json:"normalize"`
}

// NewFishSpeechTTS creates a new Fish Audio client
func NewFishSpeechTTS(config FishSpeechConfig, logger *zap.Logger) (*FishSpeechTTS, error) {
	if err := ValidateFishSpeechConfig(config); err != nil {
		return nil, err
	}

	f := &FishSpeechTTS{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		referenceID: config.ReferenceID,
		latency:     config.Latency,
		format:      entities.AudioFormat(config.Format),
		backend:     config.Backend,
		logger:      logger,
	}

	if f.baseURL == "" {
		f.baseURL = defaultFishBaseURL
		logger.Info("Using default Fish Audio base URL", zap.String("baseURL", f.baseURL))
	}
	if f.referenceID == "" {
		f.referenceID = defaultFishReferenceID
		logger.Info("Using default reference ID", zap.String("referenceID", f.referenceID))
	}
	if f.latency == "" {
		f.latency = defaultFishLatency
	}
	if f.format == "" {
		f.format = entities.AudioFormatWAV
		logger.Info("Using default format", zap.String("format", string(f.format)))
	}
	if f.backend == "" {
		f.backend = defaultFishBackend
		logger.Info("Using default backend", zap.String("backend", f.backend))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultFishTimeout
	}
	f.httpClient = &http.Client{Timeout: timeout}

	return f, nil
}

func (f *FishSpeechTTS) synthesize(ctx context.Context, text, path string) error {
	body, err := jsonBody(fishRequest{
		Text:        text,
		ReferenceID: f.referenceID,
		Format:      string(f.format),
		Latency:     f.latency,
		ChunkLength: defaultFishChunkLength,
		Normalize:   true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/tts", body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("model", f.backend)

	f.logger.Debug("Sending request to Fish Audio", zap.String("referenceID", f.referenceID), zap.Int("chars", len(text)))
	return saveResponse(f.httpClient, req, path)
}
