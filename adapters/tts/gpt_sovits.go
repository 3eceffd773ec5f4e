package tts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultGPTSoVITSURL       = "http://127.0.0.1:5000"
	defaultGPTSoVITSCharacter = "【原神】八重神子"
	defaultGPTSoVITSEmotion   = "default"
	defaultGPTSoVITSLanguage  = "zh"
	defaultGPTSoVITSTimeout   = 120 * time.Second
)

// GPTSoVITSConfig configures a GPT-SoVITS inference server
type GPTSoVITSConfig struct {
	APIURL       string        `yaml:"api_url"`
	Character    string        `yaml:"character"`
	Emotion      string        `yaml:"emotion"`
	TextLanguage string        `yaml:"text_language"`
	BatchSize    int           `yaml:"batch_size"`
	Speed        float64       `yaml:"speed"`
	TopK         int           `yaml:"top_k"`
	TopP         float64       `yaml:"top_p"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
}

// GPTSoVITSTTS synthesizes speech through the GPT-SoVITS /tts endpoint
type GPTSoVITSTTS struct {
	apiURL     string
	params     gptSoVITSRequest
	httpClient *http.Client
	logger     *zap.Logger
}

type gptSoVITSRequest struct {
	Character    string  `json:"character"`
	Emotion      string  `json:"emotion"`
	Text         string  `json:"text"`
	TextLanguage string  `json:"text_language"`
	BatchSize    int     `json:"batch_size"`
	Speed        float64 `json:"speed"`
	TopK         int     `json:"top_k"`
	TopP         float64 `json:"top_p"`
	Temperature  float64 `json:"temperature"`
	Stream       string  `json:"stream"`
	SaveTemp     string  `json:"save_temp"`
}

// NewGPTSoVITSTTS creates a new GPT-SoVITS client
func NewGPTSoVITSTTS(config GPTSoVITSConfig, logger *zap.Logger) (*GPTSoVITSTTS, error) {
	apiURL := strings.TrimRight(config.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultGPTSoVITSURL
		logger.Info("Using default GPT-SoVITS url", zap.String("apiURL", apiURL))
	}
	if u, err := url.Parse(apiURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gpt_sovits api_url %q", config.APIURL)
	}
	if config.TopP < 0 || config.TopP > 1 {
		return nil, fmt.Errorf("top_p must be between 0 and 1, got %f", config.TopP)
	}

	p := gptSoVITSRequest{
		Character:    config.Character,
		Emotion:      config.Emotion,
		TextLanguage: config.TextLanguage,
		BatchSize:    config.BatchSize,
		Speed:        config.Speed,
		TopK:         config.TopK,
		TopP:         config.TopP,
		Temperature:  config.Temperature,
		Stream:       "False",
		SaveTemp:     "False",
	}
	if p.Character == "" {
		p.Character = defaultGPTSoVITSCharacter
		logger.Info("Using default character", zap.String("character", p.Character))
	}
	if p.Emotion == "" {
		p.Emotion = defaultGPTSoVITSEmotion
	}
	if p.TextLanguage == "" {
		p.TextLanguage = defaultGPTSoVITSLanguage
		logger.Info("Using default text language", zap.String("textLanguage", p.TextLanguage))
	}
	if p.BatchSize == 0 {
		p.BatchSize = 1
	}
	if p.Speed == 0 {
		p.Speed = 1.0
	}
	if p.TopK == 0 {
		p.TopK = 3
	}
	if p.TopP == 0 {
		p.TopP = 0.7
	}
	if p.Temperature == 0 {
		p.Temperature = 0.7
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultGPTSoVITSTimeout
	}

	return &GPTSoVITSTTS{
		apiURL:     apiURL,
		params:     p,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (g *GPTSoVITSTTS) synthesize(ctx context.Context, text, path string) error {
	payload := g.params
	payload.Text = text

	body, err := jsonBody(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/tts", body)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	g.logger.Debug("Sending request to GPT-SoVITS",
		zap.String("character", payload.Character),
		zap.String("emotion", payload.Emotion))
	return saveResponse(g.httpClient, req, path)
}
