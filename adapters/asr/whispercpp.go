package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/audio"
)

const (
	defaultWhisperCppURL      = "http://127.0.0.1:8080"
	defaultWhisperCppLanguage = "en"
	defaultWhisperCppTimeout  = 120 * time.Second
	whisperSampleRate         = 16000
)

// WhisperCppConfig configures the whisper.cpp server client
type WhisperCppConfig struct {
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`      // Optional: loaded through /load at startup
	ModelsDir   string        `yaml:"models_dir"` // Optional: directory Model is resolved against
	Language    string        `yaml:"language"`
	Temperature float64       `yaml:"temperature"`
	Translate   bool          `yaml:"translate"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ValidateWhisperCppConfig validates the WhisperCppConfig
func ValidateWhisperCppConfig(config WhisperCppConfig) error {
	if config.URL != "" {
		if u, err := url.Parse(config.URL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid whispercpp url %q", config.URL)
		}
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	return nil
}

// WhisperCppASR implements SpeechToText against a whisper.cpp server
type WhisperCppASR struct {
	baseURL     string
	language    string
	temperature float64
	translate   bool
	httpClient  *http.Client
	logger      *zap.Logger
}

// Ensure WhisperCppASR implements the SpeechToText interface
var _ repositories.SpeechToText = (*WhisperCppASR)(nil)

// NewWhisperCppASR creates a new whisper.cpp client and loads the model if one is configured
func NewWhisperCppASR(config WhisperCppConfig, logger *zap.Logger) (*WhisperCppASR, error) {
	if err := ValidateWhisperCppConfig(config); err != nil {
		return nil, err
	}

	baseURL := config.URL
	if baseURL == "" {
		baseURL = defaultWhisperCppURL
		logger.Info("Using default whisper.cpp url", zap.String("url", baseURL))
	}

	language := config.Language
	if language == "" {
		language = defaultWhisperCppLanguage
		logger.Info("Using default language", zap.String("language", language))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultWhisperCppTimeout
	}

	w := &WhisperCppASR{
		baseURL:     strings.TrimRight(baseURL, "/"),
		language:    language,
		temperature: config.Temperature,
		translate:   config.Translate,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}

	if config.Model != "" {
		model := config.Model
		if config.ModelsDir != "" && !filepath.IsAbs(model) {
			model = filepath.Join(config.ModelsDir, model)
		}
		if err := w.loadModel(context.Background(), model); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// SampleRate implements SpeechToText
func (w *WhisperCppASR) SampleRate() int {
	return whisperSampleRate
}

func (w *WhisperCppASR) loadModel(ctx context.Context, model string) error {
	body, contentType, err := multipartBody(func(mw *multipart.Writer) error {
		return mw.WriteField("model", model)
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/load", body)
	if err != nil {
		return fmt.Errorf("failed to create load request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load whisper model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("whisper model load returned status %d: %s", resp.StatusCode, msg)
	}

	w.logger.Info("Loaded whisper model", zap.String("model", model))
	return nil
}

// Transcribe uploads the samples as WAV to /inference
func (w *WhisperCppASR) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", backendError(BackendWhisperCpp, ErrNoAudio)
	}

	wav, err := audio.WAVBytes(samples, whisperSampleRate)
	if err != nil {
		return "", backendError(BackendWhisperCpp, err)
	}

	body, contentType, err := multipartBody(func(mw *multipart.Writer) error {
		part, err := mw.CreateFormFile("file", "audio.wav")
		if err != nil {
			return err
		}
		if _, err := part.Write(wav); err != nil {
			return err
		}
		fields := map[string]string{
			"temperature":     strconv.FormatFloat(w.temperature, 'f', -1, 64),
			"response_format": "json",
			"language":        w.language,
			"translate":       strconv.FormatBool(w.translate),
		}
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", backendError(BackendWhisperCpp, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/inference", body)
	if err != nil {
		return "", backendError(BackendWhisperCpp, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", backendError(BackendWhisperCpp, fmt.Errorf("failed to execute HTTP request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", backendError(BackendWhisperCpp, fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg))
	}

	var result struct {
		Text  string `json:"text"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", backendError(BackendWhisperCpp, fmt.Errorf("failed to decode response: %w", err))
	}
	if result.Error != "" {
		return "", backendError(BackendWhisperCpp, fmt.Errorf("server error: %s", result.Error))
	}

	return strings.TrimSpace(result.Text), nil
}

func multipartBody(fill func(*multipart.Writer) error) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := fill(mw); err != nil {
		return nil, "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to build multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
