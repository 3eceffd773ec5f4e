package asr

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/audio"
)

const (
	defaultFunASRURL        = "ws://127.0.0.1:10095"
	defaultFunASRMode       = "offline"
	defaultFunASRSampleRate = 16000
	defaultFunASRChunkBytes = 6400
	defaultFunASRTimeout    = 60 * time.Second
)

// FunASRConfig configures the FunASR runtime websocket client
type FunASRConfig struct {
	URL                string         `yaml:"url"`
	Mode               string         `yaml:"mode"` // offline or 2pass
	ChunkSize          []int          `yaml:"chunk_size"`
	ChunkInterval      int            `yaml:"chunk_interval"`
	UseITN             *bool          `yaml:"use_itn"`
	Language           string         `yaml:"language"`
	Hotwords           map[string]int `yaml:"hotwords"`
	SampleRate         int            `yaml:"sample_rate"`
	Timeout            time.Duration  `yaml:"timeout"`
	InsecureSkipVerify bool           `yaml:"insecure_skip_verify"`
}

// ValidateFunASRConfig validates the FunASRConfig
func ValidateFunASRConfig(config FunASRConfig) error {
	if config.URL != "" {
		u, err := url.Parse(config.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("funasr url must be a ws:// or wss:// address, got %q", config.URL)
		}
	}
	switch config.Mode {
	case "", "offline", "2pass":
	default:
		return fmt.Errorf("unsupported funasr mode %q (supported: offline, 2pass)", config.Mode)
	}
	if config.ChunkSize != nil && len(config.ChunkSize) != 3 {
		return fmt.Errorf("chunk_size must have 3 elements, got %d", len(config.ChunkSize))
	}
	if config.SampleRate < 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", config.SampleRate)
	}
	return nil
}

// FunASR implements SpeechToText against a FunASR runtime server
type FunASR struct {
	url        string
	mode       string
	chunkSize  []int
	interval   int
	useITN     bool
	language   string
	hotwords   string
	sampleRate int
	timeout    time.Duration
	dialer     *websocket.Dialer
	logger     *zap.Logger
}

// Ensure FunASR implements the SpeechToText interface
var _ repositories.SpeechToText = (*FunASR)(nil)

// NewFunASR creates a new FunASR runtime client
func NewFunASR(config FunASRConfig, logger *zap.Logger) (*FunASR, error) {
	if err := ValidateFunASRConfig(config); err != nil {
		return nil, err
	}

	f := &FunASR{
		url:        config.URL,
		mode:       config.Mode,
		chunkSize:  config.ChunkSize,
		interval:   config.ChunkInterval,
		useITN:     true,
		language:   config.Language,
		sampleRate: config.SampleRate,
		timeout:    config.Timeout,
		logger:     logger,
	}

	if f.url == "" {
		f.url = defaultFunASRURL
		logger.Info("Using default FunASR url", zap.String("url", f.url))
	}
	if f.mode == "" {
		f.mode = defaultFunASRMode
	}
	if f.chunkSize == nil {
		f.chunkSize = []int{5, 10, 5}
	}
	if f.interval == 0 {
		f.interval = 10
	}
	if config.UseITN != nil {
		f.useITN = *config.UseITN
	}
	if f.sampleRate == 0 {
		f.sampleRate = defaultFunASRSampleRate
		logger.Info("Using default sample rate", zap.Int("sampleRate", f.sampleRate))
	}
	if f.timeout == 0 {
		f.timeout = defaultFunASRTimeout
	}
	if len(config.Hotwords) > 0 {
		hw, err := json.Marshal(config.Hotwords)
		if err != nil {
			return nil, fmt.Errorf("failed to encode hotwords: %w", err)
		}
		f.hotwords = string(hw)
	}

	f.dialer = &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: config.InsecureSkipVerify},
	}

	return f, nil
}

// SampleRate implements SpeechToText
func (f *FunASR) SampleRate() int {
	return f.sampleRate
}

type funASRStart struct {
	Mode          string `json:"mode"`
	ChunkSize     []int  `json:"chunk_size"`
	ChunkInterval int    `json:"chunk_interval"`
	AudioFS       int    `json:"audio_fs"`
	WavName       string `json:"wav_name"`
	WavFormat     string `json:"wav_format"`
	IsSpeaking    bool   `json:"is_speaking"`
	Hotwords      string `json:"hotwords"`
	ITN           bool   `json:"itn"`
	SVSLang       string `json:"svs_lang,omitempty"`
}

type funASRResult struct {
	Mode    string `json:"mode"`
	Text    string `json:"text"`
	WavName string `json:"wav_name"`
	IsFinal bool   `json:"is_final"`
}

// Transcribe streams the samples to the runtime and waits for the final text
func (f *FunASR) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", backendError(BackendFunASR, ErrNoAudio)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return "", backendError(BackendFunASR, fmt.Errorf("failed to connect: %w", err))
	}
	defer conn.Close()

	// Unblock reads and writes when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	wavName := uuid.NewString()
	start := funASRStart{
		Mode:          f.mode,
		ChunkSize:     f.chunkSize,
		ChunkInterval: f.interval,
		AudioFS:       f.sampleRate,
		WavName:       wavName,
		WavFormat:     "pcm",
		IsSpeaking:    true,
		Hotwords:      f.hotwords,
		ITN:           f.useITN,
		SVSLang:       f.language,
	}
	if err := conn.WriteJSON(start); err != nil {
		return "", backendError(BackendFunASR, fmt.Errorf("failed to send start frame: %w", err))
	}

	pcm := audio.ToPCM16(samples)
	for off := 0; off < len(pcm); off += defaultFunASRChunkBytes {
		end := min(off+defaultFunASRChunkBytes, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			return "", backendError(BackendFunASR, fmt.Errorf("failed to send audio: %w", err))
		}
	}
	if err := conn.WriteJSON(map[string]bool{"is_speaking": false}); err != nil {
		return "", backendError(BackendFunASR, fmt.Errorf("failed to send end frame: %w", err))
	}

	var segments []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", backendError(BackendFunASR, ctx.Err())
			}
			return "", backendError(BackendFunASR, fmt.Errorf("failed to read result: %w", err))
		}

		var res funASRResult
		if err := json.Unmarshal(data, &res); err != nil {
			return "", backendError(BackendFunASR, fmt.Errorf("unexpected result frame: %w", err))
		}

		// 2pass sends online partials, then corrected "2pass-offline" segments.
		if strings.HasSuffix(res.Mode, "offline") {
			segments = append(segments, res.Text)
		}
		if res.Mode == "offline" || res.IsFinal {
			break
		}
	}

	text := cleanTranscript(strings.Join(segments, ""))
	f.logger.Debug("FunASR transcription completed", zap.String("wavName", wavName), zap.Int("chars", len(text)))
	return text, nil
}
