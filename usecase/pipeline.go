package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/artifact"
	"github.com/satriahrh/emotivoice/internal/config"
	"github.com/satriahrh/emotivoice/internal/metrics"
)

// Default apology replies used when the model output cannot be used
const (
	DefaultFallbackText  = "Sorry, I can't handle your request right now. Please try again later."
	DefaultFallbackAudio = "Sorry, I couldn't understand your voice input right now. Please try again later."
)

// Fallback reasons reported to metrics
const (
	FallbackStreamError = "stream_error"
	FallbackParseFailed = "parse_failed"
	FallbackEmptyText   = "empty_text"
)

var (
	// ErrTextOnlyMode is returned by ChatAudio when no recognizer is configured
	ErrTextOnlyMode = errors.New("audio mode is not supported in text only mode")
	// ErrEmptyInput is returned when the request carries no text or samples
	ErrEmptyInput = errors.New("input is empty")
	// ErrTranscription wraps recognizer failures
	ErrTranscription = errors.New("transcription failed")
)

// State is a step of the per-request pipeline
type State string

const (
	StateReceived     State = "received"
	StateTranscribing State = "transcribing"
	StateBuilding     State = "building_context"
	StateStreaming    State = "streaming_llm"
	StateParsing      State = "parsing_reply"
	StateSynthesizing State = "synthesizing_speech"
	StateResponding   State = "responding"
)

// PipelineConfig is the part of the configuration the pipeline depends on
type PipelineConfig struct {
	Prompt         PromptConfig
	HistoryContext int
	FallbackText   string
	FallbackAudio  string
	Timeouts       config.Timeouts
	Backends       config.DefaultModel
}

// NewPipelineConfig picks the pipeline inputs out of the service configuration
func NewPipelineConfig(cfg *config.Config) PipelineConfig {
	return PipelineConfig{
		Prompt:         NewPromptConfig(cfg),
		HistoryContext: cfg.System.HistoryContext,
		FallbackText:   cfg.System.Fallback.Text,
		FallbackAudio:  cfg.System.Fallback.Audio,
		Timeouts:       cfg.Timeouts,
		Backends:       cfg.System.DefaultModel,
	}
}

// ChatResult is the outcome of one chat turn
type ChatResult struct {
	ASRText   *string
	Text      string
	Motion    string
	AudioPath *string
	Fallback  bool
}

// Pipeline runs transcription, the model turn and speech synthesis for one request
type Pipeline struct {
	config       PipelineConfig
	systemPrompt string
	asr          repositories.SpeechToText
	llm          repositories.LargeLanguageModel
	tts          repositories.TextToSpeech
	history      repositories.HistoryRepository
	metrics      *metrics.Collector
	store        *artifact.Store
	logger       *zap.Logger
}

// NewPipeline wires the adapters together. asr may be nil in text only
// mode; history may be nil when no transcript is replayed.
func NewPipeline(
	cfg PipelineConfig,
	asr repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	history repositories.HistoryRepository,
	collector *metrics.Collector,
	store *artifact.Store,
	logger *zap.Logger,
) *Pipeline {
	if cfg.FallbackText == "" {
		cfg.FallbackText = DefaultFallbackText
		logger.Info("Using default text fallback reply", zap.String("fallbackText", cfg.FallbackText))
	}
	if cfg.FallbackAudio == "" {
		cfg.FallbackAudio = DefaultFallbackAudio
		logger.Info("Using default audio fallback reply", zap.String("fallbackAudio", cfg.FallbackAudio))
	}

	prompt := BuildSystemPrompt(cfg.Prompt)
	logger.Debug("Built system prompt", zap.Int("chars", len(prompt)), zap.Strings("motions", cfg.Prompt.Motions.Names()))

	return &Pipeline{
		config:       cfg,
		systemPrompt: prompt,
		asr:          asr,
		llm:          llm,
		tts:          tts,
		history:      history,
		metrics:      collector,
		store:        store,
		logger:       logger,
	}
}

// SystemPrompt returns the system message sent with every turn
func (p *Pipeline) SystemPrompt() string {
	return p.systemPrompt
}

// AudioEnabled reports whether ChatAudio can serve requests
func (p *Pipeline) AudioEnabled() bool {
	return p.asr != nil
}

// SampleRate is the rate ChatAudio expects samples at, zero in text only mode
func (p *Pipeline) SampleRate() int {
	if p.asr == nil {
		return 0
	}
	return p.asr.SampleRate()
}

// ChatText answers a typed message
func (p *Pipeline) ChatText(ctx context.Context, input string) (*ChatResult, error) {
	logger := p.logger.With(zap.String("route", "text"))
	logger.Debug("Pipeline state", zap.String("state", string(StateReceived)))

	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	return p.converse(ctx, input, p.config.FallbackText, logger), nil
}

// ChatAudio transcribes mono samples at the recognizer's sample rate and answers them.
// Recognizer failures are returned wrapped in ErrTranscription.
func (p *Pipeline) ChatAudio(ctx context.Context, samples []float32) (*ChatResult, error) {
	logger := p.logger.With(zap.String("route", "audio"))
	logger.Debug("Pipeline state", zap.String("state", string(StateReceived)))

	if p.asr == nil {
		return nil, ErrTextOnlyMode
	}
	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}

	logger.Debug("Pipeline state", zap.String("state", string(StateTranscribing)), zap.Int("samples", len(samples)))
	asrCtx, cancel := withTimeout(ctx, p.config.Timeouts.ASR)
	start := time.Now()
	text, err := p.asr.Transcribe(asrCtx, samples)
	cancel()
	p.metrics.ObserveStage(metrics.StageASR, p.config.Backends.ASR, time.Since(start), err != nil)
	if err != nil {
		logger.Error("Transcription failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	if text == "" {
		logger.Warn("Recognizer returned an empty transcript")
	}
	logger.Info("Transcription completed", zap.String("asrText", text), zap.Duration("elapsed", time.Since(start)))

	result := p.converse(ctx, text, p.config.FallbackAudio, logger)
	result.ASRText = &text
	return result, nil
}

func (p *Pipeline) converse(ctx context.Context, input, fallback string, logger *zap.Logger) *ChatResult {
	logger.Debug("Pipeline state", zap.String("state", string(StateBuilding)))
	messages := p.buildMessages(ctx, input, logger)

	logger.Debug("Pipeline state", zap.String("state", string(StateStreaming)))
	raw, streamErr := p.streamReply(ctx, messages)

	logger.Debug("Pipeline state", zap.String("state", string(StateParsing)))
	var reply *entities.StructuredReply
	reason := ""
	switch {
	case streamErr != nil:
		logger.Error("Model stream failed", zap.Error(streamErr))
		reason = FallbackStreamError
	default:
		reply = ParseReply(raw)
		if reply == nil {
			logger.Warn("Failed to parse model reply", zap.String("raw", raw))
			reason = FallbackParseFailed
		} else if strings.TrimSpace(reply.Text) == "" {
			logger.Warn("Model reply has empty text", zap.String("raw", raw))
			reason = FallbackEmptyText
		}
	}

	result := &ChatResult{}
	if reason != "" {
		p.metrics.RecordFallback(reason)
		result.Text = fallback
		result.Motion = entities.MotionIdle
		result.Fallback = true
	} else {
		result.Text = reply.Text
		result.Motion = p.normalizeMotion(reply.Motion, logger)
	}

	logger.Debug("Pipeline state", zap.String("state", string(StateSynthesizing)))
	ttsCtx, cancel := withTimeout(ctx, p.config.Timeouts.TTS)
	start := time.Now()
	speech := p.tts.GenerateSpeech(ttsCtx, result.Text)
	cancel()
	p.metrics.ObserveStage(metrics.StageTTS, p.config.Backends.TTS, time.Since(start), speech == nil)
	if speech == nil {
		logger.Warn("Speech synthesis unavailable, replying without audio")
	}

	logger.Debug("Pipeline state", zap.String("state", string(StateResponding)))
	result.AudioPath = p.store.PublicPath(speech)

	logger.Info("Chat turn completed",
		zap.String("motion", result.Motion),
		zap.Bool("fallback", result.Fallback),
		zap.Bool("audio", result.AudioPath != nil))
	return result
}

// buildMessages assembles the system prompt, replayed transcript lines and the new user turn
func (p *Pipeline) buildMessages(ctx context.Context, input string, logger *zap.Logger) []entities.ConversationMessage {
	messages := []entities.ConversationMessage{{Role: entities.RoleSystem, Content: p.systemPrompt}}

	if p.config.HistoryContext > 0 && p.history != nil {
		record, err := p.history.Load(ctx)
		if err != nil {
			logger.Warn("Failed to load history context", zap.Error(err))
		} else if record != nil {
			lines := record.Messages
			if len(lines) > p.config.HistoryContext {
				lines = lines[len(lines)-p.config.HistoryContext:]
			}
			for _, line := range lines {
				turn := line.Conversation()
				if strings.TrimSpace(turn.Content) == "" {
					continue
				}
				messages = append(messages, turn)
			}
		}
	}

	return append(messages, entities.ConversationMessage{Role: entities.RoleUser, Content: input})
}

// streamReply accumulates the whole model stream. A terminal error fragment
// is returned as an error and never mixed into the text.
func (p *Pipeline) streamReply(ctx context.Context, messages []entities.ConversationMessage) (string, error) {
	ctx, cancel := withTimeout(ctx, p.config.Timeouts.LLM)
	defer cancel()

	start := time.Now()
	var b strings.Builder
	var streamErr error
	for fragment := range p.llm.ChatCompletion(ctx, messages) {
		if fragment.Failed() {
			streamErr = fragment.Err
			continue
		}
		b.WriteString(fragment.Text)
	}
	p.metrics.ObserveStage(metrics.StageLLM, p.config.Backends.LLM, time.Since(start), streamErr != nil)
	return b.String(), streamErr
}

func (p *Pipeline) normalizeMotion(motion string, logger *zap.Logger) string {
	if motion == "" {
		return entities.MotionIdle
	}
	if motion != entities.MotionIdle && !p.config.Prompt.Motions.Has(motion) {
		logger.Warn("Model chose an unknown motion", zap.String("motion", motion))
		return entities.MotionIdle
	}
	return motion
}

// withTimeout bounds a stage; a zero timeout leaves ctx unbounded
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
