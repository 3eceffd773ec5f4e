package asr

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/audio"
)

const (
	defaultGoogleLanguage   = "en-US"
	defaultGoogleSampleRate = 16000
)

// GoogleConfig configures Google Cloud Speech-to-Text
type GoogleConfig struct {
	LanguageCode    string `yaml:"language_code"`
	Model           string `yaml:"model"`
	SampleRate      int    `yaml:"sample_rate"`
	Punctuation     bool   `yaml:"enable_automatic_punctuation"`
	CredentialsFile string `yaml:"credentials_file"` // Optional: defaults to application credentials
}

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	recognize  recognizeFunc
	language   string
	model      string
	sampleRate int
	punctuate  bool
	logger     *zap.Logger
}

// Ensure GoogleSpeechToText implements the SpeechToText interface
var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the Cloud Speech client
func NewGoogleSpeechToText(config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := speech.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	g := newGoogleSpeechToText(config, func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}, logger)
	return g, nil
}

func newGoogleSpeechToText(config GoogleConfig, recognize recognizeFunc, logger *zap.Logger) *GoogleSpeechToText {
	language := config.LanguageCode
	if language == "" {
		language = defaultGoogleLanguage
		logger.Info("Using default language code", zap.String("languageCode", language))
	}

	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultGoogleSampleRate
	}

	return &GoogleSpeechToText{
		recognize:  recognize,
		language:   language,
		model:      config.Model,
		sampleRate: sampleRate,
		punctuate:  config.Punctuation,
		logger:     logger,
	}
}

// SampleRate implements SpeechToText
func (g *GoogleSpeechToText) SampleRate() int {
	return g.sampleRate
}

// Transcribe sends the samples as LINEAR16 to the synchronous Recognize API
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", backendError(BackendGoogle, ErrNoAudio)
	}

	resp, err := g.recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(g.sampleRate),
			LanguageCode:               g.language,
			Model:                      g.model,
			EnableAutomaticPunctuation: g.punctuate,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio.ToPCM16(samples)},
		},
	})
	if err != nil {
		return "", backendError(BackendGoogle, fmt.Errorf("recognize failed: %w", err))
	}

	var b strings.Builder
	for _, result := range resp.GetResults() {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			b.WriteString(alts[0].GetTranscript())
		}
	}
	return strings.TrimSpace(b.String()), nil
}
