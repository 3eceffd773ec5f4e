package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
)

// GeminiConfig holds configuration for the Gemini adapter
type GeminiConfig struct {
	APIKey          string   `yaml:"api_key"` // Required
	Model           string   `yaml:"model"`
	Temperature     *float32 `yaml:"temperature"`
	TopP            *float32 `yaml:"top_p"`
	MaxOutputTokens int32    `yaml:"max_output_tokens"`
	// BaseURL overrides the Gemini API endpoint, e.g. for a regional proxy
	BaseURL         string   `yaml:"base_url"`
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if t := config.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", *t)
	}
	if p := config.TopP; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", *p)
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must be positive, got %d", config.MaxOutputTokens)
	}
	return nil
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client *genai.Client
	model  string
	config GeminiConfig
	logger *zap.Logger
}

// Ensure GeminiLLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      config.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
		logger.Info("Using default model", zap.String("model", model))
	}

	return &GeminiLLM{
		client: client,
		model:  model,
		config: config,
		logger: logger,
	}, nil
}

// ChatCompletion streams the reply to messages
func (g *GeminiLLM) ChatCompletion(ctx context.Context, messages []entities.ConversationMessage) <-chan entities.Fragment {
	ch := make(chan entities.Fragment)
	system, contents := convertMessages(messages)

	genConfig := &genai.GenerateContentConfig{
		Temperature: g.config.Temperature,
		TopP:        g.config.TopP,
	}
	if g.config.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = g.config.MaxOutputTokens
	}
	if system != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	go func() {
		defer close(ch)

		if len(contents) == 0 {
			fail(ch, fmt.Errorf("gemini: no user content to send"))
			return
		}

		g.logger.Debug("Sending Gemini stream request", zap.String("model", g.model), zap.Int("contents", len(contents)))

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, genConfig) {
			if err != nil {
				g.logger.Error("Gemini stream failed", zap.Error(err))
				fail(ch, fmt.Errorf("gemini: %w", err))
				return
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}
			if text := resp.Text(); text != "" {
				if !emit(ctx, ch, text) {
					return
				}
			}
		}
	}()

	return ch
}

// convertMessages folds system messages into the system instruction and
// maps the remaining turns to Gemini roles.
func convertMessages(messages []entities.ConversationMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case entities.RoleSystem:
			system = append(system, msg.Content)
		case entities.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	return strings.Join(system, "\n\n"), contents
}
