package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
)

const (
	defaultLiteLLMBaseURL = "https://api.openai.com/v1"
	defaultLiteLLMTimeout = 120 * time.Second
)

// ErrMalformedChunk is sent when a stream chunk does not have the expected shape
var ErrMalformedChunk = errors.New("llm: malformed stream chunk")

// providerBaseURLs resolves "<provider>/<model>" names when no base_url is configured
var providerBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"dashscope":  "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"ollama":     "http://localhost:11434/v1",
}

// LiteLLMConfig configures the OpenAI-compatible chat completion client.
// It talks to a LiteLLM proxy or to any provider exposing /chat/completions.
type LiteLLMConfig struct {
	Model       string        `yaml:"model"`       // Required
	Stream      *bool         `yaml:"stream"`      // Optional: default true
	APIKey      string        `yaml:"api_key"`     // Optional: sent as a bearer token
	APIType     string        `yaml:"api_type"`    // Optional: openai or azure
	APIVersion  string        `yaml:"api_version"` // Optional: required for azure
	BaseURL     string        `yaml:"base_url"`    // Optional: derived from the model prefix
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ValidateLiteLLMConfig validates the LiteLLMConfig
func ValidateLiteLLMConfig(config LiteLLMConfig) error {
	if strings.TrimSpace(config.Model) == "" {
		return fmt.Errorf("litellm model is required")
	}

	switch config.APIType {
	case "", "openai":
	case "azure":
		if config.BaseURL == "" {
			return fmt.Errorf("azure api_type requires base_url")
		}
		if config.APIVersion == "" {
			return fmt.Errorf("azure api_type requires api_version")
		}
	default:
		return fmt.Errorf("unsupported api_type %q (supported: openai, azure)", config.APIType)
	}

	if config.Temperature != nil && (*config.Temperature < 0 || *config.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2, got %f", *config.Temperature)
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", config.MaxTokens)
	}
	if config.BaseURL != "" {
		if u, err := url.Parse(config.BaseURL); err != nil || u.Scheme == "" {
			return fmt.Errorf("invalid base_url %q", config.BaseURL)
		}
	}
	return nil
}

// LiteLLM implements LargeLanguageModel over the OpenAI chat completions API
type LiteLLM struct {
	endpoint    string
	model       string
	stream      bool
	apiKey      string
	azure       bool
	temperature *float64
	maxTokens   int
	httpClient  *http.Client
	logger      *zap.Logger
}

// Ensure LiteLLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*LiteLLM)(nil)

// NewLiteLLM creates a new OpenAI-compatible client
func NewLiteLLM(config LiteLLMConfig, logger *zap.Logger) (*LiteLLM, error) {
	if err := ValidateLiteLLMConfig(config); err != nil {
		return nil, err
	}

	model := config.Model
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultLiteLLMBaseURL
		if provider, name, ok := strings.Cut(model, "/"); ok {
			if u, known := providerBaseURLs[provider]; known {
				baseURL, model = u, name
			}
		}
		logger.Info("Using derived base URL", zap.String("baseURL", baseURL), zap.String("model", model))
	}

	stream := true
	if config.Stream != nil {
		stream = *config.Stream
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultLiteLLMTimeout
		logger.Info("Using default timeout", zap.Duration("timeout", timeout))
	}

	baseURL = strings.TrimRight(baseURL, "/")
	endpoint := baseURL + "/chat/completions"
	azure := config.APIType == "azure"
	if azure {
		endpoint = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			baseURL, url.PathEscape(model), url.QueryEscape(config.APIVersion))
	}

	return &LiteLLM{
		endpoint:    endpoint,
		model:       model,
		stream:      stream,
		apiKey:      config.APIKey,
		azure:       azure,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}, nil
}

type chatRequest struct {
	Model       string                         `json:"model"`
	Messages    []entities.ConversationMessage `json:"messages"`
	Stream      bool                           `json:"stream"`
	Temperature *float64                       `json:"temperature,omitempty"`
	MaxTokens   int                            `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Delta *struct {
		Content *string `json:"content"`
	} `json:"delta"`
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ChatCompletion streams the reply to messages
func (l *LiteLLM) ChatCompletion(ctx context.Context, messages []entities.ConversationMessage) <-chan entities.Fragment {
	ch := make(chan entities.Fragment)

	go func() {
		defer close(ch)

		resp, err := l.send(ctx, messages)
		if err != nil {
			l.logger.Error("Chat completion request failed", zap.Error(err))
			fail(ch, err)
			return
		}
		defer resp.Body.Close()

		if l.stream {
			l.readStream(ctx, resp.Body, ch)
			return
		}
		l.readSingle(ctx, resp.Body, ch)
	}()

	return ch
}

func (l *LiteLLM) send(ctx context.Context, messages []entities.ConversationMessage) (*http.Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       l.model,
		Messages:    messages,
		Stream:      l.stream,
		Temperature: l.temperature,
		MaxTokens:   l.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	if l.apiKey != "" {
		if l.azure {
			req.Header.Set("api-key", l.apiKey)
		} else {
			req.Header.Set("Authorization", "Bearer "+l.apiKey)
		}
	}

	l.logger.Debug("Sending chat completion request",
		zap.String("model", l.model),
		zap.Int("messages", len(messages)),
		zap.Bool("stream", l.stream))

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

// readStream forwards SSE deltas until [DONE]
func (l *LiteLLM) readStream(ctx context.Context, body io.Reader, ch chan<- entities.Fragment) {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err != io.EOF {
				fail(ch, fmt.Errorf("failed to read stream: %w", err))
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return
		}

		text, perr := parseChunk(data, true)
		if perr != nil {
			l.logger.Error("Malformed stream chunk", zap.String("chunk", data), zap.Error(perr))
			fail(ch, perr)
			return
		}
		if text != "" && !emit(ctx, ch, text) {
			return
		}
	}
}

// readSingle handles stream: false responses
func (l *LiteLLM) readSingle(ctx context.Context, body io.Reader, ch chan<- entities.Fragment) {
	data, err := io.ReadAll(body)
	if err != nil {
		fail(ch, fmt.Errorf("failed to read response: %w", err))
		return
	}
	text, err := parseChunk(string(data), false)
	if err != nil {
		fail(ch, err)
		return
	}
	emit(ctx, ch, text)
}

func parseChunk(data string, delta bool) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("llm: provider error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		if delta {
			// usage-only chunks carry no choices
			return "", nil
		}
		return "", fmt.Errorf("%w: no choices", ErrMalformedChunk)
	}

	choice := resp.Choices[0]
	switch {
	case delta && choice.Delta != nil:
		if choice.Delta.Content == nil {
			return "", nil
		}
		return *choice.Delta.Content, nil
	case !delta && choice.Message != nil && choice.Message.Content != nil:
		return *choice.Message.Content, nil
	default:
		return "", fmt.Errorf("%w: choice has no content", ErrMalformedChunk)
	}
}

// emit sends a text fragment unless ctx is done. When ctx ends first the
// terminal error fragment is sent instead and emit reports false.
func emit(ctx context.Context, ch chan<- entities.Fragment, text string) bool {
	select {
	case ch <- entities.Fragment{Text: text}:
		return true
	case <-ctx.Done():
		fail(ch, ctx.Err())
		return false
	}
}

// fail sends the terminal error fragment. The send is never skipped;
// consumers drain the stream until it is closed.
func fail(ch chan<- entities.Fragment, err error) {
	ch <- entities.Fragment{Err: err}
}

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API returned status %d: %s", e.StatusCode, e.Body)
}
