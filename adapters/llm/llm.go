package llm

import (
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/config"
)

// Supported backend names
const (
	BackendLiteLLM = "litellm"
	BackendGemini  = "gemini"
)

// Backends lists every registered LLM backend
var Backends = []string{BackendLiteLLM, BackendGemini}

// New builds the LLM client registered under backend from its config section
func New(backend string, node *yaml.Node, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	logger = logger.With(zap.String("llm", backend))

	switch backend {
	case BackendLiteLLM:
		var cfg LiteLLMConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		return NewLiteLLM(cfg, logger)
	case BackendGemini:
		var cfg GeminiConfig
		if err := config.Decode(node, &cfg); err != nil {
			return nil, err
		}
		return NewGeminiLLM(cfg, logger)
	default:
		return nil, &config.UnknownBackendError{Category: "llm", Name: backend, Supported: Backends}
	}
}
