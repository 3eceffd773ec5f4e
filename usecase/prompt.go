package usecase

import (
	"strings"

	"github.com/satriahrh/emotivoice/internal/config"
)

// NoMotionsPlaceholder is rendered when the motion table is empty
const NoMotionsPlaceholder = "No motions available"

// DefaultOutputFormat is used when no system prompt is configured
const DefaultOutputFormat = `Reply with a single JSON object and nothing else:
{"text": "<what you say to the user>", "motion": "<one motion name from the list above>"}
Use "idle" as the motion when none of the trigger conditions apply.`

// PromptConfig is the part of the configuration the system prompt depends on
type PromptConfig struct {
	CharacterPrompt string
	Motions         config.Motions
	SystemPrompt    string
}

// NewPromptConfig picks the prompt inputs out of the service configuration
func NewPromptConfig(cfg *config.Config) PromptConfig {
	return PromptConfig{
		CharacterPrompt: cfg.Character.Prompt,
		Motions:         cfg.Character.Motion,
		SystemPrompt:    cfg.System.SystemPrompt,
	}
}

// BuildSystemPrompt renders the persona, the motion table and the output
// format rules into one system message.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	b.WriteString("# Character\n")
	b.WriteString(strings.TrimSpace(cfg.CharacterPrompt))
	b.WriteString("\n\n# Available motions and trigger conditions\n")
	if len(cfg.Motions) == 0 {
		b.WriteString(NoMotionsPlaceholder)
	}
	for i, m := range cfg.Motions {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(m.Name)
		b.WriteString(": ")
		b.WriteString(m.TriggerCondition)
	}

	format := strings.TrimSpace(cfg.SystemPrompt)
	if format == "" {
		format = DefaultOutputFormat
	}
	b.WriteString("\n\n# Output format\n")
	b.WriteString(format)
	b.WriteString("\n\nFollow the requirements above strictly when replying.")

	return b.String()
}
