package repositories

import (
	"context"

	"github.com/satriahrh/emotivoice/domain/entities"
)

// LargeLanguageModel abstracts any streaming chat completion provider
type LargeLanguageModel interface {
	// ChatCompletion opens a new stream for the given messages.
	// The channel is always closed; a fragment carrying an error is the last one sent.
	ChatCompletion(ctx context.Context, messages []entities.ConversationMessage) <-chan entities.Fragment
}
