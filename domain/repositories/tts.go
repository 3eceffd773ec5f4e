package repositories

import (
	"context"

	"github.com/satriahrh/emotivoice/domain/entities"
)

// TextToSpeech abstracts speech synthesis engines
type TextToSpeech interface {
	// GenerateSpeech writes the synthesized text to a new artifact.
	// It returns nil when synthesis is unavailable for any reason.
	GenerateSpeech(ctx context.Context, text string) *entities.SpeechArtifact
	// Format is the encoding every artifact of this engine uses
	Format() entities.AudioFormat
}
