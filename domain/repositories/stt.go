package repositories

import "context"

// SpeechToText abstracts speech recognition engines
type SpeechToText interface {
	// Transcribe converts mono float PCM in [-1, 1] to text.
	// Samples must already be at SampleRate.
	Transcribe(ctx context.Context, samples []float32) (string, error)
	// SampleRate is the rate the engine was configured for
	SampleRate() int
}
