package entities

import "fmt"

// AudioFormat is the encoding of a synthesized artifact
type AudioFormat string

const (
	AudioFormatWAV AudioFormat = "wav"
	AudioFormatMP3 AudioFormat = "mp3"
	AudioFormatPCM AudioFormat = "pcm"
)

// ParseAudioFormat validates a configured format name
func ParseAudioFormat(s string) (AudioFormat, error) {
	switch f := AudioFormat(s); f {
	case AudioFormatWAV, AudioFormatMP3, AudioFormatPCM:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported audio format %q (supported: wav, mp3, pcm)", s)
	}
}

// Ext returns the file extension without the leading dot
func (f AudioFormat) Ext() string {
	return string(f)
}

// ContentType returns the MIME type used when serving the artifact
func (f AudioFormat) ContentType() string {
	switch f {
	case AudioFormatMP3:
		return "audio/mpeg"
	case AudioFormatPCM:
		return "audio/L16"
	default:
		return "audio/wav"
	}
}

// SpeechArtifact references an audio file produced by a TTS adapter
type SpeechArtifact struct {
	Path   string      `json:"path"`
	Format AudioFormat `json:"format"`
}
