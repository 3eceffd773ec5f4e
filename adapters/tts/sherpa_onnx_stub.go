//go:build !sherpa

package tts

func newSherpaSynth(SherpaOnnxTTSConfig) (sherpaSynth, error) {
	return nil, ErrSherpaUnavailable
}
