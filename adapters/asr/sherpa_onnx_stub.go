//go:build !sherpa

package asr

func newSherpaEngine(SherpaOnnxConfig) (sherpaEngine, error) {
	return nil, ErrSherpaUnavailable
}
