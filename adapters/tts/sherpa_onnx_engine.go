//go:build sherpa

package tts

import (
	"errors"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

type sherpaOfflineTts struct {
	tts *sherpa.OfflineTts
}

func newSherpaSynth(c SherpaOnnxTTSConfig) (sherpaSynth, error) {
	cfg := sherpa.OfflineTtsConfig{}
	cfg.RuleFsts = c.RuleFsts
	cfg.MaxNumSentences = c.MaxNumSentences

	m := &cfg.Model
	m.Provider = c.Provider
	m.NumThreads = c.NumThreads
	if c.Debug {
		m.Debug = 1
	}

	switch {
	case c.Vits != nil:
		m.Vits.Model = c.Vits.Model
		m.Vits.Lexicon = c.Vits.Lexicon
		m.Vits.Tokens = c.Vits.Tokens
		m.Vits.DataDir = c.Vits.DataDir
		m.Vits.DictDir = c.Vits.DictDir
	case c.Matcha != nil:
		m.Matcha.AcousticModel = c.Matcha.AcousticModel
		m.Matcha.Vocoder = c.Matcha.Vocoder
		m.Matcha.Lexicon = c.Matcha.Lexicon
		m.Matcha.Tokens = c.Matcha.Tokens
		m.Matcha.DataDir = c.Matcha.DataDir
		m.Matcha.DictDir = c.Matcha.DictDir
	case c.Kokoro != nil:
		m.Kokoro.Model = c.Kokoro.Model
		m.Kokoro.Voices = c.Kokoro.Voices
		m.Kokoro.Lexicon = c.Kokoro.Lexicon
		m.Kokoro.Tokens = c.Kokoro.Tokens
		m.Kokoro.DataDir = c.Kokoro.DataDir
		m.Kokoro.DictDir = c.Kokoro.DictDir
	}

	tts := sherpa.NewOfflineTts(&cfg)
	if tts == nil {
		return nil, errors.New("failed to create sherpa-onnx synthesizer")
	}
	return &sherpaOfflineTts{tts: tts}, nil
}

func (s *sherpaOfflineTts) Generate(text string, sid int, speed float32) ([]float32, int) {
	out := s.tts.Generate(text, sid, speed)
	if out == nil {
		return nil, 0
	}
	return out.Samples, out.SampleRate
}

func (s *sherpaOfflineTts) Close() {
	sherpa.DeleteOfflineTts(s.tts)
}
