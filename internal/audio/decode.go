package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"

	"github.com/go-audio/wav"
)

// ErrUndecodable is returned when neither decode path understands the upload
var ErrUndecodable = errors.New("audio: undecodable input")

// Decoder turns uploaded audio into mono float samples at a target rate
type Decoder struct {
	// FFmpegPath is the binary used by the primary path; empty disables it
	FFmpegPath string
}

// NewDecoder returns a decoder that uses ffmpeg from PATH when available
func NewDecoder() *Decoder {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		path = ""
	}
	return &Decoder{FFmpegPath: path}
}

// Decode converts data to mono float32 samples in [-1, 1] at targetRate.
// ffmpeg is tried first; the WAV frame reader is the fallback.
func (d *Decoder) Decode(ctx context.Context, data []byte, targetRate int) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUndecodable)
	}

	var primaryErr error
	if d.FFmpegPath != "" {
		samples, err := d.decodeFFmpeg(ctx, data, targetRate)
		if err == nil {
			return samples, nil
		}
		primaryErr = err
	} else {
		primaryErr = errors.New("ffmpeg not available")
	}

	samples, err := DecodeWAV(data, targetRate)
	if err != nil {
		return nil, fmt.Errorf("%w: primary: %v; wav fallback: %v", ErrUndecodable, primaryErr, err)
	}
	return samples, nil
}

func (d *Decoder) decodeFFmpeg(ctx context.Context, data []byte, targetRate int) ([]float32, error) {
	cmd := exec.CommandContext(ctx, d.FFmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "f32le", "-ac", "1", "-ar", strconv.Itoa(targetRate),
		"pipe:1")
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}

	raw := stdout.Bytes()
	if len(raw) < 4 {
		return nil, errors.New("ffmpeg produced no samples")
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, nil
}

// DecodeWAV reads PCM frames from a WAV container, downmixes to mono,
// normalises by bit depth and resamples linearly to targetRate.
func DecodeWAV(data []byte, targetRate int) ([]float32, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav frames: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, errors.New("wav file has no frames")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	scale := float32(math.Pow(2, float64(bitDepth-1)))
	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			v := buf.Data[f*channels+c]
			if bitDepth == 8 {
				v -= 128
			}
			sum += float32(v) / scale
		}
		mono[f] = sum / float32(channels)
	}

	return Resample(mono, buf.Format.SampleRate, targetRate), nil
}

// Resample converts samples between rates with linear interpolation
func Resample(samples []float32, from, to int) []float32 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}

	outLen := int(int64(len(samples)) * int64(to) / int64(from))
	if outLen == 0 {
		return []float32{}
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
