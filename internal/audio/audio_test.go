package audio

import (
	"context"
	"errors"
	"math"
	"testing"
)

func sine(n, rate int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	in := sine(1600, 16000)
	data, err := WAVBytes(in, 16000)
	if err != nil {
		t.Fatalf("WAVBytes: %v", err)
	}

	out, err := DecodeWAV(data, 16000)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d samples, got %d", len(in), len(out))
	}
	for i := range in {
		if diff := math.Abs(float64(in[i] - out[i])); diff > 1.0/16384 {
			t.Fatalf("sample %d: expected %f, got %f", i, in[i], out[i])
		}
	}
}

func TestDecodeWAV_Resamples(t *testing.T) {
	data, err := WAVBytes(sine(4410, 44100), 44100)
	if err != nil {
		t.Fatal(err)
	}

	out, err := DecodeWAV(data, 16000)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if len(out) != 1600 {
		t.Errorf("expected 1600 samples after resampling, got %d", len(out))
	}
}

func TestDecoder_FallsBackToWAV(t *testing.T) {
	data, _ := WAVBytes(sine(800, 16000), 16000)

	d := &Decoder{FFmpegPath: "/nonexistent/ffmpeg"}
	out, err := d.Decode(context.Background(), data, 16000)
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if len(out) != 800 {
		t.Errorf("expected 800 samples, got %d", len(out))
	}
}

func TestDecoder_Undecodable(t *testing.T) {
	d := &Decoder{}
	_, err := d.Decode(context.Background(), []byte("definitely not audio"), 16000)
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("expected ErrUndecodable, got %v", err)
	}

	_, err = d.Decode(context.Background(), nil, 16000)
	if !errors.Is(err, ErrUndecodable) {
		t.Errorf("expected ErrUndecodable for empty input, got %v", err)
	}
}

func TestToPCM16(t *testing.T) {
	got := ToPCM16([]float32{0, 1, -1, 2})
	want := []byte{0x00, 0x00, 0xff, 0x7f, 0x01, 0x80, 0xff, 0x7f}
	if string(got) != string(want) {
		t.Errorf("expected % x, got % x", want, got)
	}
}

func TestResample_Identity(t *testing.T) {
	in := []float32{0.1, 0.2}
	if out := Resample(in, 16000, 16000); len(out) != 2 {
		t.Errorf("identity resample changed length")
	}
}
