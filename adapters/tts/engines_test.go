package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-audio/wav"
	"go.uber.org/zap/zaptest"
)

func TestFishSpeechTTS_Synthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fish-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("model"); got != "s1" {
			t.Errorf("unexpected model header %q", got)
		}
		var req fishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.ReferenceID != defaultFishReferenceID || req.Format != "mp3" || req.Latency != "balanced" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte("ID3"))
	}))
	defer srv.Close()

	f, err := NewFishSpeechTTS(FishSpeechConfig{
		APIKey:  "fish-key",
		BaseURL: srv.URL,
		Latency: "balanced",
		Format:  "mp3",
		Backend: "s1",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFishSpeechTTS failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.mp3")
	if err := f.synthesize(context.Background(), "hello", path); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
}

func TestValidateFishSpeechConfig(t *testing.T) {
	tests := []struct {
		name   string
		config FishSpeechConfig
	}{
		{"missing key", FishSpeechConfig{}},
		{"bad latency", FishSpeechConfig{APIKey: "k", Latency: "fast"}},
		{"bad backend", FishSpeechConfig{APIKey: "k", Backend: "speech-2"}},
		{"bad format", FishSpeechConfig{APIKey: "k", Format: "ogg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateFishSpeechConfig(tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewFishSpeechTTS_DefaultFormat(t *testing.T) {
	f, err := NewFishSpeechTTS(FishSpeechConfig{APIKey: "k"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFishSpeechTTS failed: %v", err)
	}
	if f.format != "wav" || f.backend != defaultFishBackend || f.latency != defaultFishLatency {
		t.Errorf("unexpected defaults %+v", f)
	}
}

func TestGPTSoVITSTTS_Payload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gptSoVITSRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		want := gptSoVITSRequest{
			Character: defaultGPTSoVITSCharacter, Emotion: "happy", Text: "hi", TextLanguage: "zh",
			BatchSize: 1, Speed: 1.0, TopK: 3, TopP: 0.7, Temperature: 0.7, Stream: "False", SaveTemp: "False",
		}
		if req != want {
			t.Errorf("got %+v, want %+v", req, want)
		}
		w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	g, err := NewGPTSoVITSTTS(GPTSoVITSConfig{APIURL: srv.URL, Emotion: "happy"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewGPTSoVITSTTS failed: %v", err)
	}
	if err := g.synthesize(context.Background(), "hi", filepath.Join(t.TempDir(), "out.wav")); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
}

// fakeGradioApp serves the upload, call and file routes used by the gradio backed engines
type fakeGradioApp struct {
	mu       sync.Mutex
	uploads  int
	calls    map[string][]any
	output   string
	failWith string
}

func newFakeGradioApp(t *testing.T, output string) (*fakeGradioApp, *httptest.Server) {
	app := &fakeGradioApp{calls: map[string][]any{}, output: output}
	mux := http.NewServeMux()

	mux.HandleFunc("/gradio_api/upload", func(w http.ResponseWriter, r *http.Request) {
		app.mu.Lock()
		app.uploads++
		n := app.uploads
		app.mu.Unlock()
		json.NewEncoder(w).Encode([]string{fmt.Sprintf("/tmp/gradio/upload%d", n)})
	})
	mux.HandleFunc("/gradio_api/call/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/gradio_api/call/")
		if r.Method == http.MethodPost {
			var body struct {
				Data []any `json:"data"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			app.mu.Lock()
			app.calls[rest] = body.Data
			app.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]string{"event_id": "ev1"})
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		app.mu.Lock()
		failWith := app.failWith
		app.mu.Unlock()
		if failWith != "" {
			fmt.Fprintf(w, "event: error\ndata: %q\n\n", failWith)
			return
		}
		fmt.Fprintf(w, "event: generating\ndata: null\n\nevent: complete\ndata: [%s]\n\n", app.output)
	})
	mux.HandleFunc("/gradio_api/file=/tmp/gradio/out.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("RIFFdata"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return app, srv
}

func (a *fakeGradioApp) args(api string) []any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[api]
}

func (a *fakeGradioApp) uploadCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uploads
}

func TestIndexTTS_Synthesize(t *testing.T) {
	app, srv := newFakeGradioApp(t, `{"visible":true,"value":{"path":"/tmp/gradio/out.wav"},"__type__":"update"}`)

	dir := t.TempDir()
	prompt := filepath.Join(dir, "prompt.wav")
	if err := os.WriteFile(prompt, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	i, err := NewIndexTTS(IndexTTSConfig{APIURL: srv.URL, PromptAudioPath: prompt}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewIndexTTS failed: %v", err)
	}

	out := filepath.Join(dir, "speech.wav")
	if err := i.synthesize(context.Background(), "你好", out); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "RIFFdata" {
		t.Errorf("unexpected artifact %q", data)
	}

	args := app.args("gen_single")
	if len(args) != 13 {
		t.Fatalf("expected 13 positional inputs, got %d", len(args))
	}
	if args[1] != "你好" || args[2] != defaultIndexTTSInferMode || args[3] != float64(120) || args[12] != float64(600) {
		t.Errorf("unexpected inputs %v", args)
	}
}

func TestIndexTTS_MissingPrompt(t *testing.T) {
	_, err := NewIndexTTS(IndexTTSConfig{PromptAudioPath: filepath.Join(t.TempDir(), "absent.wav")}, zaptest.NewLogger(t))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestMegaTTS_Synthesize(t *testing.T) {
	app, srv := newFakeGradioApp(t, `"/tmp/gradio/out.wav"`)

	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	npy := filepath.Join(dir, "ref.npy")
	for _, p := range []string{ref, npy} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	m, err := NewMegaTTS(MegaTTSConfig{APIURL: srv.URL, InpAudio: ref, InpNpy: npy}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewMegaTTS failed: %v", err)
	}
	if err := m.synthesize(context.Background(), "hello", filepath.Join(dir, "speech.wav")); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	args := app.args("predict")
	if len(args) != 6 || args[2] != "hello" || args[3] != float64(32) || args[4] != 1.4 || args[5] != float64(3) {
		t.Errorf("unexpected inputs %v", args)
	}
	if n := app.uploadCount(); n != 2 {
		t.Errorf("expected 2 uploads, got %d", n)
	}
}

func TestMegaTTS_PredictionError(t *testing.T) {
	app, srv := newFakeGradioApp(t, "")
	app.mu.Lock()
	app.failWith = "CUDA out of memory"
	app.mu.Unlock()

	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.wav")
	npy := filepath.Join(dir, "ref.npy")
	os.WriteFile(ref, []byte("x"), 0o644)
	os.WriteFile(npy, []byte("x"), 0o644)

	m, err := NewMegaTTS(MegaTTSConfig{APIURL: srv.URL, InpAudio: ref, InpNpy: npy}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewMegaTTS failed: %v", err)
	}
	if err := m.synthesize(context.Background(), "hello", filepath.Join(dir, "speech.wav")); err == nil {
		t.Fatal("expected prediction error")
	}
}

type fakeSynth struct {
	samples []float32
	rate    int
}

func (f *fakeSynth) Generate(text string, sid int, speed float32) ([]float32, int) {
	return f.samples, f.rate
}

func (f *fakeSynth) Close() {}

func TestSherpaOnnxTTS_WritesPCM16Wav(t *testing.T) {
	s := newSherpaOnnxTTS(SherpaOnnxTTSConfig{Speed: 1}, &fakeSynth{samples: []float32{0, 0.5, -0.5, 0.25}, rate: 22050}, zaptest.NewLogger(t))

	path := filepath.Join(t.TempDir(), "speech.wav")
	if err := s.synthesize(context.Background(), "hello", path); err != nil {
		t.Fatalf("synthesize failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("expected a valid wav file")
	}
	if dec.SampleRate != 22050 || dec.BitDepth != 16 || dec.NumChans != 1 {
		t.Errorf("unexpected wav header rate=%d bits=%d chans=%d", dec.SampleRate, dec.BitDepth, dec.NumChans)
	}
}

func TestSherpaOnnxTTS_EmptySamples(t *testing.T) {
	s := newSherpaOnnxTTS(SherpaOnnxTTSConfig{}, &fakeSynth{}, zaptest.NewLogger(t))
	err := s.synthesize(context.Background(), "hello", filepath.Join(t.TempDir(), "speech.wav"))
	if !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
}

func TestValidateSherpaOnnxTTSConfig(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.onnx")
	tokens := filepath.Join(dir, "tokens.txt")
	os.WriteFile(model, []byte("x"), 0o644)
	os.WriteFile(tokens, []byte("x"), 0o644)

	tests := []struct {
		name    string
		config  SherpaOnnxTTSConfig
		wantErr bool
	}{
		{"none", SherpaOnnxTTSConfig{}, true},
		{"two families", SherpaOnnxTTSConfig{Vits: &SherpaVitsConfig{Model: model, Tokens: tokens}, Kokoro: &SherpaKokoroConfig{}}, true},
		{"vits ok", SherpaOnnxTTSConfig{Vits: &SherpaVitsConfig{Model: model, Tokens: tokens}}, false},
		{"matcha missing vocoder", SherpaOnnxTTSConfig{Matcha: &SherpaMatchaConfig{AcousticModel: model, Tokens: tokens}}, true},
		{"kokoro missing file", SherpaOnnxTTSConfig{Kokoro: &SherpaKokoroConfig{Model: model, Voices: filepath.Join(dir, "voices.bin"), Tokens: tokens}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSherpaOnnxTTSConfig(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSherpaOnnxTTSConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
