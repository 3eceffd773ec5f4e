package asr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestWhisperCppASR_Transcribe(t *testing.T) {
	loaded := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/load":
			loaded <- r.FormValue("model")
			w.WriteHeader(http.StatusOK)
		case "/inference":
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Errorf("missing file part: %v", err)
				return
			}
			defer file.Close()
			if header.Filename != "audio.wav" {
				t.Errorf("unexpected file name %q", header.Filename)
			}
			if got := r.FormValue("response_format"); got != "json" {
				t.Errorf("unexpected response_format %q", got)
			}
			if got := r.FormValue("language"); got != "ja" {
				t.Errorf("unexpected language %q", got)
			}
			json.NewEncoder(w).Encode(map[string]string{"text": " こんにちは \n"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	w, err := NewWhisperCppASR(WhisperCppConfig{URL: srv.URL, Language: "ja", Model: "ggml-base.bin"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWhisperCppASR failed: %v", err)
	}
	select {
	case model := <-loaded:
		if model != "ggml-base.bin" {
			t.Errorf("unexpected model %q", model)
		}
	default:
		t.Error("expected model to be loaded at construction")
	}
	if w.SampleRate() != 16000 {
		t.Errorf("unexpected sample rate %d", w.SampleRate())
	}

	text, err := w.Transcribe(context.Background(), make([]float32, 1600))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "こんにちは" {
		t.Errorf("got %q", text)
	}
}

func TestWhisperCppASR_ServerError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "error field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"error": "failed to read audio"})
			},
		},
		{
			name: "garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			w, err := NewWhisperCppASR(WhisperCppConfig{URL: srv.URL}, zaptest.NewLogger(t))
			if err != nil {
				t.Fatalf("NewWhisperCppASR failed: %v", err)
			}

			_, err = w.Transcribe(context.Background(), make([]float32, 160))
			var be *BackendError
			if !errors.As(err, &be) || be.Backend != BackendWhisperCpp {
				t.Fatalf("expected whispercpp BackendError, got %v", err)
			}
		})
	}
}

func TestValidateWhisperCppConfig(t *testing.T) {
	if err := ValidateWhisperCppConfig(WhisperCppConfig{URL: "not a url"}); err == nil {
		t.Error("expected invalid url error")
	}
	if err := ValidateWhisperCppConfig(WhisperCppConfig{Temperature: 1.5}); err == nil {
		t.Error("expected temperature range error")
	}
	if err := ValidateWhisperCppConfig(WhisperCppConfig{}); err != nil {
		t.Errorf("expected empty config to be valid, got %v", err)
	}
}
