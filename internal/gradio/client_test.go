package gradio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeApp struct {
	t        *testing.T
	received []any
	fail     bool
}

func (a *fakeApp) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/gradio_api/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("files")
		require.NoError(a.t, err)
		defer file.Close()
		json.NewEncoder(w).Encode([]string{"/tmp/gradio/" + header.Filename})
	})
	mux.HandleFunc("/gradio_api/call/gen_single", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data []any `json:"data"`
		}
		require.NoError(a.t, json.NewDecoder(r.Body).Decode(&body))
		a.received = body.Data
		json.NewEncoder(w).Encode(map[string]string{"event_id": "evt-1"})
	})
	mux.HandleFunc("/gradio_api/call/gen_single/evt-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		if a.fail {
			fmt.Fprint(w, "event: error\ndata: \"CUDA out of memory\"\n\n")
			return
		}
		fmt.Fprint(w, "event: heartbeat\ndata: null\n\n")
		fmt.Fprint(w, "event: generating\ndata: [null]\n\n")
		fmt.Fprintf(w, "event: complete\ndata: [{\"value\":{\"path\":\"/tmp/gradio/out.wav\",\"url\":\"%s/gradio_api/file=/tmp/gradio/out.wav\"},\"__type__\":\"update\"}]\n\n", "http://"+r.Host)
	})
	mux.HandleFunc("/gradio_api/file=/tmp/gradio/out.wav", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "RIFFdata")
	})
	return mux
}

func TestClient_UploadPredictDownload(t *testing.T) {
	app := &fakeApp{t: t}
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	client, err := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	prompt := filepath.Join(t.TempDir(), "prompt.wav")
	require.NoError(t, os.WriteFile(prompt, []byte("RIFF"), 0o644))

	ctx := context.Background()
	remote, err := client.Upload(ctx, prompt)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/gradio/prompt.wav", remote)

	out, err := client.Predict(ctx, "/gen_single", []any{FileInput(remote), "hello", 120})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, app.received, 3)
	assert.Equal(t, "hello", app.received[1])

	file, err := ParseFile(out[0])
	require.NoError(t, err)
	assert.Equal(t, "/tmp/gradio/out.wav", file.Path)

	dst := filepath.Join(t.TempDir(), "speech.wav")
	require.NoError(t, client.Download(ctx, file, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))
}

func TestClient_PredictErrorEvent(t *testing.T) {
	app := &fakeApp{t: t, fail: true}
	srv := httptest.NewServer(app.handler())
	defer srv.Close()

	client, err := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), "gen_single", []any{"x"})
	assert.True(t, errors.Is(err, ErrPrediction))
}

func TestClient_PredictHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such api", http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, 5*time.Second, zaptest.NewLogger(t))
	_, err := client.Predict(context.Background(), "predict", nil)
	assert.Error(t, err)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url", time.Second, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "bare path", raw: `"/tmp/a.wav"`, want: "/tmp/a.wav"},
		{name: "file data", raw: `{"path":"/tmp/b.wav","url":"http://x/b.wav"}`, want: "/tmp/b.wav"},
		{name: "update", raw: `{"value":{"path":"/tmp/c.wav"},"__type__":"update"}`, want: "/tmp/c.wav"},
		{name: "update with bare path", raw: `{"value":"/tmp/d.wav"}`, want: "/tmp/d.wav"},
		{name: "null", raw: `null`, wantErr: true},
		{name: "empty value", raw: `{"value":null}`, wantErr: true},
		{name: "number", raw: `3`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFile(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Path)
		})
	}
}
