package gradio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrPrediction is returned when the app reports an error event
var ErrPrediction = errors.New("gradio: prediction failed")

// Client calls the queued HTTP API exposed by a Gradio app
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the app served at baseURL
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gradio url %q", baseURL)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// FileData describes a file known to the Gradio server
type FileData struct {
	Path string `json:"path"`
	URL  string `json:"url,omitempty"`
}

// FileInput builds the payload used to pass an uploaded file as an argument
func FileInput(remotePath string) map[string]any {
	return map[string]any{
		"path": remotePath,
		"meta": map[string]string{"_type": "gradio.FileData"},
	}
}

// Upload sends a local file to the app and returns its server-side path
func (c *Client) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filepath.Base(localPath))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("failed to copy upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/gradio_api/upload", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, msg)
	}

	var paths []string
	if err := json.NewDecoder(resp.Body).Decode(&paths); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if len(paths) == 0 {
		return "", errors.New("upload response contained no paths")
	}

	c.logger.Debug("Uploaded file to gradio", zap.String("local", localPath), zap.String("remote", paths[0]))
	return paths[0], nil
}

// Predict queues a call to apiName and waits for its completion event.
// The returned slice holds one raw JSON value per output component.
func (c *Client) Predict(ctx context.Context, apiName string, data []any) ([]json.RawMessage, error) {
	apiName = strings.TrimPrefix(apiName, "/")
	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction: %w", err)
	}

	endpoint := fmt.Sprintf("%s/gradio_api/call/%s", c.baseURL, apiName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to queue prediction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("prediction returned status %d: %s", resp.StatusCode, msg)
	}

	var queued struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return nil, fmt.Errorf("failed to decode event id: %w", err)
	}
	if queued.EventID == "" {
		return nil, errors.New("prediction response has no event id")
	}

	return c.await(ctx, endpoint+"/"+queued.EventID)
}

// await reads the SSE result stream of one queued event
func (c *Client) await(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create result request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read result stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("result stream returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "complete":
				var out []json.RawMessage
				if err := json.Unmarshal([]byte(data), &out); err != nil {
					return nil, fmt.Errorf("failed to decode prediction output: %w", err)
				}
				return out, nil
			case "error":
				return nil, fmt.Errorf("%w: %s", ErrPrediction, data)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result stream: %w", err)
	}
	return nil, errors.New("result stream ended without a completion event")
}

// ParseFile extracts a file reference from an output value. It accepts a
// FileData object, a component update wrapping one in "value", or a bare path.
func ParseFile(raw json.RawMessage) (FileData, error) {
	var path string
	if err := json.Unmarshal(raw, &path); err == nil {
		if path == "" {
			return FileData{}, errors.New("empty file path")
		}
		return FileData{Path: path}, nil
	}

	var obj struct {
		FileData
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return FileData{}, fmt.Errorf("unexpected file output: %s", raw)
	}
	if obj.Path != "" || obj.URL != "" {
		return obj.FileData, nil
	}
	if len(obj.Value) > 0 && string(obj.Value) != "null" {
		return ParseFile(obj.Value)
	}
	return FileData{}, fmt.Errorf("unexpected file output: %s", raw)
}

// Download copies a server-side file to dst
func (c *Client) Download(ctx context.Context, file FileData, dst string) error {
	src := file.URL
	if src == "" {
		src = c.baseURL + "/gradio_api/file=" + file.Path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write destination: %w", err)
	}
	return out.Close()
}
