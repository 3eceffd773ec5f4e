package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/internal/gradio"
)

const (
	defaultMegaTTSURL     = "http://127.0.0.1:7929"
	defaultMegaTTSTimeout = 180 * time.Second
)

// MegaTTSConfig configures a MegaTTS3 Gradio app
type MegaTTSConfig struct {
	APIURL        string        `yaml:"api_url"`
	InpAudio      string        `yaml:"inp_audio"` // Required: reference wav
	InpNpy        string        `yaml:"inp_npy"`   // Required: reference latents
	InferTimestep int           `yaml:"infer_timestep"`
	PW            float64       `yaml:"p_w"` // intelligibility weight
	TW            float64       `yaml:"t_w"` // similarity weight
	Timeout       time.Duration `yaml:"timeout"`
}

// MegaTTS synthesizes speech through the MegaTTS /predict endpoint
type MegaTTS struct {
	client        *gradio.Client
	inpAudio      string
	inpNpy        string
	inferTimestep int
	pw            float64
	tw            float64
	logger        *zap.Logger
}

// NewMegaTTS creates a new MegaTTS client
func NewMegaTTS(config MegaTTSConfig, logger *zap.Logger) (*MegaTTS, error) {
	refs := []struct{ name, path string }{{"inp_audio", config.InpAudio}, {"inp_npy", config.InpNpy}}
	for _, ref := range refs {
		name, path := ref.name, ref.path
		if path == "" {
			return nil, fmt.Errorf("mega_tts %s is required", name)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("mega_tts %s: %w", name, err)
		}
	}

	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = defaultMegaTTSURL
		logger.Info("Using default MegaTTS url", zap.String("apiURL", apiURL))
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultMegaTTSTimeout
	}
	client, err := gradio.NewClient(apiURL, timeout, logger)
	if err != nil {
		return nil, err
	}

	m := &MegaTTS{
		client:        client,
		inpAudio:      config.InpAudio,
		inpNpy:        config.InpNpy,
		inferTimestep: config.InferTimestep,
		pw:            config.PW,
		tw:            config.TW,
		logger:        logger,
	}
	if m.inferTimestep == 0 {
		m.inferTimestep = 32
	}
	if m.pw == 0 {
		m.pw = 1.4
	}
	if m.tw == 0 {
		m.tw = 3
	}
	return m, nil
}

func (m *MegaTTS) synthesize(ctx context.Context, text, path string) error {
	audioRef, err := m.client.Upload(ctx, m.inpAudio)
	if err != nil {
		return err
	}
	npyRef, err := m.client.Upload(ctx, m.inpNpy)
	if err != nil {
		return err
	}

	out, err := m.client.Predict(ctx, "/predict", []any{
		gradio.FileInput(audioRef),
		gradio.FileInput(npyRef),
		text,
		m.inferTimestep,
		m.pw,
		m.tw,
	})
	if err != nil {
		return err
	}
	if len(out) == 0 {
		return errors.New("predict returned no outputs")
	}

	file, err := gradio.ParseFile(out[0])
	if err != nil {
		return err
	}
	return m.client.Download(ctx, file, path)
}
