package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/emotivoice/domain/entities"
	"github.com/satriahrh/emotivoice/domain/repositories"
	"github.com/satriahrh/emotivoice/internal/artifact"
	"github.com/satriahrh/emotivoice/internal/audio"
	"github.com/satriahrh/emotivoice/internal/config"
	"github.com/satriahrh/emotivoice/internal/metrics"
	"github.com/satriahrh/emotivoice/usecase"
)

// AudioFormField is the multipart field carrying the recording
const AudioFormField = "audio_file"

// maxUploadBytes bounds a single recording upload
const maxUploadBytes = 32 << 20

// AudioDecoder turns an uploaded container into mono samples
type AudioDecoder interface {
	Decode(ctx context.Context, data []byte, targetRate int) ([]float32, error)
}

var _ AudioDecoder = (*audio.Decoder)(nil)

// Handler serves the chat client
type Handler struct {
	pipeline *usecase.Pipeline
	history  repositories.HistoryRepository
	store    *artifact.Store
	decoder  AudioDecoder
	metrics  *metrics.Collector
	backends config.DefaultModel
	logger   *zap.Logger
}

// NewHandler creates the HTTP handler set. collector may be nil.
func NewHandler(
	pipeline *usecase.Pipeline,
	history repositories.HistoryRepository,
	store *artifact.Store,
	decoder AudioDecoder,
	collector *metrics.Collector,
	backends config.DefaultModel,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		pipeline: pipeline,
		history:  history,
		store:    store,
		decoder:  decoder,
		metrics:  collector,
		backends: backends,
		logger:   logger.With(zap.String("component", "api")),
	}
}

// InitRoutes initializes all API routes. protect guards the chat and history
// routes when non-nil.
func InitRoutes(e *echo.Echo, h *Handler, protect echo.MiddlewareFunc) {
	var guarded []echo.MiddlewareFunc
	if protect != nil {
		guarded = append(guarded, protect)
	}

	e.Use(h.recordRequests)

	e.GET("/health", h.health)
	e.GET("/audio/:filename", h.serveAudio)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}

	chat := e.Group("/chat_api", guarded...)
	chat.POST("/text", h.chatText)
	chat.POST("/audio", h.chatAudio)

	e.GET("/chat_history", h.loadHistory, guarded...)
	e.POST("/chat_history", h.saveHistory, guarded...)
	e.DELETE("/chat_history", h.clearHistory, guarded...)
}

func (h *Handler) recordRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.RecordRequest(route, status)
		return err
	}
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
		ASR:    h.backends.ASR,
		LLM:    h.backends.LLM,
		TTS:    h.backends.TTS,
	})
}

func (h *Handler) chatText(c echo.Context) error {
	var req TextChatRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to bind text chat request", zap.Error(err))
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	result, err := h.pipeline.ChatText(c.Request().Context(), req.InputText)
	if err != nil {
		if errors.Is(err, usecase.ErrEmptyInput) {
			return errorJSON(c, http.StatusBadRequest, "input_text is required")
		}
		h.logger.Error("Text chat failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Text processing failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, TextChatResponse{
		Text:      result.Text,
		Motion:    result.Motion,
		AudioPath: result.AudioPath,
	})
}

func (h *Handler) chatAudio(c echo.Context) error {
	if !h.pipeline.AudioEnabled() {
		return errorJSON(c, http.StatusBadRequest, "Audio mode is not supported in text only mode")
	}

	fh, err := c.FormFile(AudioFormField)
	if err != nil {
		h.logger.Warn("Audio upload missing", zap.Error(err))
		return errorJSON(c, http.StatusBadRequest, AudioFormField+" is required")
	}
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "audio/") {
		h.logger.Warn("Rejected upload with non audio content type",
			zap.String("contentType", fh.Header.Get("Content-Type")),
			zap.String("filename", fh.Filename))
		return errorJSON(c, http.StatusBadRequest, "Invalid file type. Please upload an audio file.")
	}

	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Audio processing failed: "+err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Audio processing failed: "+err.Error())
	}

	ctx := c.Request().Context()
	samples, err := h.decoder.Decode(ctx, data, h.pipeline.SampleRate())
	if err != nil {
		h.logger.Warn("Failed to decode upload", zap.String("filename", fh.Filename), zap.Int("bytes", len(data)), zap.Error(err))
		return errorJSON(c, http.StatusUnprocessableEntity, "Audio processing failed: "+err.Error())
	}

	result, err := h.pipeline.ChatAudio(ctx, samples)
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrTextOnlyMode):
		return errorJSON(c, http.StatusBadRequest, "Audio mode is not supported in text only mode")
	case errors.Is(err, usecase.ErrEmptyInput):
		return errorJSON(c, http.StatusBadRequest, "Audio processing failed: "+err.Error())
	case errors.Is(err, usecase.ErrTranscription):
		return errorJSON(c, http.StatusBadGateway, "Audio processing failed: "+err.Error())
	default:
		h.logger.Error("Audio chat failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Audio processing failed: "+err.Error())
	}

	asrText := ""
	if result.ASRText != nil {
		asrText = *result.ASRText
	}
	return c.JSON(http.StatusOK, AudioChatResponse{
		ASRText:   asrText,
		Text:      result.Text,
		Motion:    result.Motion,
		AudioPath: result.AudioPath,
	})
}

func (h *Handler) serveAudio(c echo.Context) error {
	name := c.Param("filename")
	path, ok := h.store.Resolve(name)
	if !ok {
		return errorJSON(c, http.StatusNotFound, "Audio file not found")
	}

	header := c.Response().Header()
	header.Set("Cross-Origin-Resource-Policy", "cross-origin")
	header.Set("Cross-Origin-Embedder-Policy", "unsafe-none")
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Cache-Control", "no-cache")
	header.Set(echo.HeaderContentType, contentTypeOf(path))
	return c.File(path)
}

func contentTypeOf(path string) string {
	format, err := entities.ParseAudioFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return "application/octet-stream"
	}
	return format.ContentType()
}

func (h *Handler) loadHistory(c echo.Context) error {
	record, err := h.history.Load(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to load chat history", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Failed to load chat history")
	}
	if record == nil {
		record = entities.EmptyHistoryRecord()
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) saveHistory(c echo.Context) error {
	var record entities.HistoryRecord
	if err := json.NewDecoder(c.Request().Body).Decode(&record); err != nil {
		h.logger.Warn("Failed to bind chat history", zap.Error(err))
		return errorJSON(c, http.StatusBadRequest, "Invalid chat history")
	}

	if err := h.history.Save(c.Request().Context(), &record); err != nil {
		h.logger.Error("Failed to save chat history", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Failed to save chat history")
	}
	h.logger.Info("Chat history saved", zap.Int("messages", len(record.Messages)))
	return c.JSON(http.StatusOK, HistoryResponse{Success: true, Message: "Chat history saved successfully"})
}

func (h *Handler) clearHistory(c echo.Context) error {
	if err := h.history.Clear(c.Request().Context()); err != nil {
		h.logger.Error("Failed to clear chat history", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "Failed to clear chat history")
	}
	h.logger.Info("Chat history cleared")
	return c.JSON(http.StatusOK, HistoryResponse{Success: true, Message: "Chat history cleared"})
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, ErrorResponse{Error: message})
}
