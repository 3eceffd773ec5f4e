package api

// TextChatRequest is the body of POST /chat_api/text
type TextChatRequest struct {
	InputText string `json:"input_text"`
}

// TextChatResponse is returned by POST /chat_api/text
type TextChatResponse struct {
	Text      string  `json:"text"`
	Motion    string  `json:"motion"`
	AudioPath *string `json:"audio_path"`
}

// AudioChatResponse is returned by POST /chat_api/audio
type AudioChatResponse struct {
	ASRText   string  `json:"asr_text"`
	Text      string  `json:"text"`
	Motion    string  `json:"motion"`
	AudioPath *string `json:"audio_path"`
}

// HistoryResponse acknowledges a history write
type HistoryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse reports the active backends
type HealthResponse struct {
	Status string `json:"status"`
	ASR    string `json:"asr"`
	LLM    string `json:"llm"`
	TTS    string `json:"tts"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
