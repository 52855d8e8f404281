package api

import "github.com/moneihq/monei-voice/domain"

// TextChatRequest is the body of POST /api/chat/text.
type TextChatRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// ExchangeResponse is the payload of a completed exchange. AudioURL points
// at the retrieval endpoint for the stored reply audio.
type ExchangeResponse struct {
	UserText      string  `json:"user_text"`
	AIText        string  `json:"ai_text"`
	AudioURL      string  `json:"audio_url"`
	AudioDuration float64 `json:"audio_duration"`
}

// VoicesResponse lists the synthesizer's voice catalog.
type VoicesResponse struct {
	Voices  []domain.Voice `json:"voices"`
	Default string         `json:"default"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
