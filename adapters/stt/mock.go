package stt

import (
	"context"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
)

// MockSpeechToText returns a canned transcript or error, for tests and for
// running the server without a recognition backend.
type MockSpeechToText struct {
	Transcript domain.Transcript
	Err        error

	// Calls records every audio path transcribed.
	Calls []string
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

func (m *MockSpeechToText) Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error) {
	m.Calls = append(m.Calls, audioPath)
	if m.Err != nil {
		return domain.Transcript{}, m.Err
	}
	return m.Transcript, nil
}
