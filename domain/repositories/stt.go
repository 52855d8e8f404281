package repositories

import (
	"context"

	"github.com/moneihq/monei-voice/domain"
)

// SpeechToText abstracts speech recognition backends. Implementations load
// their model (or establish their client) once at construction and are safe
// for concurrent use; backends whose model does not support concurrent
// inference serialize calls internally.
type SpeechToText interface {
	// Transcribe converts the normalized audio file at audioPath to text.
	// An empty transcript is a valid result for silence-only audio; engine
	// faults carry domain.KindTranscriptionFailed.
	Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error)
}
