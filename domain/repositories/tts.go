package repositories

import (
	"context"

	"github.com/moneihq/monei-voice/domain"
)

// TextToSpeech abstracts remote speech synthesis services.
type TextToSpeech interface {
	// Synthesize converts text to audio using the named catalog voice.
	// The voice is validated against the catalog before any network call;
	// an unknown voice carries domain.KindVoiceNotFound.
	Synthesize(ctx context.Context, text string, voice string) (*domain.SynthesizedAudio, error)

	// Voices returns the current voice catalog.
	Voices() []domain.Voice

	// HasVoice reports whether the catalog accepts the given voice name.
	HasVoice(name string) bool

	// RefreshVoices re-fetches the catalog from the upstream service.
	RefreshVoices(ctx context.Context) error
}
