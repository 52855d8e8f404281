package domain

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error classification. Every error that
// crosses a component boundary carries exactly one Kind so callers can react
// without string matching.
type Kind string

const (
	KindPayloadTooLarge           Kind = "payload_too_large"
	KindUnsupportedAudioFormat    Kind = "unsupported_audio_format"
	KindTranscriptionFailed       Kind = "transcription_failed"
	KindResponseSourceUnavailable Kind = "response_source_unavailable"
	KindVoiceNotFound             Kind = "voice_not_found"
	KindSynthesisTimeout          Kind = "synthesis_timeout"
	KindSynthesisUnavailable      Kind = "synthesis_unavailable"
	KindAuthenticationFailed      Kind = "authentication_failed"
	KindArtifactNotFound          Kind = "artifact_not_found"

	// KindInternal covers faults that have no caller-actionable meaning.
	KindInternal Kind = "internal"
)

// Error pairs a Kind with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a classified error. The cause may be nil.
func E(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Ef builds a classified error with a formatted message and no cause.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
