package repositories

import "context"

// ResponseSource produces a reply for a user utterance. The orchestrator
// treats it as a black box bounded by a deadline; implementations document
// their behavior for empty input (the built-in providers return a fixed
// clarifying prompt rather than failing).
type ResponseSource interface {
	Respond(ctx context.Context, userText string) (string, error)
}
