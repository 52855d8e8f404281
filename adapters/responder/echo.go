package responder

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Echo replies with the user's own words. It keeps the pipeline fully
// exercisable without any hosted model credential.
type Echo struct {
	logger *zap.Logger
}

// NewEcho creates the echo provider.
func NewEcho(logger *zap.Logger) *Echo {
	return &Echo{logger: logger}
}

// Respond returns the input text unchanged, or a clarifying prompt when the
// input is empty.
func (e *Echo) Respond(_ context.Context, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return clarifyingPrompt, nil
	}
	return "You said: " + userText, nil
}
