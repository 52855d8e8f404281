// Package responder provides the reply providers behind the voice pipeline.
// All providers implement repositories.ResponseSource and are selected by
// configuration at startup.
package responder

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain/repositories"
	"github.com/moneihq/monei-voice/internal/config"
)

// clarifyingPrompt is returned for empty input instead of calling upstream.
const clarifyingPrompt = "I didn't catch that. Could you say it again?"

// maxHistoryMessages bounds the conversation memory kept by the hosted
// providers. Older messages are dropped oldest-first.
const maxHistoryMessages = 20

// New builds the ResponseSource named by the configuration.
func New(cfg config.ResponderConfig, logger *zap.Logger) (repositories.ResponseSource, error) {
	switch cfg.Provider {
	case "echo":
		return NewEcho(logger), nil
	case "gemini":
		return NewGemini(cfg.Gemini, logger)
	case "groq":
		return NewGroq(cfg.Groq, logger)
	default:
		return nil, fmt.Errorf("unknown responder provider %q", cfg.Provider)
	}
}
