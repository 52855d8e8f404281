package responder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/internal/config"
)

const groqSystemPrompt = "You are Monei, a friendly and helpful AI voice assistant. " +
	"Keep responses concise (1-3 sentences) since they will be spoken aloud."

// Groq replies through Groq's OpenAI-compatible chat API.
type Groq struct {
	client *openai.Client
	model  string
	logger *zap.Logger

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
}

// NewGroq creates the Groq provider.
func NewGroq(cfg config.GroqConfig, logger *zap.Logger) (*Groq, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = cfg.BaseURL
	return &Groq{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Respond sends the user text with the accumulated history and returns the
// model's reply. Empty input short-circuits to a clarifying prompt without
// touching the network.
func (g *Groq) Respond(ctx context.Context, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return clarifyingPrompt, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(g.history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: groqSystemPrompt,
	})
	messages = append(messages, g.history...)
	userMessage := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	}
	messages = append(messages, userMessage)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		return "", domain.E(domain.KindResponseSourceUnavailable, "groq request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.Ef(domain.KindResponseSourceUnavailable, "groq returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", domain.Ef(domain.KindResponseSourceUnavailable, "groq returned an empty reply")
	}

	g.history = append(g.history, userMessage, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: text,
	})
	if len(g.history) > maxHistoryMessages {
		g.history = g.history[len(g.history)-maxHistoryMessages:]
	}
	return text, nil
}
