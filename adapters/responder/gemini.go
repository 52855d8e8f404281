package responder

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/internal/config"
)

const geminiSystemPrompt = "You are Monei, a friendly and helpful AI voice assistant. " +
	"Keep responses concise (1-3 sentences) since they will be spoken aloud."

// Gemini replies through the Google Gemini API, keeping a bounded
// conversation history across calls.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger

	mu      sync.Mutex
	history []*genai.Content
}

// NewGemini creates the Gemini provider. The client is built once at
// startup and reused for every request.
func NewGemini(cfg config.GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Respond sends the user text with the accumulated history and returns the
// model's reply. Empty input short-circuits to a clarifying prompt without
// touching the network.
func (g *Gemini) Respond(ctx context.Context, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return clarifyingPrompt, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	contents := make([]*genai.Content, 0, len(g.history)+2)
	contents = append(contents, genai.NewContentFromText(geminiSystemPrompt, genai.RoleUser))
	contents = append(contents, g.history...)
	userContent := genai.NewContentFromText(userText, genai.RoleUser)
	contents = append(contents, userContent)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.7)),
		MaxOutputTokens: 256,
	})
	if err != nil {
		return "", domain.E(domain.KindResponseSourceUnavailable, "gemini request failed", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", domain.Ef(domain.KindResponseSourceUnavailable, "gemini returned no candidates")
	}

	var reply strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		reply.WriteString(part.Text)
	}
	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", domain.Ef(domain.KindResponseSourceUnavailable, "gemini returned an empty reply")
	}

	g.history = append(g.history, userContent, genai.NewContentFromText(text, genai.RoleModel))
	if len(g.history) > maxHistoryMessages {
		g.history = g.history[len(g.history)-maxHistoryMessages:]
	}
	return text, nil
}
