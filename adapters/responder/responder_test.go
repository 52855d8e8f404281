package responder

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/moneihq/monei-voice/internal/config"
)

func TestEchoRespond(t *testing.T) {
	e := NewEcho(zaptest.NewLogger(t))
	got, err := e.Respond(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if got != "You said: hello there" {
		t.Errorf("unexpected reply %q", got)
	}
}

func TestEchoRespondEmptyInput(t *testing.T) {
	e := NewEcho(zaptest.NewLogger(t))
	got, err := e.Respond(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if got != clarifyingPrompt {
		t.Errorf("expected clarifying prompt, got %q", got)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	logger := zaptest.NewLogger(t)

	src, err := New(config.ResponderConfig{Provider: "echo", Timeout: time.Minute}, logger)
	if err != nil {
		t.Fatalf("New(echo) failed: %v", err)
	}
	if _, ok := src.(*Echo); !ok {
		t.Errorf("expected *Echo, got %T", src)
	}

	if _, err := New(config.ResponderConfig{Provider: "monei"}, logger); err == nil {
		t.Error("expected error for unknown provider")
	}

	if _, err := New(config.ResponderConfig{
		Provider: "groq",
		Groq:     config.GroqConfig{BaseURL: "https://api.groq.com/openai/v1"},
	}, logger); err == nil {
		t.Error("expected error when groq API key is missing")
	}
}

func TestGroqRespondEmptyInputSkipsNetwork(t *testing.T) {
	g, err := NewGroq(config.GroqConfig{
		APIKey:  "test-key",
		BaseURL: "http://localhost:0",
		Model:   "llama-3.3-70b-versatile",
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewGroq failed: %v", err)
	}
	got, err := g.Respond(context.Background(), "")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if got != clarifyingPrompt {
		t.Errorf("expected clarifying prompt, got %q", got)
	}
}
