package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
	"github.com/moneihq/monei-voice/internal/audio"
)

const (
	defaultBaseURL = "https://yarngpt.ai/api/v1"

	// maxTextLength is the upstream per-request character cap.
	maxTextLength = 2000

	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 8 * time.Second
)

var formatMIMETypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"opus": "audio/ogg",
	"flac": "audio/flac",
}

// YarnGPTConfig configures the YarnGPT synthesizer client.
type YarnGPTConfig struct {
	BaseURL        string
	APIKey         string
	ResponseFormat string
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxRetries is the total attempt budget, including the first try.
	MaxRetries int
}

// YarnGPT implements TextToSpeech against the YarnGPT HTTP API. It does not
// persist audio; the artifact store owns the bytes after synthesis.
type YarnGPT struct {
	baseURL    string
	apiKey     string
	format     string
	timeout    time.Duration
	maxRetries int
	client     *http.Client
	catalog    *Catalog
	logger     *zap.Logger
}

var _ repositories.TextToSpeech = (*YarnGPT)(nil)

// NewYarnGPT validates the configuration and builds the client. A missing
// API key is a startup failure, not a per-request surprise.
func NewYarnGPT(cfg YarnGPTConfig, catalog *Catalog, logger *zap.Logger) (*YarnGPT, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("yarngpt API key is required")
	}
	if _, ok := formatMIMETypes[cfg.ResponseFormat]; !ok && cfg.ResponseFormat != "" {
		return nil, fmt.Errorf("unsupported response format %q", cfg.ResponseFormat)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	format := cfg.ResponseFormat
	if format == "" {
		format = "mp3"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 3
	}

	return &YarnGPT{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		format:     format,
		timeout:    timeout,
		maxRetries: maxRetries,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		catalog: catalog,
		logger:  logger,
	}, nil
}

// Voices returns the current voice catalog.
func (y *YarnGPT) Voices() []domain.Voice { return y.catalog.List() }

// HasVoice reports whether the catalog accepts the voice name.
func (y *YarnGPT) HasVoice(name string) bool { return y.catalog.Has(name) }

// RefreshVoices re-fetches the voice catalog from the service and swaps it
// in atomically.
func (y *YarnGPT) RefreshVoices(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/voices", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+y.apiKey)

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch voice catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return fmt.Errorf("voice catalog fetch returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Voices []domain.Voice `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode voice catalog: %w", err)
	}
	if len(payload.Voices) == 0 {
		return fmt.Errorf("voice catalog fetch returned no voices")
	}

	voices := make(map[string]string, len(payload.Voices))
	for _, v := range payload.Voices {
		voices[v.Name] = v.Description
	}
	if err := y.catalog.replace(voices); err != nil {
		return err
	}
	y.logger.Info("voice catalog refreshed", zap.Int("count", len(voices)))
	return nil
}

type synthesisRequest struct {
	Text           string `json:"text"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize converts text to audio with the named voice. The voice is
// checked against the catalog before any network I/O. Transient upstream
// failures are retried with exponential backoff inside the attempt budget;
// auth and caller errors surface immediately.
func (y *YarnGPT) Synthesize(ctx context.Context, text string, voice string) (*domain.SynthesizedAudio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.Ef(domain.KindInternal, "synthesis text is empty")
	}
	if len(text) > maxTextLength {
		return nil, domain.Ef(domain.KindPayloadTooLarge,
			"synthesis text is %d chars, limit is %d", len(text), maxTextLength)
	}

	voice = NormalizeVoice(voice)
	if voice == "" {
		voice = y.catalog.Default()
	}
	if !y.catalog.Has(voice) {
		return nil, domain.Ef(domain.KindVoiceNotFound, "unknown voice %q", voice)
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:           text,
		Voice:          voice,
		ResponseFormat: y.format,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < y.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, retryable, err := y.doRequest(ctx, payload, voice)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		if !retryable {
			break
		}
		y.logger.Warn("synthesis attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

// doRequest performs one synthesis attempt with its own deadline. The bool
// reports whether the failure is worth another attempt.
func (y *YarnGPT) doRequest(ctx context.Context, payload []byte, voice string) (*domain.SynthesizedAudio, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, y.baseURL+"/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+y.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, true, domain.E(domain.KindSynthesisTimeout,
				"speech service did not answer in time", err)
		}
		return nil, true, domain.E(domain.KindSynthesisUnavailable,
			"speech service request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, domain.E(domain.KindSynthesisUnavailable,
				"read synthesized audio", err)
		}
		mimeType := formatMIMETypes[y.format]
		return &domain.SynthesizedAudio{
			Bytes:    data,
			MIMEType: mimeType,
			Duration: audio.Duration(data, mimeType),
		}, false, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, domain.Ef(domain.KindAuthenticationFailed,
			"speech service rejected the credential (HTTP %d)", resp.StatusCode)

	case resp.StatusCode >= 500:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, true, domain.Ef(domain.KindSynthesisUnavailable,
			"speech service error (HTTP %d): %s", resp.StatusCode, body)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
		return nil, false, domain.Ef(domain.KindSynthesisUnavailable,
			"speech service refused the request (HTTP %d): %s", resp.StatusCode, body)
	}
}
