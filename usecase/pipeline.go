// Package usecase orchestrates the voice exchange pipeline: ingest,
// transcription, reply generation, synthesis, and artifact storage.
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
	"github.com/moneihq/monei-voice/internal/audio"
	"github.com/moneihq/monei-voice/internal/events"
	"github.com/moneihq/monei-voice/internal/metrics"
)

// Pipeline stage names, as published on the event feed and recorded in the
// stage duration metrics.
const (
	StageIngesting     = "ingesting"
	StageTranscribing  = "transcribing"
	StageAwaitingReply = "awaiting_reply"
	StageSynthesizing  = "synthesizing"
	StageStoring       = "storing"
	StageComplete      = "complete"
	StageFailed        = "failed"
)

// Input path labels for the exchange counters.
const (
	pathVoice = "voice"
	pathText  = "text"
)

// EventPublisher receives exchange lifecycle events. Publishing must never
// block the pipeline.
type EventPublisher interface {
	Publish(event events.Event)
}

// Pipeline runs complete exchanges. Each request is independent; the
// pipeline holds no per-exchange state between calls.
type Pipeline struct {
	ingestor     *audio.Ingestor
	stt          repositories.SpeechToText
	responder    repositories.ResponseSource
	tts          repositories.TextToSpeech
	store        repositories.ArtifactStore
	events       EventPublisher
	metrics      *metrics.Metrics
	replyTimeout time.Duration
	logger       *zap.Logger
}

// PipelineConfig carries the pipeline's collaborators.
type PipelineConfig struct {
	Ingestor     *audio.Ingestor
	STT          repositories.SpeechToText
	Responder    repositories.ResponseSource
	TTS          repositories.TextToSpeech
	Store        repositories.ArtifactStore
	Events       EventPublisher
	Metrics      *metrics.Metrics
	ReplyTimeout time.Duration
}

// NewPipeline assembles the pipeline.
func NewPipeline(cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		ingestor:     cfg.Ingestor,
		stt:          cfg.STT,
		responder:    cfg.Responder,
		tts:          cfg.TTS,
		store:        cfg.Store,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		replyTimeout: cfg.ReplyTimeout,
		logger:       logger,
	}
}

// Transcribe converts an uploaded audio blob to text without generating a
// reply. Staged files are always removed before returning.
func (p *Pipeline) Transcribe(ctx context.Context, blob []byte, filename string) (domain.Transcript, error) {
	clip, err := p.ingestor.Ingest(ctx, blob, filename)
	if err != nil {
		return domain.Transcript{}, err
	}
	defer clip.Release()

	start := time.Now()
	transcript, err := p.stt.Transcribe(ctx, clip.Path)
	p.metrics.StageDuration.WithLabelValues(StageTranscribing).Observe(time.Since(start).Seconds())
	return transcript, err
}

// VoiceExchange runs the full round trip for an uploaded utterance: the
// audio is transcribed, answered, spoken, and stored. The transcript may be
// empty for silence; the reply provider decides what to say to silence.
func (p *Pipeline) VoiceExchange(ctx context.Context, blob []byte, filename string, voice string) (*domain.Exchange, error) {
	exchangeID := uuid.New().String()
	p.metrics.ExchangesStarted.WithLabelValues(pathVoice).Inc()

	if err := p.checkVoice(voice); err != nil {
		return nil, p.fail(exchangeID, pathVoice, StageSynthesizing, err)
	}

	p.publish(exchangeID, StageIngesting, nil)
	clip, err := p.ingest(ctx, blob, filename)
	if err != nil {
		return nil, p.fail(exchangeID, pathVoice, StageIngesting, err)
	}
	defer clip.Release()

	p.publish(exchangeID, StageTranscribing, nil)
	transcript, err := p.transcribe(ctx, clip.Path)
	if err != nil {
		return nil, p.fail(exchangeID, pathVoice, StageTranscribing, err)
	}

	exchange, err := p.completeExchange(ctx, exchangeID, pathVoice, transcript.Text, voice)
	if err != nil {
		return nil, err
	}
	return exchange, nil
}

// TextExchange runs the reply half of the pipeline for typed input.
func (p *Pipeline) TextExchange(ctx context.Context, text string, voice string) (*domain.Exchange, error) {
	exchangeID := uuid.New().String()
	p.metrics.ExchangesStarted.WithLabelValues(pathText).Inc()

	if err := p.checkVoice(voice); err != nil {
		return nil, p.fail(exchangeID, pathText, StageSynthesizing, err)
	}
	return p.completeExchange(ctx, exchangeID, pathText, text, voice)
}

// completeExchange runs the shared reply, synthesis and storage stages.
func (p *Pipeline) completeExchange(ctx context.Context, exchangeID, path, userText, voice string) (*domain.Exchange, error) {
	p.publish(exchangeID, StageAwaitingReply, nil)
	reply, err := p.respond(ctx, userText)
	if err != nil {
		return nil, p.fail(exchangeID, path, StageAwaitingReply, err)
	}

	p.publish(exchangeID, StageSynthesizing, nil)
	start := time.Now()
	synthesized, err := p.tts.Synthesize(ctx, reply, voice)
	p.metrics.StageDuration.WithLabelValues(StageSynthesizing).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, p.fail(exchangeID, path, StageSynthesizing, err)
	}

	p.publish(exchangeID, StageStoring, nil)
	start = time.Now()
	ref, err := p.store.Store(ctx, synthesized)
	p.metrics.StageDuration.WithLabelValues(StageStoring).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, p.fail(exchangeID, path, StageStoring, err)
	}

	p.publish(exchangeID, StageComplete, nil)
	p.metrics.ExchangesCompleted.WithLabelValues(path).Inc()
	p.logger.Info("exchange complete",
		zap.String("exchange_id", exchangeID),
		zap.String("path", path),
		zap.String("artifact", ref))

	return &domain.Exchange{
		UserText:      userText,
		AIText:        reply,
		AudioRef:      ref,
		AudioDuration: synthesized.Duration,
	}, nil
}

// checkVoice rejects unknown voices before any work is done. An empty voice
// selects the default and is always accepted.
func (p *Pipeline) checkVoice(voice string) error {
	if voice != "" && !p.tts.HasVoice(voice) {
		return domain.Ef(domain.KindVoiceNotFound, "unknown voice %q", voice)
	}
	return nil
}

func (p *Pipeline) ingest(ctx context.Context, blob []byte, filename string) (*audio.Clip, error) {
	start := time.Now()
	clip, err := p.ingestor.Ingest(ctx, blob, filename)
	p.metrics.StageDuration.WithLabelValues(StageIngesting).Observe(time.Since(start).Seconds())
	return clip, err
}

func (p *Pipeline) transcribe(ctx context.Context, path string) (domain.Transcript, error) {
	start := time.Now()
	transcript, err := p.stt.Transcribe(ctx, path)
	p.metrics.StageDuration.WithLabelValues(StageTranscribing).Observe(time.Since(start).Seconds())
	return transcript, err
}

// respond asks the reply provider under its own deadline. Provider faults,
// timeouts and empty replies all surface as response_source_unavailable.
func (p *Pipeline) respond(ctx context.Context, userText string) (string, error) {
	replyCtx, cancel := context.WithTimeout(ctx, p.replyTimeout)
	defer cancel()

	start := time.Now()
	reply, err := p.responder.Respond(replyCtx, userText)
	p.metrics.StageDuration.WithLabelValues(StageAwaitingReply).Observe(time.Since(start).Seconds())
	if err != nil {
		if domain.IsKind(err, domain.KindResponseSourceUnavailable) {
			return "", err
		}
		return "", domain.E(domain.KindResponseSourceUnavailable, "reply provider failed", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", domain.Ef(domain.KindResponseSourceUnavailable, "reply provider returned an empty reply")
	}
	return reply, nil
}

// fail records the failure on every channel and passes the error through.
func (p *Pipeline) fail(exchangeID, path, stage string, err error) error {
	p.metrics.ExchangesFailed.WithLabelValues(path, string(domain.KindOf(err))).Inc()
	p.publish(exchangeID, StageFailed, err)
	p.logger.Warn("exchange failed",
		zap.String("exchange_id", exchangeID),
		zap.String("path", path),
		zap.String("stage", stage),
		zap.Error(err))
	return err
}

func (p *Pipeline) publish(exchangeID, stage string, err error) {
	event := events.Event{ExchangeID: exchangeID, Stage: stage}
	if err != nil {
		event.Error = string(domain.KindOf(err))
	}
	p.events.Publish(event)
}
