package usecase

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/moneihq/monei-voice/adapters/stt"
	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/internal/audio"
	"github.com/moneihq/monei-voice/internal/events"
	"github.com/moneihq/monei-voice/internal/metrics"
)

type mockResponder struct {
	reply string
	err   error
	delay time.Duration
	calls int
	last  string
}

func (m *mockResponder) Respond(ctx context.Context, userText string) (string, error) {
	m.calls++
	m.last = userText
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.reply, m.err
}

type mockTTS struct {
	audio      *domain.SynthesizedAudio
	err        error
	synthCalls int
}

func (m *mockTTS) Synthesize(ctx context.Context, text, voice string) (*domain.SynthesizedAudio, error) {
	m.synthCalls++
	return m.audio, m.err
}

func (m *mockTTS) Voices() []domain.Voice          { return []domain.Voice{{Name: "Idera"}} }
func (m *mockTTS) HasVoice(name string) bool       { return name == "Idera" }
func (m *mockTTS) RefreshVoices(context.Context) error { return nil }

type mockStore struct {
	mu        sync.Mutex
	artifacts map[string][]byte
	storeErr  error
}

func newMockStore() *mockStore {
	return &mockStore{artifacts: make(map[string][]byte)}
}

func (m *mockStore) Store(ctx context.Context, a *domain.SynthesizedAudio) (string, error) {
	if m.storeErr != nil {
		return "", m.storeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "artifact.mp3"
	m.artifacts[ref] = a.Bytes
	return ref, nil
}

func (m *mockStore) Retrieve(ctx context.Context, ref string) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.artifacts[ref]
	if !ok {
		return nil, domain.Ef(domain.KindArtifactNotFound, "no artifact %q", ref)
	}
	return &domain.Artifact{ID: ref, Bytes: data, MIMEType: "audio/mpeg"}, nil
}

func (m *mockStore) Evict(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, ref)
	return nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) Publish(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}

type pipelineFixture struct {
	pipeline  *Pipeline
	stagingDir string
	stt       *stt.MockSpeechToText
	responder *mockResponder
	tts       *mockTTS
	store     *mockStore
	events    *eventRecorder
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	dir := t.TempDir()
	ingestor, err := audio.NewIngestor(audio.IngestorConfig{
		Dir:        dir,
		MaxBytes:   1 << 20,
		SampleRate: 16000,
		Channels:   1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewIngestor failed: %v", err)
	}

	f := &pipelineFixture{
		stagingDir: dir,
		stt:       &stt.MockSpeechToText{Transcript: domain.Transcript{Text: "hello there", Language: "en", Duration: 1.5}},
		responder: &mockResponder{reply: "hi, how can I help?"},
		tts:       &mockTTS{audio: &domain.SynthesizedAudio{Bytes: []byte("mp3"), MIMEType: "audio/mpeg", Duration: 2.0}},
		store:     newMockStore(),
		events:    &eventRecorder{},
	}
	f.pipeline = NewPipeline(PipelineConfig{
		Ingestor:     ingestor,
		STT:          f.stt,
		Responder:    f.responder,
		TTS:          f.tts,
		Store:        f.store,
		Events:       f.events,
		Metrics:      metrics.New(prometheus.NewRegistry()),
		ReplyTimeout: 2 * time.Second,
	}, zaptest.NewLogger(t))
	return f
}

func (f *pipelineFixture) assertStagingEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.stagingDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty staging dir, found %d files", len(entries))
	}
}

func TestVoiceExchangeCompletes(t *testing.T) {
	f := newFixture(t)

	exchange, err := f.pipeline.VoiceExchange(context.Background(), []byte("RIFFdata"), "clip.wav", "Idera")
	if err != nil {
		t.Fatalf("VoiceExchange failed: %v", err)
	}
	if exchange.UserText != "hello there" {
		t.Errorf("unexpected user text %q", exchange.UserText)
	}
	if exchange.AIText != "hi, how can I help?" {
		t.Errorf("unexpected reply %q", exchange.AIText)
	}
	if exchange.AudioDuration != 2.0 {
		t.Errorf("unexpected duration %f", exchange.AudioDuration)
	}

	artifact, err := f.store.Retrieve(context.Background(), exchange.AudioRef)
	if err != nil {
		t.Fatalf("stored artifact not retrievable: %v", err)
	}
	if string(artifact.Bytes) != "mp3" {
		t.Errorf("unexpected artifact bytes %q", artifact.Bytes)
	}

	stages := f.events.stages()
	if len(stages) == 0 || stages[len(stages)-1] != StageComplete {
		t.Errorf("expected final stage complete, got %v", stages)
	}
	f.assertStagingEmpty(t)
}

func TestTextExchangeCompletes(t *testing.T) {
	f := newFixture(t)

	exchange, err := f.pipeline.TextExchange(context.Background(), "what time is it", "")
	if err != nil {
		t.Fatalf("TextExchange failed: %v", err)
	}
	if exchange.UserText != "what time is it" {
		t.Errorf("unexpected user text %q", exchange.UserText)
	}
	if len(f.stt.Calls) != 0 {
		t.Errorf("text path must not transcribe, got %d calls", len(f.stt.Calls))
	}
	if f.responder.last != "what time is it" {
		t.Errorf("responder saw %q", f.responder.last)
	}
}

func TestVoiceExchangeUnknownVoiceFailsBeforeAnyWork(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.VoiceExchange(context.Background(), []byte("RIFFdata"), "clip.wav", "Nobody")
	if !domain.IsKind(err, domain.KindVoiceNotFound) {
		t.Fatalf("expected voice_not_found, got %v", err)
	}
	if len(f.stt.Calls) != 0 || f.responder.calls != 0 || f.tts.synthCalls != 0 {
		t.Error("expected no pipeline work after voice rejection")
	}
	if len(f.store.artifacts) != 0 {
		t.Error("expected no stored artifacts")
	}
	f.assertStagingEmpty(t)
}

func TestVoiceExchangeEmptyTranscriptStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.stt.Transcript = domain.Transcript{}

	exchange, err := f.pipeline.VoiceExchange(context.Background(), []byte("RIFFdata"), "clip.wav", "")
	if err != nil {
		t.Fatalf("VoiceExchange failed: %v", err)
	}
	if exchange.UserText != "" {
		t.Errorf("expected empty user text, got %q", exchange.UserText)
	}
	if f.responder.calls != 1 {
		t.Errorf("expected responder consulted for silence, got %d calls", f.responder.calls)
	}
}

func TestVoiceExchangeTranscriptionFailure(t *testing.T) {
	f := newFixture(t)
	f.stt.Err = domain.Ef(domain.KindTranscriptionFailed, "engine crashed")

	_, err := f.pipeline.VoiceExchange(context.Background(), []byte("RIFFdata"), "clip.wav", "")
	if !domain.IsKind(err, domain.KindTranscriptionFailed) {
		t.Fatalf("expected transcription_failed, got %v", err)
	}
	if f.responder.calls != 0 || f.tts.synthCalls != 0 {
		t.Error("expected pipeline stopped at transcription")
	}
	if len(f.store.artifacts) != 0 {
		t.Error("expected no stored artifacts after failure")
	}
	f.assertStagingEmpty(t)

	stages := f.events.stages()
	if stages[len(stages)-1] != StageFailed {
		t.Errorf("expected final stage failed, got %v", stages)
	}
}

func TestExchangeFailsWhenResponderErrors(t *testing.T) {
	f := newFixture(t)
	f.responder.err = errors.New("upstream down")

	_, err := f.pipeline.TextExchange(context.Background(), "hello", "")
	if !domain.IsKind(err, domain.KindResponseSourceUnavailable) {
		t.Fatalf("expected response_source_unavailable, got %v", err)
	}
	if f.tts.synthCalls != 0 {
		t.Error("expected no synthesis after responder failure")
	}
}

func TestExchangeFailsOnEmptyReply(t *testing.T) {
	f := newFixture(t)
	f.responder.reply = "   "

	_, err := f.pipeline.TextExchange(context.Background(), "hello", "")
	if !domain.IsKind(err, domain.KindResponseSourceUnavailable) {
		t.Fatalf("expected response_source_unavailable, got %v", err)
	}
}

func TestExchangeReplyTimeout(t *testing.T) {
	f := newFixture(t)
	f.responder.delay = 5 * time.Second
	f.pipeline.replyTimeout = 50 * time.Millisecond

	_, err := f.pipeline.TextExchange(context.Background(), "hello", "")
	if !domain.IsKind(err, domain.KindResponseSourceUnavailable) {
		t.Fatalf("expected response_source_unavailable, got %v", err)
	}
}

func TestExchangeFailsWhenStoreFails(t *testing.T) {
	f := newFixture(t)
	f.store.storeErr = errors.New("disk full")

	_, err := f.pipeline.TextExchange(context.Background(), "hello", "")
	if err == nil {
		t.Fatal("expected error when store fails")
	}
	stages := f.events.stages()
	if stages[len(stages)-1] != StageFailed {
		t.Errorf("expected final stage failed, got %v", stages)
	}
}

func TestTranscribeReleasesStagedAudio(t *testing.T) {
	f := newFixture(t)

	transcript, err := f.pipeline.Transcribe(context.Background(), []byte("RIFFdata"), "clip.wav")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "hello there" {
		t.Errorf("unexpected transcript %q", transcript.Text)
	}
	f.assertStagingEmpty(t)
}
