package audio

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/moneihq/monei-voice/domain"
)

func newTestIngestor(t *testing.T, maxBytes int64) *Ingestor {
	t.Helper()
	ing, err := NewIngestor(IngestorConfig{
		Dir:        t.TempDir(),
		MaxBytes:   maxBytes,
		SampleRate: 16000,
		Channels:   1,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewIngestor failed: %v", err)
	}
	return ing
}

func TestIngestRejectsEmptyPayload(t *testing.T) {
	ing := newTestIngestor(t, 1024)

	_, err := ing.Ingest(context.Background(), nil, "audio.webm")
	if !domain.IsKind(err, domain.KindUnsupportedAudioFormat) {
		t.Errorf("expected unsupported_audio_format, got %v", err)
	}
}

func TestIngestRejectsOversizePayload(t *testing.T) {
	ing := newTestIngestor(t, 8)

	_, err := ing.Ingest(context.Background(), make([]byte, 9), "audio.webm")
	if !domain.IsKind(err, domain.KindPayloadTooLarge) {
		t.Errorf("expected payload_too_large, got %v", err)
	}

	// Nothing may be left behind after a rejected ingest.
	entries, _ := os.ReadDir(ing.dir)
	if len(entries) != 0 {
		t.Errorf("expected empty staging dir, found %d entries", len(entries))
	}
}

func TestIngestKeepsWAVUploads(t *testing.T) {
	ing := newTestIngestor(t, 1024)

	clip, err := ing.Ingest(context.Background(), []byte("RIFF fake wav"), "recording.wav")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if filepath.Ext(clip.Path) != ".wav" {
		t.Errorf("expected .wav path, got %s", clip.Path)
	}
	if _, err := os.Stat(clip.Path); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}

	clip.Release()
	if _, err := os.Stat(clip.Path); !os.IsNotExist(err) {
		t.Errorf("expected staged file removed after Release, stat err = %v", err)
	}
}

func TestClipReleaseIsIdempotent(t *testing.T) {
	ing := newTestIngestor(t, 1024)

	clip, err := ing.Ingest(context.Background(), []byte("RIFF fake wav"), "a.wav")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	clip.Release()
	clip.Release() // must not panic or error
}

func TestIngestUndecodableUpload(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	ing := newTestIngestor(t, 1024)

	_, err := ing.Ingest(context.Background(), []byte{0xde, 0xad, 0xbe, 0xef}, "garbage.bin")
	if !domain.IsKind(err, domain.KindUnsupportedAudioFormat) {
		t.Errorf("expected unsupported_audio_format, got %v", err)
	}

	entries, _ := os.ReadDir(ing.dir)
	if len(entries) != 0 {
		t.Errorf("expected staging dir cleaned after failed transcode, found %d entries", len(entries))
	}
}
