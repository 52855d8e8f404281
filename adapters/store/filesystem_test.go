package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/internal/metrics"
)

func newTestFilesystem(t *testing.T, ttl time.Duration, maxBytes int64) *Filesystem {
	t.Helper()
	fs, err := NewFilesystem(FilesystemConfig{
		Dir:           t.TempDir(),
		TTL:           ttl,
		MaxBytes:      maxBytes,
		SweepInterval: time.Minute,
	}, metrics.New(prometheus.NewRegistry()), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFilesystem failed: %v", err)
	}
	return fs
}

func TestStoreAndRetrieve(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 1<<20)
	audio := &domain.SynthesizedAudio{Bytes: []byte("mp3 payload"), MIMEType: "audio/mpeg"}

	ref, err := fs.Store(context.Background(), audio)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !refPattern.MatchString(ref) {
		t.Fatalf("reference %q does not match the expected shape", ref)
	}

	got, err := fs.Retrieve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !bytes.Equal(got.Bytes, audio.Bytes) {
		t.Errorf("retrieved bytes differ: %q", got.Bytes)
	}
	if got.MIMEType != "audio/mpeg" {
		t.Errorf("expected audio/mpeg, got %s", got.MIMEType)
	}
}

func TestRetrieveUnknownRef(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 1<<20)
	for _, ref := range []string{
		"00000000000000000000000000000000.mp3",
		"../etc/passwd",
		"a.mp3",
		"00000000000000000000000000000000.exe",
	} {
		if _, err := fs.Retrieve(context.Background(), ref); !domain.IsKind(err, domain.KindArtifactNotFound) {
			t.Errorf("Retrieve(%q): expected artifact_not_found, got %v", ref, err)
		}
	}
}

func TestStoreRejectsEmptyAudio(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 1<<20)
	if _, err := fs.Store(context.Background(), &domain.SynthesizedAudio{MIMEType: "audio/mpeg"}); err == nil {
		t.Error("expected error for empty artifact")
	}
}

func TestEvictIsIdempotent(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 1<<20)
	ref, err := fs.Store(context.Background(), &domain.SynthesizedAudio{Bytes: []byte("x"), MIMEType: "audio/wav"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if err := fs.Evict(context.Background(), ref); err != nil {
		t.Fatalf("Evict failed: %v", err)
	}
	if err := fs.Evict(context.Background(), ref); err != nil {
		t.Fatalf("second Evict failed: %v", err)
	}
	if _, err := fs.Retrieve(context.Background(), ref); !domain.IsKind(err, domain.KindArtifactNotFound) {
		t.Errorf("expected artifact_not_found after evict, got %v", err)
	}
}

func TestRetrieveEvictsExpiredArtifact(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 1<<20)
	ref, err := fs.Store(context.Background(), &domain.SynthesizedAudio{Bytes: []byte("old"), MIMEType: "audio/mpeg"})
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(filepath.Join(fs.dir, ref), old, old); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if _, err := fs.Retrieve(context.Background(), ref); !domain.IsKind(err, domain.KindArtifactNotFound) {
		t.Errorf("expected artifact_not_found for expired artifact, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(fs.dir, ref)); !os.IsNotExist(err) {
		t.Error("expected expired artifact removed from disk")
	}
}

func TestSweepRemovesExpiredAndOversize(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 10)

	expired, _ := fs.Store(context.Background(), &domain.SynthesizedAudio{Bytes: []byte("stale"), MIMEType: "audio/mpeg"})
	old := time.Now().Add(-2 * time.Hour)
	os.Chtimes(filepath.Join(fs.dir, expired), old, old)

	oldest, _ := fs.Store(context.Background(), &domain.SynthesizedAudio{Bytes: []byte("12345678"), MIMEType: "audio/mpeg"})
	older := time.Now().Add(-time.Minute)
	os.Chtimes(filepath.Join(fs.dir, oldest), older, older)
	newest, _ := fs.Store(context.Background(), &domain.SynthesizedAudio{Bytes: []byte("87654321"), MIMEType: "audio/mpeg"})

	fs.sweep()

	if _, err := os.Stat(filepath.Join(fs.dir, expired)); !os.IsNotExist(err) {
		t.Error("expected expired artifact swept")
	}
	if _, err := os.Stat(filepath.Join(fs.dir, oldest)); !os.IsNotExist(err) {
		t.Error("expected oldest artifact swept under size pressure")
	}
	if _, err := os.Stat(filepath.Join(fs.dir, newest)); err != nil {
		t.Errorf("expected newest artifact kept: %v", err)
	}
}

func TestSweepRemovesStalePartialWrites(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 1<<20)

	stale := filepath.Join(fs.dir, "00000000000000000000000000000000.mp3"+partialSuffix)
	if err := os.WriteFile(stale, []byte("half written"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	os.Chtimes(stale, old, old)

	fresh := filepath.Join(fs.dir, "11111111111111111111111111111111.mp3"+partialSuffix)
	if err := os.WriteFile(fresh, []byte("in progress"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	fs.sweep()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("expected stale partial write removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("expected fresh partial write kept: %v", err)
	}
}

func TestPartialWriteIsNotRetrievable(t *testing.T) {
	fs := newTestFilesystem(t, time.Hour, 1<<20)

	ref := "22222222222222222222222222222222.mp3"
	if err := os.WriteFile(filepath.Join(fs.dir, ref+partialSuffix), []byte("half"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := fs.Retrieve(context.Background(), ref); !domain.IsKind(err, domain.KindArtifactNotFound) {
		t.Errorf("expected artifact_not_found for partial write, got %v", err)
	}
}
