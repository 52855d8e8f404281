// Package store provides the artifact store backends. Artifacts are
// synthesized audio blobs addressed by opaque references; the store is
// their only long-lived owner and evicts them by TTL and size pressure.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
	"github.com/moneihq/monei-voice/internal/metrics"
)

// partialSuffix marks an in-progress write. Partial files are never served
// and are swept once they go stale.
const partialSuffix = ".partial"

// stalePartialAge is how long a partial file may linger before the janitor
// treats the write as abandoned.
const stalePartialAge = 5 * time.Minute

// refPattern is the only accepted reference shape. Anything else, including
// path separators and dot segments, is rejected before touching the disk.
var refPattern = regexp.MustCompile(`^[a-f0-9]{32}\.(mp3|wav|ogg|flac)$`)

var extByMIME = map[string]string{
	"audio/mpeg": "mp3",
	"audio/wav":  "wav",
	"audio/ogg":  "ogg",
	"audio/flac": "flac",
}

var mimeByExt = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
}

// FilesystemConfig configures the on-disk artifact store.
type FilesystemConfig struct {
	Dir           string
	TTL           time.Duration
	MaxBytes      int64
	SweepInterval time.Duration
}

// Filesystem stores artifacts as files under a dedicated directory. Writes
// go to a partial file first and are renamed into place, so a reference
// only ever resolves to a complete artifact.
type Filesystem struct {
	dir           string
	ttl           time.Duration
	maxBytes      int64
	sweepInterval time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

var _ repositories.ArtifactStore = (*Filesystem)(nil)

// NewFilesystem creates the store directory if needed.
func NewFilesystem(cfg FilesystemConfig, m *metrics.Metrics, logger *zap.Logger) (*Filesystem, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir %s: %w", cfg.Dir, err)
	}
	return &Filesystem{
		dir:           cfg.Dir,
		ttl:           cfg.TTL,
		maxBytes:      cfg.MaxBytes,
		sweepInterval: cfg.SweepInterval,
		metrics:       m,
		logger:        logger,
	}, nil
}

// Store writes the audio under a fresh reference. The artifact becomes
// visible only after the final rename.
func (f *Filesystem) Store(ctx context.Context, audio *domain.SynthesizedAudio) (string, error) {
	if audio == nil || len(audio.Bytes) == 0 {
		return "", domain.Ef(domain.KindInternal, "refusing to store empty artifact")
	}
	ext, ok := extByMIME[audio.MIMEType]
	if !ok {
		return "", domain.Ef(domain.KindInternal, "unsupported artifact MIME type %q", audio.MIMEType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := strings.ReplaceAll(uuid.New().String(), "-", "") + "." + ext
	final := filepath.Join(f.dir, ref)
	partial := final + partialSuffix

	if err := os.WriteFile(partial, audio.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("publish artifact: %w", err)
	}

	f.logger.Debug("artifact stored",
		zap.String("ref", ref),
		zap.Int("bytes", len(audio.Bytes)))
	return ref, nil
}

// Retrieve returns a full copy of the artifact. A reference whose TTL has
// passed is evicted on the way and reported as not found.
func (f *Filesystem) Retrieve(ctx context.Context, ref string) (*domain.Artifact, error) {
	if !refPattern.MatchString(ref) {
		return nil, domain.Ef(domain.KindArtifactNotFound, "no artifact %q", ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.dir, ref)
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.Ef(domain.KindArtifactNotFound, "no artifact %q", ref)
	}
	if time.Since(info.ModTime()) > f.ttl {
		f.remove(ref)
		return nil, domain.Ef(domain.KindArtifactNotFound, "no artifact %q", ref)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.Ef(domain.KindArtifactNotFound, "no artifact %q", ref)
	}
	return &domain.Artifact{
		ID:       ref,
		Bytes:    data,
		MIMEType: mimeByExt[strings.TrimPrefix(filepath.Ext(ref), ".")],
	}, nil
}

// Evict removes the artifact. Absent artifacts are ignored.
func (f *Filesystem) Evict(ctx context.Context, ref string) error {
	if !refPattern.MatchString(ref) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.remove(ref)
	return nil
}

func (f *Filesystem) remove(ref string) {
	if err := os.Remove(filepath.Join(f.dir, ref)); err == nil {
		f.metrics.ArtifactsEvicted.Inc()
	}
}

// Run sweeps the directory until the context is cancelled. It is meant to
// run as a single background goroutine.
func (f *Filesystem) Run(ctx context.Context) {
	ticker := time.NewTicker(f.sweepInterval)
	defer ticker.Stop()

	f.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.sweep()
		}
	}
}

type artifactInfo struct {
	ref     string
	size    int64
	modTime time.Time
}

// sweep drops expired artifacts, abandoned partial writes, and then the
// oldest artifacts until the directory fits the size cap.
func (f *Filesystem) sweep() {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		f.logger.Warn("artifact sweep failed", zap.Error(err))
		return
	}

	now := time.Now()
	var live []artifactInfo
	var total int64

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if strings.HasSuffix(name, partialSuffix) {
			if now.Sub(info.ModTime()) > stalePartialAge {
				os.Remove(filepath.Join(f.dir, name))
				f.logger.Warn("removed abandoned partial write", zap.String("file", name))
			}
			continue
		}
		if !refPattern.MatchString(name) {
			continue
		}
		if now.Sub(info.ModTime()) > f.ttl {
			f.remove(name)
			continue
		}
		live = append(live, artifactInfo{ref: name, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	if total > f.maxBytes {
		sort.Slice(live, func(i, j int) bool { return live[i].modTime.Before(live[j].modTime) })
		evicted := 0
		for _, a := range live {
			if total <= f.maxBytes {
				break
			}
			f.remove(a.ref)
			total -= a.size
			evicted++
			f.logger.Info("artifact evicted under size pressure",
				zap.String("ref", a.ref),
				zap.Int64("bytes", a.size))
		}
		live = live[evicted:]
	}

	f.metrics.ArtifactsStored.Set(float64(len(live)))
	f.metrics.ArtifactBytes.Set(float64(total))
}
