package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
)

// Clip is a normalized audio file staged for transcription. The creating
// request owns it exclusively; Release removes every file it produced and
// must run on all exit paths.
type Clip struct {
	// Path points at audio the recognition engine can read directly.
	Path string

	raw       string
	converted string

	mu       sync.Mutex
	released bool
}

// Release deletes the clip's files. It is idempotent.
func (c *Clip) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true
	if c.raw != "" {
		os.Remove(c.raw)
	}
	if c.converted != "" && c.converted != c.raw {
		os.Remove(c.converted)
	}
}

// Ingestor writes uploaded audio blobs to scoped temporary files and
// transcodes them to the sample rate and channel count the recognition
// engine requires.
type Ingestor struct {
	dir        string
	maxBytes   int64
	ffmpeg     string
	sampleRate int
	channels   int
	logger     *zap.Logger
}

// IngestorConfig configures an Ingestor.
type IngestorConfig struct {
	Dir        string
	MaxBytes   int64
	FFmpegPath string
	SampleRate int
	Channels   int
}

// NewIngestor creates an Ingestor, creating the staging directory if needed.
func NewIngestor(cfg IngestorConfig, logger *zap.Logger) (*Ingestor, error) {
	if cfg.MaxBytes < 1 {
		return nil, fmt.Errorf("max bytes must be positive, got %d", cfg.MaxBytes)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	ffmpeg := cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Ingestor{
		dir:        cfg.Dir,
		maxBytes:   cfg.MaxBytes,
		ffmpeg:     ffmpeg,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		logger:     logger,
	}, nil
}

// Ingest stages blob on disk and returns a Clip whose Path the recognition
// engine can consume. Uploads that already carry a WAV container are used as
// is; anything else is transcoded. Oversize payloads are rejected before any
// file is written.
func (i *Ingestor) Ingest(ctx context.Context, blob []byte, filename string) (*Clip, error) {
	if len(blob) == 0 {
		return nil, domain.Ef(domain.KindUnsupportedAudioFormat, "empty audio payload")
	}
	if int64(len(blob)) > i.maxBytes {
		return nil, domain.Ef(domain.KindPayloadTooLarge,
			"audio payload is %d bytes, limit is %d", len(blob), i.maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".webm"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	raw := filepath.Join(i.dir, id+ext)

	if err := os.WriteFile(raw, blob, 0o644); err != nil {
		return nil, fmt.Errorf("stage audio upload: %w", err)
	}
	clip := &Clip{Path: raw, raw: raw}

	if ext == ".wav" {
		return clip, nil
	}

	converted := filepath.Join(i.dir, id+"_converted.wav")
	if err := i.transcode(ctx, raw, converted); err != nil {
		clip.Release()
		return nil, err
	}
	clip.Path = converted
	clip.converted = converted
	return clip, nil
}

func (i *Ingestor) transcode(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, i.ffmpeg,
		"-y",
		"-i", src,
		"-ar", fmt.Sprint(i.sampleRate),
		"-ac", fmt.Sprint(i.channels),
		"-f", "wav",
		dst,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(dst)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		i.logger.Warn("ffmpeg transcode failed",
			zap.String("src", src),
			zap.Error(err),
			zap.String("output", tail(string(out), 200)))
		return domain.E(domain.KindUnsupportedAudioFormat,
			"audio could not be decoded", err)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
