package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
)

// WhisperConfig configures the local whisper.cpp engine.
type WhisperConfig struct {
	// BinaryPath is the whisper.cpp CLI binary (default "whisper-cli").
	BinaryPath string
	// ModelPath points at a ggml model file; it must exist at startup.
	ModelPath string
	// Language hint, empty for auto-detection.
	Language string
	// Threads per inference run.
	Threads int
	// Concurrency caps how many inference runs execute at once. 1 serializes
	// all transcription through a single slot.
	Concurrency int
}

// WhisperEngine implements SpeechToText on a local whisper.cpp model.
// The handle is constructed once at process start and injected; inference
// runs are bounded by a fixed slot pool since the model is CPU-heavy.
type WhisperEngine struct {
	binary   string
	model    string
	language string
	threads  int
	slots    chan struct{}
	logger   *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperEngine)(nil)

// NewWhisperEngine validates the binary and model file up front so a broken
// installation fails at startup rather than on the first request.
func NewWhisperEngine(cfg WhisperConfig, logger *zap.Logger) (*WhisperEngine, error) {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = "whisper-cli"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("whisper binary %q not found: %w", binary, err)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("whisper model %q: %w", cfg.ModelPath, err)
	}
	threads := cfg.Threads
	if threads < 1 {
		threads = 4
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &WhisperEngine{
		binary:   binary,
		model:    cfg.ModelPath,
		language: cfg.Language,
		threads:  threads,
		slots:    make(chan struct{}, concurrency),
		logger:   logger,
	}, nil
}

// Transcribe runs one whisper.cpp inference over the WAV file at audioPath.
// Silence-only audio yields an empty transcript, not an error.
func (w *WhisperEngine) Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error) {
	select {
	case w.slots <- struct{}{}:
		defer func() { <-w.slots }()
	case <-ctx.Done():
		return domain.Transcript{}, ctx.Err()
	}

	language := w.language
	if language == "" {
		language = "auto"
	}
	outPrefix := strings.TrimSuffix(audioPath, ".wav")
	cmd := exec.CommandContext(ctx, w.binary,
		"-m", w.model,
		"-f", audioPath,
		"-l", language,
		"-t", fmt.Sprint(w.threads),
		"-oj",
		"-of", outPrefix,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return domain.Transcript{}, ctx.Err()
		}
		w.logger.Error("whisper inference failed",
			zap.String("audio", audioPath),
			zap.Error(err),
			zap.String("output", tail(string(out), 200)))
		return domain.Transcript{}, domain.E(domain.KindTranscriptionFailed,
			"recognition engine failed", err)
	}

	jsonPath := outPrefix + ".json"
	defer os.Remove(jsonPath)

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return domain.Transcript{}, domain.E(domain.KindTranscriptionFailed,
			"engine produced no output", err)
	}
	return parseWhisperOutput(data)
}

// whisperOutput mirrors the whisper.cpp -oj JSON layout.
type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(data []byte) (domain.Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.Transcript{}, domain.E(domain.KindTranscriptionFailed,
			"engine output could not be parsed", err)
	}

	var sb strings.Builder
	var durationMS int64
	for _, seg := range out.Transcription {
		sb.WriteString(seg.Text)
		if seg.Offsets.To > durationMS {
			durationMS = seg.Offsets.To
		}
	}
	return domain.Transcript{
		Text:     strings.TrimSpace(sb.String()),
		Language: out.Result.Language,
		Duration: float64(durationMS) / 1000,
	}, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
