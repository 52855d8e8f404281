package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText on the Google Cloud Speech
// batch API. The client is created once at startup and shared; the service
// handles concurrent requests, so no local serialization is needed.
type GoogleSpeechToText struct {
	client     *speech.Client
	language   string
	sampleRate int
	logger     *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates the cloud client. Credentials come from the
// ambient Google application-default mechanism.
func NewGoogleSpeechToText(ctx context.Context, language string, sampleRate int, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &GoogleSpeechToText{
		client:     client,
		language:   language,
		sampleRate: sampleRate,
		logger:     logger,
	}, nil
}

// Transcribe sends the whole normalized WAV file in one batch recognize
// call. Audio in which the service detects no speech yields an empty
// transcript.
func (g *GoogleSpeechToText) Transcribe(ctx context.Context, audioPath string) (domain.Transcript, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return domain.Transcript{}, domain.E(domain.KindTranscriptionFailed,
			"read normalized audio", err)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(g.sampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: data},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.Transcript{}, ctx.Err()
		}
		return domain.Transcript{}, domain.E(domain.KindTranscriptionFailed,
			"cloud recognition failed", err)
	}

	var sb strings.Builder
	var duration float64
	language := g.language
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		sb.WriteString(result.Alternatives[0].Transcript)
		if end := result.ResultEndTime.AsDuration().Seconds(); end > duration {
			duration = end
		}
		if result.LanguageCode != "" {
			language = result.LanguageCode
		}
	}
	return domain.Transcript{
		Text:     strings.TrimSpace(sb.String()),
		Language: language,
		Duration: duration,
	}, nil
}

// Close releases the underlying gRPC connection.
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}
