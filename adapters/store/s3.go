package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/moneihq/monei-voice/domain"
	"github.com/moneihq/monei-voice/domain/repositories"
	"github.com/moneihq/monei-voice/internal/metrics"
)

// S3Config configures the object-storage artifact backend.
type S3Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Secure        bool
	TTL           time.Duration
	SweepInterval time.Duration
}

// S3 stores artifacts as objects in a bucket. Object writes are atomic on
// the server side, so no partial-file protocol is needed.
type S3 struct {
	client        *minio.Client
	bucket        string
	ttl           time.Duration
	sweepInterval time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

var _ repositories.ArtifactStore = (*S3)(nil)

// NewS3 connects to the endpoint and verifies the bucket exists.
func NewS3(cfg S3Config, m *metrics.Metrics, logger *zap.Logger) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return &S3{
		client:        client,
		bucket:        cfg.Bucket,
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		metrics:       m,
		logger:        logger,
	}, nil
}

// Store uploads the audio under a fresh reference.
func (s *S3) Store(ctx context.Context, audio *domain.SynthesizedAudio) (string, error) {
	if audio == nil || len(audio.Bytes) == 0 {
		return "", domain.Ef(domain.KindInternal, "refusing to store empty artifact")
	}
	ext, ok := extByMIME[audio.MIMEType]
	if !ok {
		return "", domain.Ef(domain.KindInternal, "unsupported artifact MIME type %q", audio.MIMEType)
	}

	ref := strings.ReplaceAll(uuid.New().String(), "-", "") + "." + ext
	_, err := s.client.PutObject(ctx, s.bucket, ref,
		bytes.NewReader(audio.Bytes), int64(len(audio.Bytes)),
		minio.PutObjectOptions{ContentType: audio.MIMEType})
	if err != nil {
		return "", fmt.Errorf("upload artifact: %w", err)
	}

	s.logger.Debug("artifact stored",
		zap.String("ref", ref),
		zap.Int("bytes", len(audio.Bytes)))
	return ref, nil
}

// Retrieve downloads the artifact's bytes.
func (s *S3) Retrieve(ctx context.Context, ref string) (*domain.Artifact, error) {
	if !refPattern.MatchString(ref) {
		return nil, domain.Ef(domain.KindArtifactNotFound, "no artifact %q", ref)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, domain.E(domain.KindArtifactNotFound, fmt.Sprintf("no artifact %q", ref), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, domain.E(domain.KindArtifactNotFound, fmt.Sprintf("no artifact %q", ref), err)
	}
	return &domain.Artifact{
		ID:       ref,
		Bytes:    data,
		MIMEType: mimeByExt[strings.TrimPrefix(filepath.Ext(ref), ".")],
	}, nil
}

// Evict removes the object. Absent objects are ignored.
func (s *S3) Evict(ctx context.Context, ref string) error {
	if !refPattern.MatchString(ref) {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove artifact %q: %w", ref, err)
	}
	s.metrics.ArtifactsEvicted.Inc()
	return nil
}

// Run sweeps expired objects until the context is cancelled.
func (s *S3) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *S3) sweep(ctx context.Context) {
	var count int
	var total int64
	now := time.Now()

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			s.logger.Warn("artifact sweep failed", zap.Error(obj.Err))
			return
		}
		if !refPattern.MatchString(obj.Key) {
			continue
		}
		if now.Sub(obj.LastModified) > s.ttl {
			if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err == nil {
				s.metrics.ArtifactsEvicted.Inc()
			}
			continue
		}
		count++
		total += obj.Size
	}

	s.metrics.ArtifactsStored.Set(float64(count))
	s.metrics.ArtifactBytes.Set(float64(total))
}
