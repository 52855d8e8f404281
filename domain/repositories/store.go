package repositories

import (
	"context"

	"github.com/moneihq/monei-voice/domain"
)

// ArtifactStore persists synthesized audio and is its sole long-lived owner.
// Artifacts become retrievable only after the write completed atomically and
// stay retrievable until evicted by TTL, size pressure, or an explicit Evict.
type ArtifactStore interface {
	// Store persists the audio and returns its artifact reference.
	Store(ctx context.Context, audio *domain.SynthesizedAudio) (string, error)

	// Retrieve returns a complete copy of the artifact's bytes, or an error
	// carrying domain.KindArtifactNotFound.
	Retrieve(ctx context.Context, ref string) (*domain.Artifact, error)

	// Evict removes the artifact. Evicting an absent artifact is not an error.
	Evict(ctx context.Context, ref string) error
}
