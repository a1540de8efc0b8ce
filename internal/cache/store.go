package cache

import (
	"context"
	"errors"

	"github.com/fluentlabs/lernplan/internal/models"
)

// ErrCacheMiss is returned when no usable artifact exists for a fingerprint
var ErrCacheMiss = errors.New("cache miss")

// Store is the backing storage for cached artifacts. Implementations handle
// their own expiry where the backend supports it; callers still check
// Expired() because the in-memory store expires lazily.
type Store interface {
	// Get returns the artifact for a fingerprint, or ErrCacheMiss
	Get(ctx context.Context, fp models.Fingerprint) (*models.CachedArtifact, error)

	// Put stores an artifact under its fingerprint
	Put(ctx context.Context, artifact *models.CachedArtifact) error

	// Delete removes an artifact. Deleting a missing key is not an error.
	Delete(ctx context.Context, fp models.Fingerprint) error

	// Len reports the number of stored artifacts
	Len(ctx context.Context) (int, error)
}
