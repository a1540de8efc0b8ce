package models

import "time"

// CachedArtifact is a generated content block held by the cache layer.
// Lifetime is bounded by TTL or eviction, whichever hits first.
type CachedArtifact struct {
	Fingerprint Fingerprint   `json:"fingerprint"`
	Block       *ContentBlock `json:"block"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
	Embedding   []float32     `json:"embedding,omitempty"`
	ContextFree bool          `json:"context_free"`
}

// Expired reports whether the artifact's TTL has elapsed at the given time.
func (a *CachedArtifact) Expired(now time.Time) bool {
	if a.TTL <= 0 {
		return false
	}
	return now.After(a.CreatedAt.Add(a.TTL))
}
