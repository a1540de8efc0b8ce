package cache

import (
	"context"
	"math"
	"sync"

	"github.com/fluentlabs/lernplan/internal/models"
)

// SimilarityIndex finds cached artifacts whose request embedding is close
// to a query embedding. Only context-free artifacts are indexed; a
// near-match lesson is reusable across learners, a personalized one is not.
type SimilarityIndex interface {
	Add(ctx context.Context, fp models.Fingerprint, embedding []float32) error
	Remove(ctx context.Context, fp models.Fingerprint) error

	// Nearest returns the fingerprint with the highest cosine similarity to
	// the query, provided it meets the threshold. ok is false when the index
	// is empty or nothing clears the threshold.
	Nearest(ctx context.Context, embedding []float32, threshold float64) (fp models.Fingerprint, score float64, ok bool)
}

// memoryIndex is a brute-force in-process similarity index. Linear scan is
// fine at the cache's entry cap; precomputed norms keep each comparison to
// one dot product.
type memoryIndex struct {
	mu      sync.RWMutex
	vectors map[models.Fingerprint][]float32
	norms   map[models.Fingerprint]float64
}

// NewMemoryIndex creates an empty in-memory similarity index
func NewMemoryIndex() SimilarityIndex {
	return &memoryIndex{
		vectors: make(map[models.Fingerprint][]float32),
		norms:   make(map[models.Fingerprint]float64),
	}
}

func (idx *memoryIndex) Add(ctx context.Context, fp models.Fingerprint, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}
	norm := vectorNorm(embedding)
	if norm == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[fp] = embedding
	idx.norms[fp] = norm
	return nil
}

func (idx *memoryIndex) Remove(ctx context.Context, fp models.Fingerprint) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, fp)
	delete(idx.norms, fp)
	return nil
}

func (idx *memoryIndex) Nearest(ctx context.Context, embedding []float32, threshold float64) (models.Fingerprint, float64, bool) {
	queryNorm := vectorNorm(embedding)
	if queryNorm == 0 {
		return "", 0, false
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var (
		bestFP    models.Fingerprint
		bestScore float64
		found     bool
	)
	for fp, vec := range idx.vectors {
		if len(vec) != len(embedding) {
			continue
		}
		score := dotProduct(vec, embedding) / (idx.norms[fp] * queryNorm)
		if score >= threshold && (!found || score > bestScore) {
			bestFP = fp
			bestScore = score
			found = true
		}
	}
	return bestFP, bestScore, found
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
