package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fluentlabs/lernplan/internal/models"
)

// Embedder produces the vector used for similarity lookup. Satisfied by
// the agent package's embedding client; nil disables similarity entirely.
type Embedder interface {
	Embed(ctx context.Context, req *models.GenerationRequest) ([]float32, error)
}

// GenerateFunc produces a fresh content block on a cache miss
type GenerateFunc func(ctx context.Context) (*models.ContentBlock, error)

// Cache fronts a Store with fingerprint lookup, similarity fallback and
// single-flight request collapsing. Concurrent misses on the same
// fingerprint run the generator once and share the result.
type Cache struct {
	store    Store
	index    SimilarityIndex
	embedder Embedder
	logger   *zap.Logger

	ttl       time.Duration
	threshold float64

	group singleflight.Group
	now   func() time.Time
}

// Options configures a Cache
type Options struct {
	TTL                 time.Duration
	SimilarityThreshold float64
}

// New creates a cache over the given store. index and embedder may be nil,
// which disables similarity lookup.
func New(store Store, index SimilarityIndex, embedder Embedder, logger *zap.Logger, opts Options) *Cache {
	return &Cache{
		store:     store,
		index:     index,
		embedder:  embedder,
		logger:    logger,
		ttl:       opts.TTL,
		threshold: opts.SimilarityThreshold,
		now:       time.Now,
	}
}

// Get returns the cached artifact for the request's fingerprint, or
// ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, req *models.GenerationRequest) (*models.CachedArtifact, error) {
	return c.getByFingerprint(ctx, req.Fingerprint())
}

func (c *Cache) getByFingerprint(ctx context.Context, fp models.Fingerprint) (*models.CachedArtifact, error) {
	artifact, err := c.store.Get(ctx, fp)
	if err != nil {
		return nil, err
	}
	if artifact.Expired(c.now()) {
		_ = c.store.Delete(ctx, fp)
		if c.index != nil {
			_ = c.index.Remove(ctx, fp)
		}
		return nil, ErrCacheMiss
	}
	return artifact, nil
}

// GetSimilar looks for a context-free artifact whose embedding clears the
// similarity threshold. Personalized requests never match by similarity.
func (c *Cache) GetSimilar(ctx context.Context, req *models.GenerationRequest) (*models.CachedArtifact, error) {
	if c.index == nil || c.embedder == nil || !req.ContextFree() {
		return nil, ErrCacheMiss
	}

	embedding, err := c.embedder.Embed(ctx, req)
	if err != nil {
		// Similarity is best-effort; an embedding failure is just a miss
		if c.logger != nil {
			c.logger.Debug("similarity_embed_failed", zap.Error(err))
		}
		return nil, ErrCacheMiss
	}

	fp, score, ok := c.index.Nearest(ctx, embedding, c.threshold)
	if !ok {
		return nil, ErrCacheMiss
	}

	artifact, err := c.getByFingerprint(ctx, fp)
	if err != nil {
		return nil, ErrCacheMiss
	}
	if c.logger != nil {
		c.logger.Debug("cache_similarity_hit",
			zap.String("fingerprint", string(fp)),
			zap.Float64("score", score),
		)
	}
	return artifact, nil
}

// Put stores a freshly generated block under the request's fingerprint.
// Context-free artifacts are also added to the similarity index.
func (c *Cache) Put(ctx context.Context, req *models.GenerationRequest, block *models.ContentBlock) (*models.CachedArtifact, error) {
	artifact := &models.CachedArtifact{
		Fingerprint: req.Fingerprint(),
		Block:       block,
		CreatedAt:   c.now(),
		TTL:         c.ttl,
		ContextFree: req.ContextFree(),
	}

	if artifact.ContextFree && c.index != nil && c.embedder != nil {
		if embedding, err := c.embedder.Embed(ctx, req); err == nil {
			artifact.Embedding = embedding
		} else if c.logger != nil {
			c.logger.Debug("artifact_embed_failed", zap.Error(err))
		}
	}

	if err := c.store.Put(ctx, artifact); err != nil {
		return nil, err
	}
	if len(artifact.Embedding) > 0 && c.index != nil {
		_ = c.index.Add(ctx, artifact.Fingerprint, artifact.Embedding)
	}
	return artifact, nil
}

// Invalidate removes the artifact for a fingerprint from the store and the
// similarity index.
func (c *Cache) Invalidate(ctx context.Context, fp models.Fingerprint) error {
	if c.index != nil {
		_ = c.index.Remove(ctx, fp)
	}
	return c.store.Delete(ctx, fp)
}

// GetOrGenerate returns a cached block for the request, trying exact then
// similarity lookup, and falls back to generating. Concurrent calls with
// the same fingerprint collapse into a single generation.
func (c *Cache) GetOrGenerate(ctx context.Context, req *models.GenerationRequest, generate GenerateFunc) (*models.ContentBlock, bool, error) {
	fp := req.Fingerprint()

	if artifact, err := c.getByFingerprint(ctx, fp); err == nil {
		return artifact.Block, true, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		if c.logger != nil {
			c.logger.Warn("cache_lookup_failed",
				zap.String("fingerprint", string(fp)),
				zap.Error(err),
			)
		}
	}

	if artifact, err := c.GetSimilar(ctx, req); err == nil {
		return artifact.Block, true, nil
	}

	result, err, _ := c.group.Do(string(fp), func() (interface{}, error) {
		// Another flight may have filled the cache while we waited
		if artifact, err := c.getByFingerprint(ctx, fp); err == nil {
			return artifact.Block, nil
		}

		block, err := generate(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := c.Put(ctx, req, block); err != nil && c.logger != nil {
			c.logger.Warn("cache_store_failed",
				zap.String("fingerprint", string(fp)),
				zap.Error(err),
			)
		}
		return block, nil
	})
	if err != nil {
		return nil, false, err
	}
	return result.(*models.ContentBlock), false, nil
}
