package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/services/agent"
	"github.com/fluentlabs/lernplan/internal/validation"
)

var (
	// ErrNoProvider is returned when no provider serves the capability
	ErrNoProvider = errors.New("no provider for capability")
	// ErrAllProvidersFailed is returned when the whole fallback chain failed
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// Options configures routing resilience
type Options struct {
	// RetryMaxAttempts is the number of attempts per provider before
	// falling through to the next one in the chain
	RetryMaxAttempts int
	// ProviderTimeout bounds each individual attempt
	ProviderTimeout time.Duration

	BreakerFailures int
	BreakerWindow   time.Duration
	BreakerCooldown time.Duration
}

// DefaultOptions returns the standard resilience parameters
func DefaultOptions() Options {
	return Options{
		RetryMaxAttempts: 3,
		ProviderTimeout:  30 * time.Second,
		BreakerFailures:  5,
		BreakerWindow:    30 * time.Second,
		BreakerCooldown:  60 * time.Second,
	}
}

// Router dispatches generation requests to provider fallback chains. Each
// provider gets bounded retries with exponential backoff; persistent
// failures trip a per-provider circuit breaker and the chain falls through
// to the next provider. A block is only accepted after schema validation.
type Router struct {
	mu       sync.RWMutex
	chains   map[models.Capability][]agent.Provider
	breakers map[string]*Breaker

	opts   Options
	logger *zap.Logger
}

// New creates an empty router
func New(logger *zap.Logger, opts Options) *Router {
	if opts.RetryMaxAttempts <= 0 {
		opts.RetryMaxAttempts = 1
	}
	return &Router{
		chains:   make(map[models.Capability][]agent.Provider),
		breakers: make(map[string]*Breaker),
		opts:     opts,
		logger:   logger,
	}
}

// AddProvider appends a provider to the fallback chain for its capability.
// Registration order is fallback order.
func (r *Router) AddProvider(p agent.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	capability := p.Capability()
	r.chains[capability] = append(r.chains[capability], p)
	r.breakers[breakerKey(capability, p.Name())] = NewBreaker(
		r.opts.BreakerFailures, r.opts.BreakerWindow, r.opts.BreakerCooldown)
}

func breakerKey(capability models.Capability, name string) string {
	return string(capability) + "/" + name
}

func (r *Router) chainFor(capability models.Capability) []agent.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chains[capability]
}

func (r *Router) breakerFor(capability models.Capability, name string) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[breakerKey(capability, name)]
}

// Generate runs the request down the capability's fallback chain and
// returns the first schema-valid block.
func (r *Router) Generate(ctx context.Context, req *models.GenerationRequest) (*models.ContentBlock, error) {
	capability := req.Topic.Capability
	chain := r.chainFor(capability)
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, capability)
	}

	var lastErr error
	for _, provider := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		breaker := r.breakerFor(capability, provider.Name())
		if breaker != nil && !breaker.Allow() {
			if r.logger != nil {
				r.logger.Debug("provider_circuit_open",
					zap.String("capability", string(capability)),
					zap.String("provider", provider.Name()),
				)
			}
			lastErr = fmt.Errorf("provider %s: circuit open", provider.Name())
			continue
		}

		block, err := r.generateWithRetry(ctx, provider, req)
		if err == nil {
			if breaker != nil {
				breaker.Success()
			}
			return block, nil
		}

		if breaker != nil {
			breaker.Failure()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if r.logger != nil {
			r.logger.Warn("provider_failed",
				zap.String("capability", string(capability)),
				zap.String("provider", provider.Name()),
				zap.String("topic", req.Topic.Name),
				zap.Error(err),
			)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w (%s/%s): %w", ErrAllProvidersFailed, capability, req.Topic.Name, lastErr)
}

// generateWithRetry calls one provider with bounded exponential backoff.
// Schema-invalid output counts as a retryable failure, exactly like
// unavailability; non-retryable errors abort immediately.
func (r *Router) generateWithRetry(ctx context.Context, provider agent.Provider, req *models.GenerationRequest) (*models.ContentBlock, error) {
	operation := func() (*models.ContentBlock, error) {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if r.opts.ProviderTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, r.opts.ProviderTimeout)
			defer cancel()
		}

		block, err := provider.Generate(attemptCtx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			if !agent.IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		if err := validation.ValidateContentBlock(block); err != nil {
			return nil, &agent.SchemaError{Provider: provider.Name(), Reason: err.Error()}
		}
		return block, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	return backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.opts.RetryMaxAttempts-1)), ctx))
}

// BreakerStates reports each provider circuit's state, for health checks
func (r *Router) BreakerStates() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.breakers))
	for key, b := range r.breakers {
		out[key] = b.State()
	}
	return out
}
