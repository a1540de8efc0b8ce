package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fluentlabs/lernplan/internal/cache"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/progress"
	"github.com/fluentlabs/lernplan/internal/queue"
	"github.com/fluentlabs/lernplan/internal/services/agent"
)

// warmupTopicCount is how many topics a warmup event pre-generates
const warmupTopicCount = 5

// Generator resolves a generation request into a content block
type Generator interface {
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.ContentBlock, error)
}

// ContentCache fronts generation with fingerprint lookup
type ContentCache interface {
	GetOrGenerate(ctx context.Context, req *models.GenerationRequest, generate cache.GenerateFunc) (*models.ContentBlock, bool, error)
}

// OutcomeRecorder processes queued outcome and warmup events
type OutcomeRecorder struct {
	tracker      *progress.Tracker
	contentCache ContentCache
	generator    Generator
	eventQueue   queue.EventQueue // for re-enqueueing events with delays
}

// NewOutcomeRecorder creates a new outcome recorder
func NewOutcomeRecorder(
	tracker *progress.Tracker,
	contentCache ContentCache,
	generator Generator,
	eventQueue queue.EventQueue,
) *OutcomeRecorder {
	return &OutcomeRecorder{
		tracker:      tracker,
		contentCache: contentCache,
		generator:    generator,
		eventQueue:   eventQueue,
	}
}

// ProcessOutcomeEvent folds a graded outcome into the learner's progress
func (r *OutcomeRecorder) ProcessOutcomeEvent(ctx context.Context, event *queue.Event) error {
	if event.Topic == nil || event.Outcome == nil {
		return fmt.Errorf("topic and outcome are required for outcome event")
	}

	record, err := r.tracker.RecordOutcome(ctx, event.UserID, *event.Topic, *event.Outcome)
	if err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			// Profile was deactivated after the event was queued; drop it
			log.Printf("Skipping outcome for unknown user %s", event.UserID)
			return nil
		}
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	log.Printf("Recorded outcome for user %s topic %s: mastery=%.2f streak=%d",
		event.UserID, event.Topic.Key(), record.Mastery, record.Streak)
	return nil
}

// ProcessWarmupEvent pre-generates a learner's next lesson content so the
// morning request is served from cache.
func (r *OutcomeRecorder) ProcessWarmupEvent(ctx context.Context, event *queue.Event) error {
	topics, err := r.tracker.SelectTopics(ctx, event.UserID, warmupTopicCount)
	if err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			log.Printf("Skipping warmup for unknown user %s", event.UserID)
			return nil
		}
		return fmt.Errorf("failed to select warmup topics: %w", err)
	}

	snap, err := r.tracker.Snapshot(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	learnerCtx, err := r.tracker.Context(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("failed to build learner context: %w", err)
	}

	warmed := 0
	for _, topic := range topics {
		req := &models.GenerationRequest{
			Topic:   topic,
			Level:   snap.Level,
			Context: learnerCtx,
		}
		_, cached, err := r.contentCache.GetOrGenerate(ctx, req, func(genCtx context.Context) (*models.ContentBlock, error) {
			return r.generator.Generate(genCtx, req)
		})
		if err != nil {
			// Warmup is best-effort per topic; the lesson path will retry
			log.Printf("Failed to warm topic %s for user %s: %v", topic.Key(), event.UserID, err)
			continue
		}
		if !cached {
			warmed++
		}
	}

	log.Printf("Warmed %d/%d topics for user %s", warmed, len(topics), event.UserID)
	return nil
}

// ProcessEvent processes an event based on its type
func (r *OutcomeRecorder) ProcessEvent(ctx context.Context, msg *queue.Message) error {
	event := msg.Event

	// Check if event should be processed now (respect NotBefore)
	if !event.ShouldProcess() {
		log.Printf("Event %s not ready yet (NotBefore: %v), skipping", event.ID, event.NotBefore)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack event for later processing: %v", ackErr)
		}
		return nil
	}

	switch event.Type {
	case queue.EventTypeOutcome:
		if err := r.ProcessOutcomeEvent(ctx, event); err != nil {
			return r.handleEventError(ctx, msg, event, err, "outcome")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack event: %w", ackErr)
		}
		return nil

	case queue.EventTypeWarmup:
		if err := r.ProcessWarmupEvent(ctx, event); err != nil {
			// Warmup failures are not worth a retry cycle, just log
			if nackErr := msg.Nack(false); nackErr != nil { // Don't requeue warmup events
				log.Printf("Failed to nack warmup event: %v", nackErr)
			}
			return fmt.Errorf("warmup failed: %w", err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack warmup event: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown event type, send to DLQ
			log.Printf("Failed to nack unknown event type: %v", nackErr)
		}
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// handleEventError handles errors from event processing with retry logic
func (r *OutcomeRecorder) handleEventError(ctx context.Context, msg *queue.Message, event *queue.Event, err error, eventType string) error {
	// Rate limit errors get a delayed re-enqueue instead of hot retries
	if agent.IsRateLimitError(err) {
		log.Printf("Rate limited for %s event %s: %v", eventType, event.ID, err)

		if event.CanRetry() && r.eventQueue != nil {
			notBefore := time.Now().Add(retryDelay(err, event.RetryCount))
			delayed := &queue.Event{
				ID:         event.ID,
				Type:       event.Type,
				UserID:     event.UserID,
				Topic:      event.Topic,
				Outcome:    event.Outcome,
				NotBefore:  &notBefore,
				NotAfter:   event.NotAfter,
				CreatedAt:  event.CreatedAt,
				RetryCount: event.RetryCount + 1,
				MaxRetries: event.MaxRetries,
			}

			if ackErr := msg.Ack(); ackErr != nil {
				log.Printf("Failed to ack rate limited event: %v", ackErr)
			}

			if enqueueErr := r.eventQueue.Enqueue(ctx, delayed); enqueueErr != nil {
				log.Printf("Failed to re-enqueue rate limited event %s: %v", event.ID, enqueueErr)
				return fmt.Errorf("rate limited, failed to re-enqueue: %w", enqueueErr)
			}

			log.Printf("Rate limited: re-enqueued %s event %s for retry at %v", eventType, event.ID, notBefore)
			return nil
		}
	}

	// Standard retry logic
	if event.CanRetry() {
		event.IncrementRetry()
		log.Printf("%s event %s failed (attempt %d/%d): %v, will retry", eventType, event.ID, event.RetryCount, event.MaxRetries, err)
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack event: %v", nackErr)
		}
		return fmt.Errorf("event failed (will retry): %w", err)
	}

	// Max retries exceeded, send to DLQ
	log.Printf("%s event %s failed after %d retries: %v, sending to DLQ", eventType, event.ID, event.MaxRetries, err)
	if nackErr := msg.Nack(false); nackErr != nil {
		log.Printf("Failed to nack event to DLQ: %v", nackErr)
	}
	return fmt.Errorf("event failed (max retries): %w", err)
}

// retryDelay returns the wait before retrying a rate-limited event
func retryDelay(err error, retryCount int) time.Duration {
	if apiErr := agent.ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil {
		return *apiErr.RetryAfter
	}
	// Exponential backoff: 1m, 2m, 4m...
	delay := time.Minute << uint(retryCount)
	if delay > 15*time.Minute {
		delay = 15 * time.Minute
	}
	return delay
}
