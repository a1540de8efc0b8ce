package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/fluentlabs/lernplan/internal/models"
)

// EventType represents the type of queued event
type EventType string

const (
	// EventTypeOutcome is a graded lesson outcome awaiting progress update
	EventTypeOutcome EventType = "outcome_recorded"
	// EventTypeWarmup asks the worker to pre-generate a user's due content
	// ahead of the daily lesson
	EventTypeWarmup EventType = "lesson_warmup"
)

// Event represents an event in the queue
type Event struct {
	ID     uuid.UUID `json:"id"`
	Type   EventType `json:"type"`
	UserID uuid.UUID `json:"user_id"`

	// Topic and Outcome are set for outcome events
	Topic   *models.Topic   `json:"topic,omitempty"`
	Outcome *models.Outcome `json:"outcome,omitempty"`

	NotBefore  *time.Time `json:"not_before,omitempty"` // earliest time to process (nil = immediate)
	NotAfter   *time.Time `json:"not_after,omitempty"`  // latest time to process (nil = no expiration)
	CreatedAt  time.Time  `json:"created_at"`
	RetryCount int        `json:"retry_count"`
	MaxRetries int        `json:"max_retries"`
}

// NewOutcomeEvent creates an outcome event
func NewOutcomeEvent(userID uuid.UUID, topic models.Topic, outcome models.Outcome) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       EventTypeOutcome,
		UserID:     userID,
		Topic:      &topic,
		Outcome:    &outcome,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// NewWarmupEvent creates a warmup event, optionally deferred until notBefore
func NewWarmupEvent(userID uuid.UUID, notBefore *time.Time) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       EventTypeWarmup,
		UserID:     userID,
		NotBefore:  notBefore,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// ShouldProcess checks if the event should be processed now
func (e *Event) ShouldProcess() bool {
	now := time.Now()

	if e.NotBefore != nil && now.Before(*e.NotBefore) {
		return false
	}
	if e.NotAfter != nil && now.After(*e.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the event has expired
func (e *Event) IsExpired() bool {
	if e.NotAfter == nil {
		return false
	}
	return time.Now().After(*e.NotAfter)
}

// CanRetry checks if the event can be retried
func (e *Event) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// IncrementRetry increments the retry count
func (e *Event) IncrementRetry() {
	e.RetryCount++
}
