package models

import (
	"time"

	"github.com/google/uuid"
)

// ProgressRecord tracks one learner's mastery of one topic. Exactly one
// record exists per (user, topic); records are created lazily on first
// exposure and archived rather than deleted when a topic is retired.
type ProgressRecord struct {
	UserID       uuid.UUID `json:"user_id"`
	Topic        Topic     `json:"topic"`
	Mastery      float64   `json:"mastery"` // always within [0, 1]
	LastReviewed time.Time `json:"last_reviewed"`
	NextDue      time.Time `json:"next_due"`
	Streak       int       `json:"streak"` // consecutive successful outcomes
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Outcome is the graded result of a learner interaction with one topic.
// Score is in [0, 1]; binary pass/fail maps to 1 and 0.
type Outcome struct {
	Score      float64   `json:"score"`
	Errors     []string  `json:"errors,omitempty"` // short descriptions of mistakes made
	RecordedAt time.Time `json:"recorded_at"`
}

// Success reports whether the outcome counts as a successful recall for
// spaced-repetition scheduling.
func (o Outcome) Success() bool {
	return o.Score >= 0.5
}

// ClampScore bounds a raw score into [0, 1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
