package models

import (
	"time"

	"github.com/google/uuid"
)

// LessonPlan is one user's daily lesson: an ordered sequence of content
// blocks plus generation metadata. Plans are immutable once returned; a
// regenerated lesson is a new value.
type LessonPlan struct {
	UserID      uuid.UUID      `json:"user_id"`
	Blocks      []ContentBlock `json:"blocks"`
	Partial     bool           `json:"partial"`
	Unresolved  []Topic        `json:"unresolved_topics,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
	Level       Level          `json:"level"`
	Streak      int            `json:"streak"`
	Motivation  string         `json:"motivation,omitempty"`
}
