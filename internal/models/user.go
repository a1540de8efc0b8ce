package models

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile represents a learner. Profiles are created on first use and
// deactivated rather than deleted.
type UserProfile struct {
	ID            uuid.UUID  `json:"id"`
	Level         Level      `json:"level"`
	TargetLevel   Level      `json:"target_level"`
	Goals         []Topic    `json:"goals"`
	Active        bool       `json:"active"`
	Streak        int        `json:"streak"`
	TotalSessions int        `json:"total_sessions"`
	LastLessonAt  *time.Time `json:"last_lesson_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
