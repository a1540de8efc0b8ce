package progress

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fluentlabs/lernplan/internal/models"
)

var (
	// ErrUserNotFound is returned when a learner profile does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrRecordNotFound is returned when no progress record exists for a
	// (user, topic) pair
	ErrRecordNotFound = errors.New("progress record not found")
)

// UserStore provides learner profiles
type UserStore interface {
	// GetByID returns an active learner profile, or ErrUserNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)

	// RecordSession updates streak bookkeeping after a lesson is delivered
	RecordSession(ctx context.Context, id uuid.UUID, streak int, lastLessonAt time.Time) error

	// UpdateLevel moves the learner to a new working level
	UpdateLevel(ctx context.Context, id uuid.UUID, level models.Level) error
}

// RecordStore persists per-(user, topic) progress records
type RecordStore interface {
	// Get returns the record for one (user, topic), or ErrRecordNotFound
	Get(ctx context.Context, userID uuid.UUID, topic models.Topic) (*models.ProgressRecord, error)

	// List returns all non-archived records for a learner
	List(ctx context.Context, userID uuid.UUID) ([]*models.ProgressRecord, error)

	// Upsert inserts or updates a record keyed by (user, topic)
	Upsert(ctx context.Context, record *models.ProgressRecord) error

	// Archive marks a record inactive without deleting its history
	Archive(ctx context.Context, userID uuid.UUID, topic models.Topic) error
}
