package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/progress"
)

// UserRepository handles learner profile database operations
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new learner profile
func (r *UserRepository) Create(ctx context.Context, user *models.UserProfile) error {
	goals, err := encodeGoals(user.Goals)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, level, target_level, goals, active, streak, total_sessions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	now := time.Now()
	err = r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Level,
		user.TargetLevel,
		goals,
		user.Active,
		user.Streak,
		user.TotalSessions,
		now,
		now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves an active learner profile by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	user := &models.UserProfile{}
	var goals []byte
	query := `
		SELECT id, level, target_level, goals, active, streak, total_sessions, last_lesson_at, created_at, updated_at
		FROM users
		WHERE id = $1 AND active = true
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Level,
		&user.TargetLevel,
		&goals,
		&user.Active,
		&user.Streak,
		&user.TotalSessions,
		&user.LastLessonAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, progress.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Goals, err = decodeGoals(goals); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateLevel moves a learner to a new working level
func (r *UserRepository) UpdateLevel(ctx context.Context, id uuid.UUID, level models.Level) error {
	query := `
		UPDATE users
		SET level = $2, updated_at = $3
		WHERE id = $1 AND active = true
		RETURNING updated_at
	`

	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, id, level, time.Now()).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update user level: %w", err)
	}

	return nil
}

// SetGoals replaces a learner's goal topics
func (r *UserRepository) SetGoals(ctx context.Context, id uuid.UUID, goals []models.Topic) error {
	encoded, err := encodeGoals(goals)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET goals = $2, updated_at = $3
		WHERE id = $1 AND active = true
		RETURNING updated_at
	`

	var updatedAt time.Time
	err = r.db.QueryRowContext(ctx, query, id, encoded, time.Now()).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to set user goals: %w", err)
	}

	return nil
}

// RecordSession updates streak bookkeeping after a lesson delivery
func (r *UserRepository) RecordSession(ctx context.Context, id uuid.UUID, streak int, lastLessonAt time.Time) error {
	query := `
		UPDATE users
		SET streak = $2, total_sessions = total_sessions + 1, last_lesson_at = $3, updated_at = $4
		WHERE id = $1 AND active = true
		RETURNING updated_at
	`

	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, id, streak, lastLessonAt, time.Now()).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}

	return nil
}

// Deactivate retires a learner profile without deleting its history
func (r *UserRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE users
		SET active = false, updated_at = $2
		WHERE id = $1 AND active = true
	`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return progress.ErrUserNotFound
	}

	return nil
}

// encodeGoals serializes goal topics for the JSONB column
func encodeGoals(goals []models.Topic) ([]byte, error) {
	if goals == nil {
		goals = []models.Topic{}
	}
	data, err := json.Marshal(goals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode goals: %w", err)
	}
	return data, nil
}

// decodeGoals deserializes the JSONB goals column
func decodeGoals(data []byte) ([]models.Topic, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var goals []models.Topic
	if err := json.Unmarshal(data, &goals); err != nil {
		return nil, fmt.Errorf("failed to decode goals: %w", err)
	}
	if len(goals) == 0 {
		return nil, nil
	}
	return goals, nil
}
