package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/progress"
)

// ProgressRepository persists per-(user, topic) progress records
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get retrieves the record for one (user, topic) pair
func (r *ProgressRepository) Get(ctx context.Context, userID uuid.UUID, topic models.Topic) (*models.ProgressRecord, error) {
	record := &models.ProgressRecord{}
	query := `
		SELECT user_id, topic_name, capability, mastery, last_reviewed, next_due, streak, archived, created_at, updated_at
		FROM progress_records
		WHERE user_id = $1 AND topic_name = $2 AND capability = $3
	`

	err := r.db.QueryRowContext(ctx, query, userID, topic.Name, topic.Capability).Scan(
		&record.UserID,
		&record.Topic.Name,
		&record.Topic.Capability,
		&record.Mastery,
		&record.LastReviewed,
		&record.NextDue,
		&record.Streak,
		&record.Archived,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, progress.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress record: %w", err)
	}

	return record, nil
}

// List retrieves all non-archived records for a learner
func (r *ProgressRepository) List(ctx context.Context, userID uuid.UUID) ([]*models.ProgressRecord, error) {
	query := `
		SELECT user_id, topic_name, capability, mastery, last_reviewed, next_due, streak, archived, created_at, updated_at
		FROM progress_records
		WHERE user_id = $1 AND archived = false
		ORDER BY next_due ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}
	defer rows.Close()

	var records []*models.ProgressRecord
	for rows.Next() {
		record := &models.ProgressRecord{}
		err := rows.Scan(
			&record.UserID,
			&record.Topic.Name,
			&record.Topic.Capability,
			&record.Mastery,
			&record.LastReviewed,
			&record.NextDue,
			&record.Streak,
			&record.Archived,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress records: %w", err)
	}

	return records, nil
}

// Upsert inserts or updates a record keyed by (user, topic)
func (r *ProgressRepository) Upsert(ctx context.Context, record *models.ProgressRecord) error {
	query := `
		INSERT INTO progress_records (user_id, topic_name, capability, mastery, last_reviewed, next_due, streak, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, topic_name, capability) DO UPDATE
		SET mastery = EXCLUDED.mastery,
		    last_reviewed = EXCLUDED.last_reviewed,
		    next_due = EXCLUDED.next_due,
		    streak = EXCLUDED.streak,
		    archived = EXCLUDED.archived,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`

	now := time.Now()
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	err := r.db.QueryRowContext(ctx, query,
		record.UserID,
		record.Topic.Name,
		record.Topic.Capability,
		record.Mastery,
		record.LastReviewed,
		record.NextDue,
		record.Streak,
		record.Archived,
		createdAt,
		now,
	).Scan(&record.CreatedAt, &record.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert progress record: %w", err)
	}

	return nil
}

// Archive marks a record inactive without deleting its history
func (r *ProgressRepository) Archive(ctx context.Context, userID uuid.UUID, topic models.Topic) error {
	query := `
		UPDATE progress_records
		SET archived = true, updated_at = $4
		WHERE user_id = $1 AND topic_name = $2 AND capability = $3
	`

	result, err := r.db.ExecContext(ctx, query, userID, topic.Name, topic.Capability, time.Now())
	if err != nil {
		return fmt.Errorf("failed to archive progress record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return progress.ErrRecordNotFound
	}

	return nil
}

// DueTopics returns the topics whose review is due for a set of users,
// used by the worker to warm content ahead of the daily lesson.
func (r *ProgressRepository) DueTopics(ctx context.Context, userIDs []uuid.UUID, before time.Time) (map[uuid.UUID][]models.Topic, error) {
	query := `
		SELECT user_id, topic_name, capability
		FROM progress_records
		WHERE user_id = ANY($1) AND archived = false AND next_due <= $2
		ORDER BY next_due ASC
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(userIDs), before)
	if err != nil {
		return nil, fmt.Errorf("failed to query due topics: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]models.Topic)
	for rows.Next() {
		var userID uuid.UUID
		var topic models.Topic
		if err := rows.Scan(&userID, &topic.Name, &topic.Capability); err != nil {
			return nil, fmt.Errorf("failed to scan due topic: %w", err)
		}
		out[userID] = append(out[userID], topic)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due topics: %w", err)
	}

	return out, nil
}
