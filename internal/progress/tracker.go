package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fluentlabs/lernplan/internal/models"
)

// recentErrorLimit bounds the per-learner recent mistakes buffer that feeds
// content personalization.
const recentErrorLimit = 10

// levelUpMastery is the average mastery across a level's topics at which
// the learner is considered ready for the next CEFR level.
const levelUpMastery = 0.8

// TopicSource provides the topic universe per level; selection draws the
// unseen pool from it.
type TopicSource interface {
	TopicsForLevel(level models.Level) []models.Topic
}

// Policy holds the mastery and scheduling parameters
type Policy struct {
	Alpha          float64 // EWMA weight for the newest outcome
	WeakThreshold  float64 // mastery below this marks a topic weak
	IntervalBase   time.Duration
	IntervalFactor float64
	IntervalMax    time.Duration

	MixDuePct  int
	MixWeakPct int
	MixNewPct  int
}

// DefaultPolicy returns the standard scheduling parameters
func DefaultPolicy() Policy {
	return Policy{
		Alpha:          0.3,
		WeakThreshold:  0.6,
		IntervalBase:   24 * time.Hour,
		IntervalFactor: 2.0,
		IntervalMax:    60 * 24 * time.Hour,
		MixDuePct:      50,
		MixWeakPct:     30,
		MixNewPct:      20,
	}
}

// Tracker maintains per-learner mastery, schedules reviews and selects the
// topics for each lesson. Outcome updates for the same (user, topic) are
// serialized; different pairs proceed concurrently.
type Tracker struct {
	users   UserStore
	records RecordStore
	topics  TopicSource
	policy  Policy
	logger  *zap.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	errorsMu     sync.Mutex
	recentErrors map[uuid.UUID][]string

	now func() time.Time
}

// NewTracker creates a progress tracker
func NewTracker(users UserStore, records RecordStore, topics TopicSource, policy Policy, logger *zap.Logger) *Tracker {
	return &Tracker{
		users:        users,
		records:      records,
		topics:       topics,
		policy:       policy,
		logger:       logger,
		locks:        make(map[string]*sync.Mutex),
		recentErrors: make(map[uuid.UUID][]string),
		now:          time.Now,
	}
}

func (t *Tracker) lockFor(userID uuid.UUID, topic models.Topic) *sync.Mutex {
	key := userID.String() + "|" + topic.Key()
	t.locksMu.Lock()
	defer t.locksMu.Unlock()
	mu, ok := t.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		t.locks[key] = mu
	}
	return mu
}

// RecordOutcome folds a graded outcome into the learner's mastery of the
// topic and reschedules the next review. The record is created lazily on
// first exposure.
func (t *Tracker) RecordOutcome(ctx context.Context, userID uuid.UUID, topic models.Topic, outcome models.Outcome) (*models.ProgressRecord, error) {
	if _, err := t.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	mu := t.lockFor(userID, topic)
	mu.Lock()
	defer mu.Unlock()

	now := t.now()
	score := models.ClampScore(outcome.Score)

	record, err := t.records.Get(ctx, userID, topic)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		record = &models.ProgressRecord{
			UserID:    userID,
			Topic:     topic,
			Mastery:   score, // first outcome seeds mastery directly
			CreatedAt: now,
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load progress record: %w", err)
	default:
		record.Mastery = t.policy.Alpha*score + (1-t.policy.Alpha)*record.Mastery
	}

	if outcome.Success() {
		record.Streak++
	} else {
		record.Streak = 0
	}
	record.LastReviewed = now
	record.NextDue = now.Add(t.reviewInterval(record.Streak))
	record.UpdatedAt = now

	if err := t.records.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store progress record: %w", err)
	}

	t.rememberErrors(userID, outcome.Errors)

	if t.logger != nil {
		t.logger.Info("outcome_recorded",
			zap.String("user_id", userID.String()),
			zap.String("topic", topic.Key()),
			zap.Float64("score", score),
			zap.Float64("mastery", record.Mastery),
			zap.Int("streak", record.Streak),
			zap.Time("next_due", record.NextDue),
		)
	}
	return record, nil
}

// reviewInterval returns the spacing for a given success streak. Failure
// resets the streak, so streak 0 yields the base interval.
func (t *Tracker) reviewInterval(streak int) time.Duration {
	interval := time.Duration(float64(t.policy.IntervalBase) * math.Pow(t.policy.IntervalFactor, float64(streak)))
	if interval > t.policy.IntervalMax || interval <= 0 {
		return t.policy.IntervalMax
	}
	return interval
}

func (t *Tracker) rememberErrors(userID uuid.UUID, errs []string) {
	if len(errs) == 0 {
		return
	}
	t.errorsMu.Lock()
	defer t.errorsMu.Unlock()
	buf := append(t.recentErrors[userID], errs...)
	if len(buf) > recentErrorLimit {
		buf = buf[len(buf)-recentErrorLimit:]
	}
	t.recentErrors[userID] = buf
}

// Context builds the personalization signals for a learner: weak topics
// and recent mistakes.
func (t *Tracker) Context(ctx context.Context, userID uuid.UUID) (models.LearnerContext, error) {
	records, err := t.records.List(ctx, userID)
	if err != nil {
		return models.LearnerContext{}, fmt.Errorf("failed to list progress records: %w", err)
	}

	var weak []string
	for _, r := range records {
		if r.Archived {
			continue
		}
		if r.Mastery < t.policy.WeakThreshold {
			weak = append(weak, r.Topic.Name)
		}
	}
	sort.Strings(weak)

	t.errorsMu.Lock()
	recent := append([]string(nil), t.recentErrors[userID]...)
	t.errorsMu.Unlock()

	return models.LearnerContext{
		WeakPoints:   weak,
		RecentErrors: recent,
	}, nil
}

// SelectTopics picks the topics for a lesson: a configurable mix of due
// reviews, weak topics and unseen topics drawn from the learner's goals
// and the level catalog. Short pools backfill from the others, so a new
// learner still gets a full lesson.
func (t *Tracker) SelectTopics(ctx context.Context, userID uuid.UUID, count int) ([]models.Topic, error) {
	if count <= 0 {
		return nil, nil
	}

	user, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := t.records.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}

	now := t.now()
	seen := make(map[string]bool, len(records))
	var due, weak []*models.ProgressRecord
	for _, r := range records {
		seen[r.Topic.Key()] = true
		if r.Archived {
			continue
		}
		if !r.NextDue.After(now) {
			due = append(due, r)
		} else if r.Mastery < t.policy.WeakThreshold {
			weak = append(weak, r)
		}
	}

	// Most overdue first
	sort.Slice(due, func(i, j int) bool { return due[i].NextDue.Before(due[j].NextDue) })
	// Lowest mastery first
	sort.Slice(weak, func(i, j int) bool { return weak[i].Mastery < weak[j].Mastery })

	// Unseen pool: the learner's goals first, in stored order, then the
	// level catalog backfills.
	var unseen []models.Topic
	pooled := make(map[string]bool)
	for _, topic := range user.Goals {
		if !seen[topic.Key()] && !pooled[topic.Key()] {
			pooled[topic.Key()] = true
			unseen = append(unseen, topic)
		}
	}
	for _, topic := range t.topics.TopicsForLevel(user.Level) {
		if !seen[topic.Key()] && !pooled[topic.Key()] {
			pooled[topic.Key()] = true
			unseen = append(unseen, topic)
		}
	}

	duePool := recordTopics(due)
	weakPool := recordTopics(weak)

	dueWant, weakWant, newWant := t.mixCounts(count)
	selected := make([]models.Topic, 0, count)
	picked := make(map[string]bool, count)

	take := func(pool []models.Topic, want int) {
		for _, topic := range pool {
			if want <= 0 || len(selected) >= count {
				return
			}
			if picked[topic.Key()] {
				continue
			}
			picked[topic.Key()] = true
			selected = append(selected, topic)
			want--
		}
	}

	take(duePool, dueWant)
	take(weakPool, weakWant)
	take(unseen, newWant)

	// Backfill shortfalls in priority order
	if len(selected) < count {
		take(duePool, count-len(selected))
	}
	if len(selected) < count {
		take(weakPool, count-len(selected))
	}
	if len(selected) < count {
		take(unseen, count-len(selected))
	}

	if t.logger != nil {
		t.logger.Debug("topics_selected",
			zap.String("user_id", userID.String()),
			zap.String("level", string(user.Level)),
			zap.Int("due_pool", len(duePool)),
			zap.Int("weak_pool", len(weakPool)),
			zap.Int("unseen_pool", len(unseen)),
			zap.Int("selected", len(selected)),
		)
	}
	return selected, nil
}

// mixCounts splits count into due/weak/new targets per the configured
// percentages, giving remainder slots to due, then weak.
func (t *Tracker) mixCounts(count int) (due, weak, unseen int) {
	due = count * t.policy.MixDuePct / 100
	weak = count * t.policy.MixWeakPct / 100
	unseen = count * t.policy.MixNewPct / 100
	for due+weak+unseen < count {
		switch {
		case t.policy.MixDuePct > 0 && due <= weak+unseen:
			due++
		case t.policy.MixWeakPct > 0:
			weak++
		default:
			unseen++
		}
	}
	return due, weak, unseen
}

func recordTopics(records []*models.ProgressRecord) []models.Topic {
	out := make([]models.Topic, len(records))
	for i, r := range records {
		out[i] = r.Topic
	}
	return out
}

// Snapshot summarizes a learner's progress
type Snapshot struct {
	UserID         uuid.UUID                `json:"user_id"`
	Level          models.Level             `json:"level"`
	TargetLevel    models.Level             `json:"target_level"`
	Streak         int                      `json:"streak"`
	TotalSessions  int                      `json:"total_sessions"`
	Records        []*models.ProgressRecord `json:"records"`
	WeakTopics     []string                 `json:"weak_topics"`
	AverageMastery float64                  `json:"average_mastery"`
	DueCount       int                      `json:"due_count"`
	ReadyToAdvance bool                     `json:"ready_to_advance"`
}

// Snapshot returns the learner's current progress summary. ReadyToAdvance
// is set when every catalog topic at the working level has been seen and
// average mastery clears the promotion bar.
func (t *Tracker) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	user, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	records, err := t.records.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress records: %w", err)
	}

	now := t.now()
	snap := &Snapshot{
		UserID:        userID,
		Level:         user.Level,
		TargetLevel:   user.TargetLevel,
		Streak:        user.Streak,
		TotalSessions: user.TotalSessions,
		Records:       records,
	}

	seen := make(map[string]bool, len(records))
	var masterySum float64
	var active int
	for _, r := range records {
		if r.Archived {
			continue
		}
		seen[r.Topic.Key()] = true
		masterySum += r.Mastery
		active++
		if r.Mastery < t.policy.WeakThreshold {
			snap.WeakTopics = append(snap.WeakTopics, r.Topic.Name)
		}
		if !r.NextDue.After(now) {
			snap.DueCount++
		}
	}
	if active > 0 {
		snap.AverageMastery = masterySum / float64(active)
	}
	sort.Strings(snap.WeakTopics)

	levelTopics := t.topics.TopicsForLevel(user.Level)
	if len(levelTopics) > 0 && user.Level != models.LevelC2 {
		allSeen := true
		for _, topic := range levelTopics {
			if !seen[topic.Key()] {
				allSeen = false
				break
			}
		}
		snap.ReadyToAdvance = allSeen && snap.AverageMastery >= levelUpMastery
	}

	return snap, nil
}

// AdvanceLevel promotes the learner to the next CEFR level when the
// snapshot says they are ready. Returns the (possibly unchanged) level.
func (t *Tracker) AdvanceLevel(ctx context.Context, userID uuid.UUID) (models.Level, error) {
	snap, err := t.Snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	if !snap.ReadyToAdvance {
		return snap.Level, nil
	}

	next := snap.Level.Next()
	if next == snap.Level {
		return snap.Level, nil
	}
	if err := t.users.UpdateLevel(ctx, userID, next); err != nil {
		return "", fmt.Errorf("failed to update level: %w", err)
	}
	if t.logger != nil {
		t.logger.Info("level_advanced",
			zap.String("user_id", userID.String()),
			zap.String("from", string(snap.Level)),
			zap.String("to", string(next)),
		)
	}
	return next, nil
}

// RecordSession updates the learner's daily streak after a lesson is
// delivered. Consecutive days extend the streak, a gap resets it to 1.
func (t *Tracker) RecordSession(ctx context.Context, userID uuid.UUID) (int, error) {
	user, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	now := t.now()
	streak := 1
	if user.LastLessonAt != nil {
		switch daysBetween(*user.LastLessonAt, now) {
		case 0:
			streak = user.Streak // same day, no change
			if streak == 0 {
				streak = 1
			}
		case 1:
			streak = user.Streak + 1
		}
	}

	if err := t.users.RecordSession(ctx, userID, streak, now); err != nil {
		return 0, fmt.Errorf("failed to record session: %w", err)
	}
	return streak, nil
}

func daysBetween(earlier, later time.Time) int {
	e := earlier.UTC().Truncate(24 * time.Hour)
	l := later.UTC().Truncate(24 * time.Hour)
	return int(l.Sub(e) / (24 * time.Hour))
}
