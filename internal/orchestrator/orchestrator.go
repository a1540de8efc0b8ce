package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fluentlabs/lernplan/internal/cache"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/progress"
)

// ErrNoContent is returned when not a single topic could be resolved into
// a content block.
var ErrNoContent = errors.New("no lesson content could be generated")

// Generator resolves one generation request into a content block. The
// router satisfies this.
type Generator interface {
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.ContentBlock, error)
}

// ContentCache fronts generation with fingerprint and similarity lookup
type ContentCache interface {
	GetOrGenerate(ctx context.Context, req *models.GenerationRequest, generate cache.GenerateFunc) (*models.ContentBlock, bool, error)
}

// Options configures lesson assembly
type Options struct {
	// DailyTopicCount is the number of topics per lesson
	DailyTopicCount int
	// LessonTimeout bounds the whole assembly, shared by all blocks
	LessonTimeout time.Duration
}

// DefaultOptions returns the standard assembly parameters
func DefaultOptions() Options {
	return Options{
		DailyTopicCount: 5,
		LessonTimeout:   2 * time.Minute,
	}
}

// Orchestrator assembles daily lessons: it asks the tracker which topics
// to teach, fans out content generation concurrently through the cache,
// and returns whatever succeeded. One failed block degrades the lesson to
// partial instead of failing it.
type Orchestrator struct {
	tracker   *progress.Tracker
	cache     ContentCache
	generator Generator
	opts      Options
	logger    *zap.Logger

	now func() time.Time
}

// New creates an orchestrator
func New(tracker *progress.Tracker, contentCache ContentCache, generator Generator, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.DailyTopicCount <= 0 {
		opts.DailyTopicCount = DefaultOptions().DailyTopicCount
	}
	return &Orchestrator{
		tracker:   tracker,
		cache:     contentCache,
		generator: generator,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// GenerateDailyLesson builds today's lesson for a learner. Blocks keep the
// tracker's selection order regardless of which generation finished first.
func (o *Orchestrator) GenerateDailyLesson(ctx context.Context, userID uuid.UUID) (*models.LessonPlan, error) {
	if o.opts.LessonTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.LessonTimeout)
		defer cancel()
	}

	topics, err := o.tracker.SelectTopics(ctx, userID, o.opts.DailyTopicCount)
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: no topics available for user %s", ErrNoContent, userID)
	}

	learnerCtx, err := o.tracker.Context(ctx, userID)
	if err != nil {
		return nil, err
	}

	snap, err := o.tracker.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := o.now()
	blocks := make([]*models.ContentBlock, len(topics))
	blockErrs := make([]error, len(topics))

	// A plain group: a failed block must not cancel its siblings, only the
	// lesson deadline does that.
	var g errgroup.Group
	for i, topic := range topics {
		i, topic := i, topic
		g.Go(func() error {
			req := &models.GenerationRequest{
				Topic:   topic,
				Level:   snap.Level,
				Context: learnerCtx,
			}
			block, cached, err := o.cache.GetOrGenerate(ctx, req, func(genCtx context.Context) (*models.ContentBlock, error) {
				return o.generator.Generate(genCtx, req)
			})
			if err != nil {
				blockErrs[i] = err
				return nil
			}
			blocks[i] = block
			if o.logger != nil {
				o.logger.Debug("lesson_block_ready",
					zap.String("user_id", userID.String()),
					zap.String("topic", topic.Key()),
					zap.Bool("cache_hit", cached),
				)
			}
			return nil
		})
	}
	// Goroutines never return errors; failures land in blockErrs
	_ = g.Wait()

	plan := &models.LessonPlan{
		UserID:      userID,
		GeneratedAt: o.now(),
		Level:       snap.Level,
	}
	for i, block := range blocks {
		if block == nil {
			plan.Unresolved = append(plan.Unresolved, topics[i])
			if o.logger != nil {
				o.logger.Warn("lesson_block_failed",
					zap.String("user_id", userID.String()),
					zap.String("topic", topics[i].Key()),
					zap.Error(blockErrs[i]),
				)
			}
			continue
		}
		plan.Blocks = append(plan.Blocks, *block)
	}
	plan.Partial = len(plan.Unresolved) > 0

	if len(plan.Blocks) == 0 {
		return nil, fmt.Errorf("%w for user %s", ErrNoContent, userID)
	}

	streak, err := o.tracker.RecordSession(ctx, userID)
	if err != nil {
		// The lesson is already built; streak bookkeeping failing is not
		// worth losing it over
		if o.logger != nil {
			o.logger.Warn("session_record_failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
		}
		streak = snap.Streak
	}
	plan.Streak = streak
	plan.Motivation = motivationMessage(streak, snap.Level, plan.Partial)

	if o.logger != nil {
		o.logger.Info("lesson_generated",
			zap.String("user_id", userID.String()),
			zap.String("level", string(plan.Level)),
			zap.Int("blocks", len(plan.Blocks)),
			zap.Int("unresolved", len(plan.Unresolved)),
			zap.Bool("partial", plan.Partial),
			zap.Int("streak", streak),
			zap.Int64("duration_ms", o.now().Sub(start).Milliseconds()),
		)
	}
	return plan, nil
}

// RecordOutcome forwards a graded outcome to the tracker
func (o *Orchestrator) RecordOutcome(ctx context.Context, userID uuid.UUID, topic models.Topic, outcome models.Outcome) (*models.ProgressRecord, error) {
	return o.tracker.RecordOutcome(ctx, userID, topic, outcome)
}

// Progress returns the learner's progress snapshot
func (o *Orchestrator) Progress(ctx context.Context, userID uuid.UUID) (*progress.Snapshot, error) {
	return o.tracker.Snapshot(ctx, userID)
}

// AdvanceLevel promotes the learner to the next level when their
// snapshot clears the promotion bar, and is a no-op otherwise.
func (o *Orchestrator) AdvanceLevel(ctx context.Context, userID uuid.UUID) (models.Level, error) {
	return o.tracker.AdvanceLevel(ctx, userID)
}

// motivationMessage picks the encouragement line shown with the lesson
func motivationMessage(streak int, level models.Level, partial bool) string {
	switch {
	case partial:
		return "Some topics are taking a break today, but your progress isn't. Weiter so!"
	case streak >= 30:
		return fmt.Sprintf("%d days in a row. Your %s German is built on real dedication.", streak, level)
	case streak >= 7:
		return fmt.Sprintf("A full week and counting — %d days straight. Sehr gut!", streak)
	case streak > 1:
		return fmt.Sprintf("Day %d of your streak. Kleine Schritte, große Wirkung.", streak)
	default:
		return "Every expert was once a beginner. Los geht's!"
	}
}
