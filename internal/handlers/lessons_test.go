package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fluentlabs/lernplan/internal/cache"
	"github.com/fluentlabs/lernplan/internal/middleware"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/orchestrator"
	"github.com/fluentlabs/lernplan/internal/progress"
	"github.com/fluentlabs/lernplan/internal/queue"
)

type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.UserProfile
}

func (s *memUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, progress.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memUserStore) RecordSession(ctx context.Context, id uuid.UUID, streak int, lastLessonAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Streak = streak
		u.LastLessonAt = &lastLessonAt
	}
	return nil
}

func (s *memUserStore) UpdateLevel(ctx context.Context, id uuid.UUID, level models.Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Level = level
	}
	return nil
}

type memRecordStore struct {
	mu      sync.Mutex
	records map[string]*models.ProgressRecord
}

func (s *memRecordStore) key(userID uuid.UUID, topic models.Topic) string {
	return userID.String() + "|" + topic.Key()
}

func (s *memRecordStore) Get(ctx context.Context, userID uuid.UUID, topic models.Topic) (*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[s.key(userID, topic)]
	if !ok {
		return nil, progress.ErrRecordNotFound
	}
	copied := *r
	return &copied, nil
}

func (s *memRecordStore) List(ctx context.Context, userID uuid.UUID) ([]*models.ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ProgressRecord
	for _, r := range s.records {
		if r.UserID == userID {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memRecordStore) Upsert(ctx context.Context, record *models.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[s.key(record.UserID, record.Topic)] = &copied
	return nil
}

func (s *memRecordStore) Archive(ctx context.Context, userID uuid.UUID, topic models.Topic) error {
	return nil
}

type memTopicSource struct {
	topics []models.Topic
}

func (s *memTopicSource) TopicsForLevel(level models.Level) []models.Topic {
	return s.topics
}

type staticGenerator struct{}

func (staticGenerator) Generate(ctx context.Context, req *models.GenerationRequest) (*models.ContentBlock, error) {
	return &models.ContentBlock{
		Capability:  req.Topic.Capability,
		Topic:       req.Topic.Name,
		Level:       req.Level,
		Explanation: "e",
		Examples:    []models.Example{{Text: "t"}},
		Exercises:   []models.Exercise{{Prompt: "p", Answer: "a"}},
	}, nil
}

type captureQueue struct {
	mu     sync.Mutex
	events []*queue.Event
	fail   bool
}

func (q *captureQueue) Enqueue(ctx context.Context, event *queue.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail {
		return context.DeadlineExceeded
	}
	q.events = append(q.events, event)
	return nil
}

func (q *captureQueue) Consume(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}

func (q *captureQueue) Close() error                          { return nil }
func (q *captureQueue) HealthCheck(ctx context.Context) error { return nil }

func newLessonEnv(t *testing.T, eventQueue queue.EventQueue) (*mux.Router, *models.UserProfile) {
	t.Helper()

	user := &models.UserProfile{ID: uuid.New(), Level: models.LevelA2, Active: true}
	users := &memUserStore{users: map[uuid.UUID]*models.UserProfile{user.ID: user}}
	records := &memRecordStore{records: make(map[string]*models.ProgressRecord)}
	topics := &memTopicSource{topics: []models.Topic{
		{Name: "articles", Capability: models.CapabilityGrammar},
		{Name: "food_vocab", Capability: models.CapabilityVocabulary},
	}}
	tracker := progress.NewTracker(users, records, topics, progress.DefaultPolicy(), nil)
	contentCache := cache.New(cache.NewMemoryStore(100), nil, nil, nil, cache.Options{TTL: time.Hour})
	orch := orchestrator.New(tracker, contentCache, staticGenerator{}, orchestrator.Options{DailyTopicCount: 2}, nil)

	handler := NewLessonHandler(orch, eventQueue)
	router := mux.NewRouter()
	handler.RegisterRoutes(router.PathPrefix("/api").Subrouter())
	return router, user
}

func authedRequest(method, target string, body []byte, user *models.UserProfile) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(middleware.SetUserInContext(req.Context(), user))
	}
	return req
}

func TestGenerateDailyLesson(t *testing.T) {
	t.Parallel()

	router, user := newLessonEnv(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("POST", "/api/lessons/daily", nil, user))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Success bool              `json:"success"`
		Data    models.LessonPlan `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !envelope.Success {
		t.Error("expected success envelope")
	}
	if len(envelope.Data.Blocks) != 2 {
		t.Errorf("expected 2 blocks, got %d", len(envelope.Data.Blocks))
	}
	if envelope.Data.Partial {
		t.Error("expected complete lesson")
	}
}

func TestGenerateDailyLessonUnauthorized(t *testing.T) {
	t.Parallel()

	router, _ := newLessonEnv(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("POST", "/api/lessons/daily", nil, nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestRecordOutcomeQueued(t *testing.T) {
	t.Parallel()

	q := &captureQueue{}
	router, user := newLessonEnv(t, q)

	body, _ := json.Marshal(map[string]any{
		"topic":      "articles",
		"capability": "grammar",
		"score":      0.8,
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("POST", "/api/outcomes", body, user))

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if len(q.events) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(q.events))
	}
	event := q.events[0]
	if event.Type != queue.EventTypeOutcome {
		t.Errorf("expected outcome event, got %s", event.Type)
	}
	if event.Outcome == nil || event.Outcome.Score != 0.8 {
		t.Errorf("unexpected outcome payload: %+v", event.Outcome)
	}
}

func TestRecordOutcomeQueueDownFallsBackToSync(t *testing.T) {
	t.Parallel()

	q := &captureQueue{fail: true}
	router, user := newLessonEnv(t, q)

	body, _ := json.Marshal(map[string]any{
		"topic":      "articles",
		"capability": "grammar",
		"score":      1.0,
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("POST", "/api/outcomes", body, user))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 fallback, got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data models.ProgressRecord `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Data.Mastery != 1.0 {
		t.Errorf("expected first outcome to seed mastery 1.0, got %f", envelope.Data.Mastery)
	}
}

func TestRecordOutcomeValidation(t *testing.T) {
	t.Parallel()

	router, user := newLessonEnv(t, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing topic", map[string]any{"capability": "grammar", "score": 0.5}},
		{"unknown capability", map[string]any{"topic": "articles", "capability": "dancing", "score": 0.5}},
		{"score above one", map[string]any{"topic": "articles", "capability": "grammar", "score": 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			body, _ := json.Marshal(tt.body)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, authedRequest("POST", "/api/outcomes", body, user))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestGetProgress(t *testing.T) {
	t.Parallel()

	router, user := newLessonEnv(t, nil)

	// Record one outcome so the snapshot has content
	body, _ := json.Marshal(map[string]any{
		"topic":      "articles",
		"capability": "grammar",
		"score":      0.9,
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("POST", "/api/outcomes", body, user))
	if w.Code != http.StatusOK {
		t.Fatalf("outcome setup failed: %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("GET", "/api/progress", nil, user))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data progress.Snapshot `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Data.Level != models.LevelA2 {
		t.Errorf("expected level A2, got %s", envelope.Data.Level)
	}
	if len(envelope.Data.Records) != 1 {
		t.Errorf("expected 1 record, got %d", len(envelope.Data.Records))
	}
}

func TestAdvanceLevelNotReady(t *testing.T) {
	t.Parallel()

	router, user := newLessonEnv(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authedRequest("POST", "/api/progress/advance", nil, user))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var envelope struct {
		Data struct {
			Level    models.Level `json:"level"`
			Advanced bool         `json:"advanced"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if envelope.Data.Advanced {
		t.Error("expected no advancement for fresh learner")
	}
	if envelope.Data.Level != models.LevelA2 {
		t.Errorf("expected level to stay A2, got %s", envelope.Data.Level)
	}
}
