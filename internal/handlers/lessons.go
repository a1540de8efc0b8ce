package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/fluentlabs/lernplan/internal/middleware"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/orchestrator"
	"github.com/fluentlabs/lernplan/internal/progress"
	"github.com/fluentlabs/lernplan/internal/queue"
	"github.com/fluentlabs/lernplan/internal/validation"
)

const (
	// MaxTopicNameLength is the maximum length for a topic name in requests
	MaxTopicNameLength = 200
	// MaxOutcomeErrors is the maximum number of mistake strings per outcome
	MaxOutcomeErrors = 20
)

// LessonHandler handles lesson, outcome, and progress requests
type LessonHandler struct {
	orchestrator *orchestrator.Orchestrator
	eventQueue   queue.EventQueue
}

// NewLessonHandler creates a new lesson handler. The event queue is
// optional; without it outcomes are recorded synchronously.
func NewLessonHandler(orch *orchestrator.Orchestrator, eventQueue queue.EventQueue) *LessonHandler {
	return &LessonHandler{orchestrator: orch, eventQueue: eventQueue}
}

// RegisterRoutes registers lesson routes on the given router.
// The router should already have the /api prefix.
func (h *LessonHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/lessons/daily", h.GenerateDailyLesson).Methods("POST")
	r.HandleFunc("/outcomes", h.RecordOutcome).Methods("POST")
	r.HandleFunc("/progress", h.GetProgress).Methods("GET")
	r.HandleFunc("/progress/advance", h.AdvanceLevel).Methods("POST")
}

// GenerateDailyLesson assembles today's lesson for the authenticated learner
func (h *LessonHandler) GenerateDailyLesson(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	plan, err := h.orchestrator.GenerateDailyLesson(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoContent) {
			respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "No lesson content could be generated, try again later")
			return
		}
		if errors.Is(err, progress.ErrUserNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learner profile not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate lesson")
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// RecordOutcomeRequest represents a graded interaction with one topic
type RecordOutcomeRequest struct {
	Topic      string   `json:"topic" validate:"required,min=1,max=200"`
	Capability string   `json:"capability" validate:"required,capability"`
	Score      float64  `json:"score" validate:"min=0,max=1"`
	Errors     []string `json:"errors,omitempty" validate:"max=20,dive,max=500"`
}

// RecordOutcome accepts a graded outcome. With a queue attached the
// outcome is enqueued and 202 is returned; otherwise it is folded into
// progress synchronously.
func (h *LessonHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req RecordOutcomeRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		if maxBytesErr, ok := err.(*http.MaxBytesError); ok {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	// Validate request
	if err := validation.Validate.Struct(req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			for _, fieldError := range validationErrors {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", fieldError.Error()))
				return
			}
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return
	}

	// Sanitize text input
	req.Topic = validation.SanitizeText(req.Topic)
	if req.Topic == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Topic is required and cannot be empty after sanitization")
		return
	}
	mistakes := make([]string, 0, len(req.Errors))
	for _, e := range req.Errors {
		if s := validation.SanitizeText(e); s != "" {
			mistakes = append(mistakes, s)
		}
	}

	topic := models.Topic{
		Name:       req.Topic,
		Capability: models.Capability(req.Capability),
	}
	outcome := models.Outcome{
		Score:      models.ClampScore(req.Score),
		Errors:     mistakes,
		RecordedAt: time.Now().UTC(),
	}

	ctx := r.Context()

	if h.eventQueue != nil {
		event := queue.NewOutcomeEvent(user.ID, topic, outcome)
		if err := h.eventQueue.Enqueue(ctx, event); err != nil {
			// Queue down; fall back to recording inline
			log.Printf("Failed to enqueue outcome event, recording synchronously: %v", err)
		} else {
			respondJSON(w, http.StatusAccepted, map[string]any{
				"event_id": event.ID,
				"queued":   true,
			})
			return
		}
	}

	record, err := h.orchestrator.RecordOutcome(ctx, user.ID, topic, outcome)
	if err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learner profile not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to record outcome")
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// GetProgress returns the authenticated learner's progress snapshot
func (h *LessonHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	snap, err := h.orchestrator.Progress(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learner profile not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load progress")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// AdvanceLevel promotes the learner if their snapshot allows it and
// returns the (possibly unchanged) working level.
func (h *LessonHandler) AdvanceLevel(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	level, err := h.orchestrator.AdvanceLevel(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learner profile not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to advance level")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"level":    level,
		"advanced": level != user.Level,
	})
}
