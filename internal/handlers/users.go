package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/fluentlabs/lernplan/internal/database"
	"github.com/fluentlabs/lernplan/internal/middleware"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/progress"
	"github.com/fluentlabs/lernplan/internal/validation"
)

// MaxGoals is the maximum number of learning goals per profile
const MaxGoals = 10

// UserHandler handles learner profile requests
type UserHandler struct {
	userRepo *database.UserRepository
}

// NewUserHandler creates a new user handler
func NewUserHandler(userRepo *database.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

// RegisterRoutes registers profile routes on the given router.
// The router should already have the /users prefix.
func (h *UserHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetProfile).Methods("GET")
	r.HandleFunc("/me", h.Deactivate).Methods("DELETE")
	r.HandleFunc("/me/level", h.SetLevel).Methods("PATCH")
	r.HandleFunc("/me/goals", h.SetGoals).Methods("PUT")
}

// GetProfile returns the authenticated learner's profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// SetLevelRequest represents a working-level override
type SetLevelRequest struct {
	Level string `json:"level" validate:"required,cefr_level"`
}

// SetLevel overrides the learner's working level. Placement is the
// learner's call; mastery-based promotion still applies afterwards.
func (h *UserHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req SetLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

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

	ctx := r.Context()
	level := models.Level(req.Level)
	if err := h.userRepo.UpdateLevel(ctx, user.ID, level); err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learner profile not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update level")
		return
	}

	user.Level = level
	respondJSON(w, http.StatusOK, user)
}

// GoalRequest is one learning goal
type GoalRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=200"`
	Capability string `json:"capability" validate:"required,capability"`
}

// SetGoalsRequest replaces the learner's goals
type SetGoalsRequest struct {
	Goals []GoalRequest `json:"goals" validate:"max=10,dive"`
}

// SetGoals replaces the learner's goal list
func (h *UserHandler) SetGoals(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req SetGoalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

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

	goals := make([]models.Topic, 0, len(req.Goals))
	for _, g := range req.Goals {
		name := validation.SanitizeText(g.Name)
		if name == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Goal name cannot be empty after sanitization")
			return
		}
		goals = append(goals, models.Topic{
			Name:       name,
			Capability: models.Capability(g.Capability),
		})
	}

	ctx := r.Context()
	if err := h.userRepo.SetGoals(ctx, user.ID, goals); err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learner profile not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update goals")
		return
	}

	user.Goals = goals
	respondJSON(w, http.StatusOK, user)
}

// Deactivate deactivates the learner's profile. Progress records are
// kept; the profile simply stops resolving.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	if err := h.userRepo.Deactivate(r.Context(), user.ID); err != nil {
		if errors.Is(err, progress.ErrUserNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Learner profile not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to deactivate profile")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deactivated": true})
}
