package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/request"
)

func TestUserFromContext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(*http.Request) *http.Request
		validate func(*testing.T, *models.UserProfile)
	}{
		{
			name: "user in context",
			setup: func(r *http.Request) *http.Request {
				user := &models.UserProfile{
					ID:    uuid.New(),
					Level: models.LevelB2,
				}
				ctx := SetUserInContext(r.Context(), user)
				return r.WithContext(ctx)
			},
			validate: func(t *testing.T, user *models.UserProfile) {
				if user == nil {
					t.Fatal("Expected user to be present")
				}
				if user.Level != models.LevelB2 {
					t.Errorf("Expected level B2, got '%s'", user.Level)
				}
			},
		},
		{
			name: "no user in context",
			setup: func(r *http.Request) *http.Request {
				return r
			},
			validate: func(t *testing.T, user *models.UserProfile) {
				if user != nil {
					t.Errorf("Expected user to be nil, got %+v", user)
				}
			},
		},
		{
			name: "wrong type in context",
			setup: func(r *http.Request) *http.Request {
				ctx := context.WithValue(r.Context(), request.UserContextKey(), "not a user")
				return r.WithContext(ctx)
			},
			validate: func(t *testing.T, user *models.UserProfile) {
				if user != nil {
					t.Errorf("Expected user to be nil when wrong type in context, got %+v", user)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/test", nil)
			req = tt.setup(req)

			user := UserFromContext(req)

			if tt.validate != nil {
				tt.validate(t, user)
			}
		})
	}
}
