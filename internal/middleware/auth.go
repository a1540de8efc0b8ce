package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/fluentlabs/lernplan/internal/database"
	"github.com/fluentlabs/lernplan/internal/models"
	"github.com/fluentlabs/lernplan/internal/progress"
	"github.com/fluentlabs/lernplan/internal/request"
)

// UserFromContext extracts the learner profile from the request context
func UserFromContext(r *http.Request) *models.UserProfile {
	return request.UserFromContext(r)
}

// TokenVerifier validates bearer tokens against a JWKS endpoint and
// returns the subject claim.
type TokenVerifier struct {
	cache   *jwk.Cache
	jwksURL string
	issuer  string
}

// NewTokenVerifier creates a verifier with a background-refreshing key
// cache. The initial fetch happens eagerly so a bad JWKS URL fails at
// startup, not on the first request.
func NewTokenVerifier(ctx context.Context, jwksURL, issuer string) (*TokenVerifier, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	return &TokenVerifier{cache: cache, jwksURL: jwksURL, issuer: issuer}, nil
}

// Subject verifies the token signature, issuer, and expiry, and returns
// the sub claim.
func (v *TokenVerifier) Subject(ctx context.Context, tokenString string) (string, error) {
	keySet, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return "", fmt.Errorf("failed to load JWKS: %w", err)
	}

	token, err := jwt.ParseString(tokenString,
		jwt.WithKeySet(keySet),
		jwt.WithIssuer(v.issuer),
		jwt.WithValidate(true),
	)
	if err != nil {
		return "", fmt.Errorf("token verification failed: %w", err)
	}

	sub := token.Subject()
	if sub == "" {
		return "", fmt.Errorf("token has no subject claim")
	}
	return sub, nil
}

// Auth creates authentication middleware that validates JWT tokens. The
// token subject is the learner ID; a profile is created on first use.
func Auth(db *database.DB, verifier *TokenVerifier) func(http.Handler) http.Handler {
	userRepo := database.NewUserRepository(db)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			ctx := r.Context()
			sub, err := verifier.Subject(ctx, parts[1])
			if err != nil {
				log.Printf("Token verification failed: %v", err)
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			userID, err := uuid.Parse(sub)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Token subject is not a valid learner ID")
				return
			}

			// Get or create the learner profile
			user, err := userRepo.GetByID(ctx, userID)
			if err != nil {
				if errors.Is(err, progress.ErrUserNotFound) {
					user = &models.UserProfile{
						ID:          userID,
						Level:       models.LevelA1,
						TargetLevel: models.LevelB1,
						Active:      true,
					}
					if err := userRepo.Create(ctx, user); err != nil {
						respondError(w, http.StatusInternalServerError, "Failed to create learner profile")
						return
					}
				} else {
					log.Printf("Database error while fetching user: %v", err)
					respondError(w, http.StatusInternalServerError, "Database error")
					return
				}
			}

			ctx = request.WithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
