package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "provider unavailable",
			err:  ErrProviderUnavailable,
			want: true,
		},
		{
			name: "wrapped provider unavailable",
			err:  fmt.Errorf("%w: connection refused", ErrProviderUnavailable),
			want: true,
		},
		{
			name: "rate limited sentinel",
			err:  ErrRateLimited,
			want: true,
		},
		{
			name: "schema error",
			err:  &SchemaError{Provider: "openai", Reason: "missing explanation"},
			want: true,
		},
		{
			name: "api error 429",
			err:  &APIError{StatusCode: 429, Message: "too many requests"},
			want: true,
		},
		{
			name: "api error 503",
			err:  &APIError{StatusCode: 503, Message: "service unavailable"},
			want: true,
		},
		{
			name: "api error 400",
			err:  &APIError{StatusCode: 400, Message: "bad request"},
			want: false,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: false,
		},
		{
			name: "generic error",
			err:  errors.New("something else"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsRateLimitError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil",
			err:  nil,
			want: false,
		},
		{
			name: "sentinel",
			err:  ErrRateLimited,
			want: true,
		},
		{
			name: "api error 429",
			err:  &APIError{StatusCode: 429},
			want: true,
		},
		{
			name: "api error 500",
			err:  &APIError{StatusCode: 500},
			want: false,
		},
		{
			name: "message mentions rate limit",
			err:  errors.New("upstream rate limit exceeded"),
			want: true,
		},
		{
			name: "message mentions 429",
			err:  errors.New("unexpected status 429"),
			want: true,
		},
		{
			name: "unrelated",
			err:  errors.New("connection reset"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRateLimitError(tt.err); got != tt.want {
				t.Errorf("IsRateLimitError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsSchemaError(t *testing.T) {
	t.Parallel()

	se := &SchemaError{Provider: "openai", Reason: "no exercises"}
	if !IsSchemaError(se) {
		t.Error("expected schema error to be detected")
	}
	if !IsSchemaError(fmt.Errorf("generate: %w", se)) {
		t.Error("expected wrapped schema error to be detected")
	}
	if IsSchemaError(errors.New("other")) {
		t.Error("did not expect generic error to be a schema error")
	}
}

func TestExtractAPIError(t *testing.T) {
	t.Parallel()

	t.Run("direct api error", func(t *testing.T) {
		t.Parallel()
		orig := &APIError{StatusCode: 503, Message: "down"}
		got := ExtractAPIError(fmt.Errorf("call failed: %w", orig))
		if got == nil || got.StatusCode != 503 {
			t.Errorf("expected status 503, got %+v", got)
		}
	})

	t.Run("429 from message", func(t *testing.T) {
		t.Parallel()
		got := ExtractAPIError(errors.New("received 429 from upstream"))
		if got == nil {
			t.Fatal("expected an API error")
		}
		if got.StatusCode != 429 {
			t.Errorf("expected status 429, got %d", got.StatusCode)
		}
		if got.RetryAfter == nil || *got.RetryAfter != 60*time.Second {
			t.Errorf("expected default retry-after of 60s, got %v", got.RetryAfter)
		}
	})

	t.Run("nil for unknown errors", func(t *testing.T) {
		t.Parallel()
		if got := ExtractAPIError(errors.New("timeout")); got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})
}

func TestSanitizeAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		apiKey string
		want   string
	}{
		{
			name:   "empty",
			apiKey: "",
			want:   "",
		},
		{
			name:   "short key fully redacted",
			apiKey: "abc123",
			want:   RedactedValue,
		},
		{
			name:   "long key keeps edges",
			apiKey: "sk-1234567890abcdef",
			want:   "sk-1" + RedactedValue + "cdef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeAPIKey(tt.apiKey); got != tt.want {
				t.Errorf("SanitizeAPIKey(%q) = %q, want %q", tt.apiKey, got, tt.want)
			}
		})
	}
}

func TestSanitizePromptStripsControlChars(t *testing.T) {
	t.Parallel()

	got := SanitizePrompt("line1\nline2\x00evil", false)
	for _, r := range got {
		if r == '\n' || r == '\x00' {
			t.Errorf("control character survived sanitization: %q", got)
		}
	}
}
