package database

import (
	"testing"

	"github.com/fluentlabs/lernplan/internal/models"
)

// Note: full integration testing of the repositories requires a database.
// These tests cover the serialization logic around the JSONB goals column.
func TestGoalsEncodeDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		goals []models.Topic
	}{
		{
			name:  "nil goals",
			goals: nil,
		},
		{
			name:  "empty goals",
			goals: []models.Topic{},
		},
		{
			name: "mixed capabilities",
			goals: []models.Topic{
				{Name: "perfect_tense", Capability: models.CapabilityGrammar},
				{Name: "travel_vocab", Capability: models.CapabilityVocabulary},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := encodeGoals(tt.goals)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			decoded, err := decodeGoals(encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(decoded) != len(tt.goals) {
				t.Fatalf("expected %d goals, got %d", len(tt.goals), len(decoded))
			}
			for i, goal := range tt.goals {
				if decoded[i] != goal {
					t.Errorf("goal %d: expected %+v, got %+v", i, goal, decoded[i])
				}
			}
		})
	}
}

func TestDecodeGoalsEmptyColumn(t *testing.T) {
	t.Parallel()

	goals, err := decodeGoals(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if goals != nil {
		t.Errorf("expected nil goals for empty column, got %v", goals)
	}
}

func TestDecodeGoalsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := decodeGoals([]byte("{broken")); err == nil {
		t.Error("expected error for malformed goals column")
	}
}
