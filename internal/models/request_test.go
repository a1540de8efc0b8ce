package models

import "testing"

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	req := &GenerationRequest{
		Topic: Topic{Name: "dative_case", Capability: CapabilityGrammar},
		Level: LevelB1,
		Context: LearnerContext{
			WeakPoints:   []string{"prepositions", "articles"},
			RecentErrors: []string{"dem vs den"},
		},
	}

	fp1 := req.Fingerprint()
	fp2 := req.Fingerprint()
	if fp1 != fp2 {
		t.Errorf("Fingerprint not deterministic: %s != %s", fp1, fp2)
	}
	if len(fp1) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(fp1))
	}
}

func TestFingerprint_NormalizationInvariance(t *testing.T) {
	t.Parallel()

	base := &GenerationRequest{
		Topic:   Topic{Name: "dative_case", Capability: CapabilityGrammar},
		Level:   LevelB1,
		Context: LearnerContext{WeakPoints: []string{"articles", "prepositions"}},
	}

	tests := []struct {
		name string
		req  *GenerationRequest
	}{
		{
			name: "weak points reordered",
			req: &GenerationRequest{
				Topic:   base.Topic,
				Level:   base.Level,
				Context: LearnerContext{WeakPoints: []string{"prepositions", "articles"}},
			},
		},
		{
			name: "weak points with whitespace and case noise",
			req: &GenerationRequest{
				Topic:   base.Topic,
				Level:   base.Level,
				Context: LearnerContext{WeakPoints: []string{"  Articles ", "PREPOSITIONS"}},
			},
		},
		{
			name: "weak points duplicated",
			req: &GenerationRequest{
				Topic:   base.Topic,
				Level:   base.Level,
				Context: LearnerContext{WeakPoints: []string{"articles", "prepositions", "articles"}},
			},
		},
		{
			name: "topic name case noise",
			req: &GenerationRequest{
				Topic:   Topic{Name: "Dative_Case", Capability: CapabilityGrammar},
				Level:   base.Level,
				Context: LearnerContext{WeakPoints: []string{"articles", "prepositions"}},
			},
		},
	}

	want := base.Fingerprint()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.req.Fingerprint(); got != want {
				t.Errorf("Fingerprint changed under normalization-equivalent input: %s != %s", got, want)
			}
		})
	}
}

func TestFingerprint_Sensitivity(t *testing.T) {
	t.Parallel()

	base := &GenerationRequest{
		Topic: Topic{Name: "dative_case", Capability: CapabilityGrammar},
		Level: LevelB1,
	}

	tests := []struct {
		name string
		req  *GenerationRequest
	}{
		{
			name: "different level",
			req: &GenerationRequest{
				Topic: base.Topic,
				Level: LevelB2,
			},
		},
		{
			name: "different topic",
			req: &GenerationRequest{
				Topic: Topic{Name: "accusative_case", Capability: CapabilityGrammar},
				Level: base.Level,
			},
		},
		{
			name: "different capability",
			req: &GenerationRequest{
				Topic: Topic{Name: "dative_case", Capability: CapabilityVocabulary},
				Level: base.Level,
			},
		},
		{
			name: "context added",
			req: &GenerationRequest{
				Topic:   base.Topic,
				Level:   base.Level,
				Context: LearnerContext{RecentErrors: []string{"dem vs den"}},
			},
		},
	}

	want := base.Fingerprint()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.req.Fingerprint(); got == want {
				t.Errorf("Expected different fingerprint for %s", tt.name)
			}
		})
	}
}

func TestFingerprint_WeakVsErrorFieldsDistinct(t *testing.T) {
	t.Parallel()

	a := &GenerationRequest{
		Topic:   Topic{Name: "modal_verbs", Capability: CapabilityGrammar},
		Level:   LevelA2,
		Context: LearnerContext{WeakPoints: []string{"word order"}},
	}
	b := &GenerationRequest{
		Topic:   a.Topic,
		Level:   a.Level,
		Context: LearnerContext{RecentErrors: []string{"word order"}},
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("Weak-point and recent-error entries must not collide in the fingerprint")
	}
}

func TestContextFree(t *testing.T) {
	t.Parallel()

	withCtx := &GenerationRequest{
		Topic:   Topic{Name: "plural_formation", Capability: CapabilityVocabulary},
		Level:   LevelA1,
		Context: LearnerContext{WeakPoints: []string{"umlaut plurals"}},
	}
	if withCtx.ContextFree() {
		t.Error("Request with weak points should not be context-free")
	}

	without := &GenerationRequest{
		Topic: withCtx.Topic,
		Level: withCtx.Level,
	}
	if !without.ContextFree() {
		t.Error("Request with empty context should be context-free")
	}
}
