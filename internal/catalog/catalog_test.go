package catalog

import (
	"testing"

	"github.com/fluentlabs/lernplan/internal/models"
)

const sampleCatalog = `
levels:
  A1:
    - name: present_tense
      capability: grammar
    - name: greetings
      capability: conversation
    - name: articles
      capability: grammar
  A2:
    - name: perfect_tense
      capability: grammar
    - name: compound_nouns
      capability: vocabulary
`

func TestParseCatalog(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a1 := c.TopicsForLevel(models.LevelA1)
	if len(a1) != 3 {
		t.Fatalf("expected 3 A1 topics, got %d", len(a1))
	}
	// Catalog order is introduction order
	if a1[0].Name != "present_tense" || a1[0].Capability != models.CapabilityGrammar {
		t.Errorf("unexpected first A1 topic: %+v", a1[0])
	}
	if a1[1].Name != "greetings" || a1[1].Capability != models.CapabilityConversation {
		t.Errorf("unexpected second A1 topic: %+v", a1[1])
	}

	if got := c.TopicsForLevel(models.LevelC2); len(got) != 0 {
		t.Errorf("expected no C2 topics, got %d", len(got))
	}

	levels := c.Levels()
	if len(levels) != 2 || levels[0] != models.LevelA1 || levels[1] != models.LevelA2 {
		t.Errorf("unexpected levels: %v", levels)
	}
}

func TestParseCatalogErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "invalid level",
			yaml: "levels:\n  Z9:\n    - name: x\n      capability: grammar\n",
		},
		{
			name: "invalid capability",
			yaml: "levels:\n  A1:\n    - name: x\n      capability: pronunciation\n",
		},
		{
			name: "empty topic name",
			yaml: "levels:\n  A1:\n    - name: \"\"\n      capability: grammar\n",
		},
		{
			name: "malformed yaml",
			yaml: "levels: [broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestCatalogContains(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !c.Contains(models.LevelA1, models.Topic{Name: "articles", Capability: models.CapabilityGrammar}) {
		t.Error("expected catalog to contain A1 articles")
	}
	if c.Contains(models.LevelA2, models.Topic{Name: "articles", Capability: models.CapabilityGrammar}) {
		t.Error("articles is not an A2 topic")
	}
	// Same name under another capability is a different topic
	if c.Contains(models.LevelA1, models.Topic{Name: "articles", Capability: models.CapabilityVocabulary}) {
		t.Error("capability is part of topic identity")
	}
}

func TestTopicsForLevelReturnsCopy(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	topics := c.TopicsForLevel(models.LevelA1)
	topics[0].Name = "mutated"

	fresh := c.TopicsForLevel(models.LevelA1)
	if fresh[0].Name == "mutated" {
		t.Error("mutation of returned slice leaked into catalog")
	}
}
