package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fluentlabs/lernplan/internal/models"
)

// Catalog is the topic universe per CEFR level. Topic selection draws the
// unseen pool from it; topics keep catalog order so curriculum authors
// control introduction order.
type Catalog struct {
	levels map[models.Level][]models.Topic
}

type catalogFile struct {
	Levels map[string][]catalogTopic `yaml:"levels"`
}

type catalogTopic struct {
	Name       string `yaml:"name"`
	Capability string `yaml:"capability"`
}

// Load reads a topic catalog from a YAML file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topic catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse topic catalog: %w", err)
	}

	levels := make(map[models.Level][]models.Topic, len(file.Levels))
	for levelName, topics := range file.Levels {
		level, err := models.ParseLevel(levelName)
		if err != nil {
			return nil, fmt.Errorf("topic catalog: %w", err)
		}
		for _, t := range topics {
			capability := models.Capability(t.Capability)
			if !capability.Valid() {
				return nil, fmt.Errorf("topic catalog: invalid capability %q for topic %q", t.Capability, t.Name)
			}
			if t.Name == "" {
				return nil, fmt.Errorf("topic catalog: topic with empty name at level %s", level)
			}
			levels[level] = append(levels[level], models.Topic{
				Name:       t.Name,
				Capability: capability,
			})
		}
	}

	return &Catalog{levels: levels}, nil
}

// TopicsForLevel returns the catalog topics for one level, in catalog order
func (c *Catalog) TopicsForLevel(level models.Level) []models.Topic {
	topics := c.levels[level]
	out := make([]models.Topic, len(topics))
	copy(out, topics)
	return out
}

// Contains reports whether a topic exists at the given level
func (c *Catalog) Contains(level models.Level, topic models.Topic) bool {
	for _, t := range c.levels[level] {
		if t.Key() == topic.Key() {
			return true
		}
	}
	return false
}

// Levels returns the levels the catalog defines topics for
func (c *Catalog) Levels() []models.Level {
	out := make([]models.Level, 0, len(c.levels))
	for _, level := range models.Levels {
		if len(c.levels[level]) > 0 {
			out = append(out, level)
		}
	}
	return out
}
