package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluentlabs/lernplan/internal/catalog"
	"github.com/fluentlabs/lernplan/internal/config"
	"github.com/fluentlabs/lernplan/internal/models"
)

// NewCatalogCmd creates the catalog command group
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the topic catalog",
	}

	cmd.AddCommand(newCatalogShowCmd())
	return cmd
}

func newCatalogShowCmd() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show catalog topics, optionally for one level",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			topicCatalog, err := catalog.Load(cfg.TopicCatalogPath)
			if err != nil {
				return fmt.Errorf("failed to load topic catalog: %w", err)
			}

			levels := topicCatalog.Levels()
			if level != "" {
				parsed := models.Level(level)
				if !parsed.Valid() {
					return fmt.Errorf("--level must be one of A1, A2, B1, B2, C1, C2")
				}
				levels = []models.Level{parsed}
			}

			for _, l := range levels {
				topics := topicCatalog.TopicsForLevel(l)
				fmt.Printf("%s (%d topics)\n", l, len(topics))
				for _, topic := range topics {
					fmt.Printf("  - %-30s %s\n", topic.Name, topic.Capability)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Limit output to one CEFR level")
	return cmd
}
