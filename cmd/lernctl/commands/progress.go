package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fluentlabs/lernplan/internal/catalog"
	"github.com/fluentlabs/lernplan/internal/config"
	"github.com/fluentlabs/lernplan/internal/database"
	"github.com/fluentlabs/lernplan/internal/progress"
)

// NewProgressCmd creates the progress command group
func NewProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect learner progress",
	}

	cmd.AddCommand(newProgressShowCmd())
	return cmd
}

func newProgressShowCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a learner's progress snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user must be a valid UUID: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.New(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			topicCatalog, err := catalog.Load(cfg.TopicCatalogPath)
			if err != nil {
				return fmt.Errorf("failed to load topic catalog: %w", err)
			}

			tracker := progress.NewTracker(
				database.NewUserRepository(db),
				database.NewProgressRepository(db),
				topicCatalog,
				progress.DefaultPolicy(),
				nil,
			)

			snap, err := tracker.Snapshot(context.Background(), id)
			if err != nil {
				return fmt.Errorf("failed to load snapshot: %w", err)
			}

			fmt.Printf("Learner:         %s\n", snap.UserID)
			fmt.Printf("Level:           %s (target %s)\n", snap.Level, snap.TargetLevel)
			fmt.Printf("Streak:          %d days, %d sessions total\n", snap.Streak, snap.TotalSessions)
			fmt.Printf("Average mastery: %.2f across %d topics\n", snap.AverageMastery, len(snap.Records))
			fmt.Printf("Due for review:  %d\n", snap.DueCount)
			fmt.Printf("Ready to advance: %v\n", snap.ReadyToAdvance)
			if len(snap.WeakTopics) > 0 {
				fmt.Println("Weak topics:")
				for _, topic := range snap.WeakTopics {
					fmt.Printf("  - %s\n", topic)
				}
			}
			for _, record := range snap.Records {
				fmt.Printf("  %-40s mastery=%.2f streak=%d next_due=%s\n",
					record.Topic.Key(), record.Mastery, record.Streak,
					record.NextDue.Format("2006-01-02 15:04"))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Learner ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
