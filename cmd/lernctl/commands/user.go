package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fluentlabs/lernplan/internal/config"
	"github.com/fluentlabs/lernplan/internal/database"
	"github.com/fluentlabs/lernplan/internal/models"
)

// NewUserCmd creates the user command group
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage learner profiles",
	}

	cmd.AddCommand(newUserSetLevelCmd())
	cmd.AddCommand(newUserDeactivateCmd())
	return cmd
}

func newUserSetLevelCmd() *cobra.Command {
	var userID string
	var level string

	cmd := &cobra.Command{
		Use:   "set-level",
		Short: "Override a learner's working level",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user must be a valid UUID: %w", err)
			}
			parsedLevel := models.Level(level)
			if !parsedLevel.Valid() {
				return fmt.Errorf("--level must be one of A1, A2, B1, B2, C1, C2")
			}

			repo, closeDB, err := userRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repo.UpdateLevel(context.Background(), id, parsedLevel); err != nil {
				return fmt.Errorf("failed to update level: %w", err)
			}

			fmt.Printf("Learner %s moved to %s\n", id, parsedLevel)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Learner ID (required)")
	cmd.Flags().StringVar(&level, "level", "", "CEFR level (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func newUserDeactivateCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate a learner profile, keeping its history",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("--user must be a valid UUID: %w", err)
			}

			repo, closeDB, err := userRepo()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repo.Deactivate(context.Background(), id); err != nil {
				return fmt.Errorf("failed to deactivate learner: %w", err)
			}

			fmt.Printf("Learner %s deactivated\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Learner ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func userRepo() (*database.UserRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
	return database.NewUserRepository(db), closeDB, nil
}
