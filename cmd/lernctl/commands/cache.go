package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fluentlabs/lernplan/internal/cache"
	"github.com/fluentlabs/lernplan/internal/config"
)

// NewCacheCmd creates the cache command group
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the content cache",
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCachePurgeCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show how many artifacts are cached",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeRedis, err := redisStore()
			if err != nil {
				return err
			}
			defer closeRedis()

			count, err := store.Len(context.Background())
			if err != nil {
				return fmt.Errorf("failed to count artifacts: %w", err)
			}

			fmt.Printf("Cached artifacts: %d\n", count)
			return nil
		},
	}

	return cmd
}

func newCachePurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove every cached artifact",
		Long:  "Remove every cached artifact, e.g. after a catalog or prompt change",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeRedis, err := redisStore()
			if err != nil {
				return err
			}
			defer closeRedis()

			purged, err := store.Purge(context.Background())
			if err != nil {
				return fmt.Errorf("failed to purge cache: %w", err)
			}

			fmt.Printf("Purged %d artifacts\n", purged)
			return nil
		},
	}

	return cmd
}

func redisStore() (*cache.RedisStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	closeRedis := func() {
		if err := client.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close redis: %v\n", err)
		}
	}
	return cache.NewRedisStore(client), closeRedis, nil
}
