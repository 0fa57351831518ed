package main

import (
	"context"
	"fmt"
	"time"

	"github.com/blanx-app/backend/internal/cache"
	"github.com/blanx-app/backend/internal/config"
	"github.com/blanx-app/backend/internal/database"
	"github.com/blanx-app/backend/internal/notify"
	"github.com/blanx-app/backend/internal/repository"
	"github.com/spf13/cobra"
)

var pruneOlderThanDays int

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete read notifications older than a cutoff",
	Long: `Deletes read notifications created before the cutoff and drops the
cached unread count for every affected recipient. Unread rows are
never pruned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		ctx := context.Background()

		if err := database.Initialize(); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer database.Close()

		var redisClient *cache.RedisClient
		if cfg.RedisHost != "" {
			rc, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
			if err != nil {
				fmt.Printf("Warning: redis unavailable, skipping cache invalidation: %v\n", err)
			} else {
				redisClient = rc
				defer redisClient.Close()
			}
		}

		// Keep a nil *RedisClient out of the interface so the counter's
		// nil check still disables the cache path.
		var countCache notify.CountCache
		if redisClient != nil {
			countCache = redisClient
		}

		repo := repository.NewNotificationRepository(database.DB)
		counter := notify.NewCounter(repo, countCache)

		cutoff := time.Now().AddDate(0, 0, -pruneOlderThanDays)
		recipients, pruned, err := repo.PruneRead(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune notifications: %w", err)
		}

		for _, recipientID := range recipients {
			counter.Invalidate(ctx, recipientID)
		}

		fmt.Printf("Pruned %d read notifications older than %s (%d recipients affected)\n",
			pruned, cutoff.Format(time.RFC3339), len(recipients))
		return nil
	},
}

func init() {
	pruneCmd.Flags().IntVar(&pruneOlderThanDays, "older-than", 90, "Prune read notifications older than this many days")
}
