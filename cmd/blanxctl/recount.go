package main

import (
	"context"
	"fmt"

	"github.com/blanx-app/backend/internal/cache"
	"github.com/blanx-app/backend/internal/config"
	"github.com/blanx-app/backend/internal/database"
	"github.com/blanx-app/backend/internal/models"
	"github.com/blanx-app/backend/internal/repository"
	"github.com/spf13/cobra"
)

var recountFix bool

var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Audit cached unread counts against the store",
	Long: `Recomputes every user's unread count from the notifications table
and compares it to the cached value in redis. With --fix, stale cache
entries are dropped so the next read repopulates them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		ctx := context.Background()

		if err := database.Initialize(); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer database.Close()

		if cfg.RedisHost == "" {
			return fmt.Errorf("redis not configured, nothing to audit")
		}
		redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()

		repo := repository.NewNotificationRepository(database.DB)

		var userIDs []string
		if err := database.DB.WithContext(ctx).Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		checked := 0
		stale := 0
		for _, userID := range userIDs {
			key := "notif:unread:" + userID
			cached, err := redisClient.GetInt(ctx, key)
			if err != nil {
				// No cache entry for this user
				continue
			}
			checked++

			derived, err := repo.CountUnread(ctx, userID)
			if err != nil {
				return fmt.Errorf("count unread for %s: %w", userID, err)
			}

			if cached != derived {
				stale++
				fmt.Printf("user %s: cached=%d derived=%d\n", userID, cached, derived)
				if recountFix {
					if err := redisClient.Del(ctx, key); err != nil {
						return fmt.Errorf("drop cache for %s: %w", userID, err)
					}
				}
			}
		}

		fmt.Printf("Audited %d cached counts, %d stale", checked, stale)
		if recountFix && stale > 0 {
			fmt.Print(" (dropped)")
		}
		fmt.Println()
		return nil
	},
}

func init() {
	recountCmd.Flags().BoolVar(&recountFix, "fix", false, "Drop stale cache entries")
}
