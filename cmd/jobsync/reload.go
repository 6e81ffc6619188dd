package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"jobmate/jobsync/internal/config"
	"jobmate/jobsync/internal/db"
	"jobmate/jobsync/internal/events"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask every running server to reload from the remote store",
	Long: `Publish an invalidation on $INVALIDATE_CHANNEL. Every server subscribed
to it replaces its cache with a fresh listing. Requires REDIS_URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadLocal()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
		reason, _ := cmd.Flags().GetString("reason")
		jobID, _ := cmd.Flags().GetString("job")

		ctx := cmd.Context()
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()

		inv := events.Invalidation{Reason: reason, JobID: jobID}
		if err := events.Publish(ctx, rdb, cfg.InvalidateChannel, inv); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Invalidation published on %s\n", cfg.InvalidateChannel)
		return nil
	},
}

func init() {
	reloadCmd.Flags().String("reason", "manual", "reason recorded by the servers")
	reloadCmd.Flags().String("job", "", "id of the job that changed, if any")
	rootCmd.AddCommand(reloadCmd)
}
