package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mebx/contentsync/pkg/data"
	"github.com/mebx/contentsync/pkg/transport"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync pass now",
	Long:  "Fetch the remote catalog and download any missing or stale content immediately",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadEnv()
		if err != nil {
			cobra.CheckErr(err)
		}
		if !cfg.Content.Enabled {
			fmt.Println("ℹ️  Content sync is disabled in app_config.json.")
			return
		}
		if err := requireSourceURL(cfg); err != nil {
			cobra.CheckErr(err)
		}

		stack, err := buildStack(cfg, logger)
		if err != nil {
			cobra.CheckErr(err)
		}
		defer stack.Close()

		transport.SweepPartials(cfg.Content.Dir, logger)

		// Listen for progress
		go func() {
			for p := range stack.Syncer.Progress() {
				if p.Err != nil {
					fmt.Printf("  ❌ %s: %v\n", p.Filename, p.Err)
					continue
				}
				fmt.Printf("  %s: %.0f%%\n", p.Filename, p.Fraction*100)
			}
		}()

		fmt.Printf("📥 Syncing content from %s\n", cfg.Content.SourceURL)

		sum, err := stack.Syncer.Sync(context.Background(), data.TriggerManual)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("sync failed: %w", err))
		}

		fmt.Printf("\n✅ Sync complete: %d fetched, %d up to date, %d kept deleted, %d failed\n",
			sum.Fetched, sum.SkippedExists, sum.SkippedDeleted, sum.Failed)
	},
}
