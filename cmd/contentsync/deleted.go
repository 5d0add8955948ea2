package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mebx/contentsync/pkg/content"
)

var deletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "Show files the user has deleted",
	Long:  "List the files excluded from automatic re-download because the user deleted them",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger, err := loadEnv()
		if err != nil {
			cobra.CheckErr(err)
		}

		stack, err := buildStack(cfg, logger)
		if err != nil {
			cobra.CheckErr(err)
		}
		defer stack.Close()

		record := stack.Tracker.ListDeletedAll()
		total := 0
		for _, names := range record {
			total += len(names)
		}
		if total == 0 {
			fmt.Println("📭 No deleted content tracked.")
			return
		}

		for _, cat := range content.Categories() {
			names := record[string(cat)]
			if len(names) == 0 {
				continue
			}
			fmt.Printf("\n🗑  %ss (%d)\n", cat, len(names))
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
		}
		fmt.Printf("\n💡 Restore one with: contentsync deleted restore <book|video> <filename>\n")
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore [category] [filename]",
	Short: "Redownload a deleted file and clear its exclusion",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cat, err := content.ParseCategory(args[0])
		if err != nil {
			cobra.CheckErr(err)
		}
		filename := args[1]

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

		fmt.Printf("📥 Restoring %s/%s...\n", cat, filename)

		err = stack.Syncer.RedownloadDeleted(context.Background(), cat, filename,
			func(name string, frac float64) {
				fmt.Printf("  %s: %.0f%%\n", name, frac*100)
			})
		if err != nil {
			cobra.CheckErr(fmt.Errorf("restore failed: %w", err))
		}

		fmt.Printf("✅ Restored %s, it will no longer be skipped.\n", filename)
	},
}

func init() {
	deletedCmd.AddCommand(restoreCmd)
}
