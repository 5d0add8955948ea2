package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outcome of the most recent sync passes",
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

		last, err := stack.Repo.LastCycle()
		if err != nil {
			cobra.CheckErr(err)
		}
		if last == nil {
			fmt.Println("📭 No sync has run yet.")
			return
		}

		lastOK, err := stack.Repo.LastSuccessfulCycle()
		if err != nil {
			cobra.CheckErr(err)
		}

		var (
			purple = lipgloss.Color("99")

			headerStyle = lipgloss.NewStyle().Foreground(purple).Bold(true).Align(lipgloss.Center)
			cellStyle   = lipgloss.NewStyle().Padding(0, 1)
		)

		t := table.New().
			Border(lipgloss.HiddenBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(purple)).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			}).
			Headers("Finished", "Trigger", "Fetched", "Up to date", "Kept deleted", "Failed", "Error")

		t.Row(
			last.FinishedAt.Format(time.RFC3339),
			string(last.Trigger),
			fmt.Sprintf("%d", last.Fetched),
			fmt.Sprintf("%d", last.SkippedExists),
			fmt.Sprintf("%d", last.SkippedDeleted),
			fmt.Sprintf("%d", last.Failed),
			truncateString(last.Error, 40),
		)

		fmt.Println(t)

		if lastOK != nil {
			fmt.Printf("✅ Last successful sync: %s\n", lastOK.FinishedAt.Format(time.RFC3339))
		} else {
			fmt.Println("⚠️  No successful sync recorded yet.")
		}
	},
}
