package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mebx/contentsync/pkg/content"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally stored content",
	Long:  "Display the books and videos currently stored on the kiosk",
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

		columns := []table.Column{
			{Title: "Category", Width: 10},
			{Title: "Name", Width: 50},
			{Title: "Deleted?", Width: 10},
		}

		rows := []table.Row{}
		total := 0
		for _, cat := range content.Categories() {
			names, err := stack.Syncer.List(cat)
			if err != nil {
				cobra.CheckErr(err)
			}
			for _, name := range names {
				rows = append(rows, table.Row{string(cat), truncateString(name, 48), ""})
				total++
			}
			for _, name := range stack.Tracker.ListDeleted(cat) {
				rows = append(rows, table.Row{string(cat), truncateString(name, 48), "yes"})
			}
		}

		if len(rows) == 0 {
			fmt.Println("📭 No content stored yet. Run 'contentsync sync' to fetch the catalog.")
			return
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(false),
			table.WithHeight(len(rows)),
		)

		s := table.DefaultStyles()
		s.Header = s.Header.
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			BorderBottom(true).
			Bold(true)
		s.Selected = s.Selected.
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57")).
			Bold(false)
		t.SetStyles(s)

		fmt.Printf("\n📚 Local content (%d files)\n\n", total)
		fmt.Println(t.View())
	},
}
