package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/history"
)

var (
	historyLimit int
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show prompt history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyClear {
			if err := history.Clear(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Println("History cleared.")
			return nil
		}

		entries, err := history.Load(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan)
		red := color.New(color.FgRed)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)

		for _, e := range entries {
			dim.Printf("[%s] ", e.Timestamp.Format("2006-01-02 15:04:05"))
			if e.Auto {
				cyan.Print("auto ")
			}
			fmt.Printf("%s ", e.Prompt)
			switch e.Status {
			case "done":
				green.Printf("✓ v%d\n", e.Iteration)
			case "cancelled":
				yellow.Println("■ stopped")
			default:
				red.Println("✗")
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of history entries to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete all history")
}
