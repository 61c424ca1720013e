package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show streaming statistics",
	Long: `Display a dashboard of past sessions: how many completed, time to first
token, total stream time, languages produced and the most repeated prompts.

Data is collected automatically and stored locally in ~/.wizard-sandbox/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  📊 wizard stats\n\n")

		if summary.TotalSessions == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Run a few prompts and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		green.Fprintf(os.Stderr, "  Sessions:    ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalSessions)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week, %d auto)\n", summary.TodayCount, summary.ThisWeekCount, summary.AutoCount)

		green.Fprintf(os.Stderr, "  Completed:   ")
		if summary.CompletionRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.CompletionRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.CompletionRate)
		}

		green.Fprintf(os.Stderr, "  First token: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstTokenMs)
		green.Fprintf(os.Stderr, "  Stream time: ")
		fmt.Fprintf(os.Stderr, "%dms avg, %d bytes avg\n", summary.AvgDurationMs, summary.AvgBytes)

		printBreakdown(cyan, dim, "Outcomes", summary.StatusBreakdown, summary.TotalSessions)
		printBreakdown(cyan, dim, "Languages", summary.LanguageBreakdown, summary.TotalSessions)

		if len(summary.TopPrompts) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Prompts")
			for i, tp := range summary.TopPrompts {
				p := tp.Prompt
				if len(p) > 50 {
					p = p[:50] + "..."
				}
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", p)
				dim.Fprintf(os.Stderr, "(%dx)\n", tp.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}

func printBreakdown(title, dim *color.Color, name string, counts map[string]int, total int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })

	fmt.Fprintln(os.Stderr)
	title.Fprintf(os.Stderr, "  %s\n", name)
	for _, k := range keys {
		pct := float64(counts[k]) / float64(total) * 100
		bar := strings.Repeat("█", int(pct/5))
		dim.Fprintf(os.Stderr, "  %-11s ", k)
		fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, counts[k], pct)
	}
}
