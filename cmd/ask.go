package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/ai"
	"github.com/matthoffner/wizardcoder-sandbox/internal/ui"
)

var askWait bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Stream a one-off answer to the terminal",
	Long: `Send a single prompt and print the answer as it streams. Nothing is kept
between calls and no editor buffer is involved.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		prompt := strings.Join(args, " ")
		if stdinData := readStdin(); stdinData != "" {
			prompt += "\n\n" + stdinData
		}

		sp := ui.NewSpinner("Thinking...")
		sp.Start()
		ch, err := a.client.Ask(cmd.Context(), prompt)
		if err != nil {
			sp.Stop()
			return fmt.Errorf("request failed: %w", err)
		}
		if askWait {
			err := printAnswer(os.Stdout, ch)
			sp.Stop()
			return err
		}
		sp.Stop()

		fmt.Fprintln(os.Stdout)
		chunk, err := ui.RenderStream(os.Stdout, ch, "  ")
		if err != nil {
			return fmt.Errorf("stream failed after %d bytes: %w", len(chunk.Content), err)
		}
		if chunk.Kind != "" {
			dimColor.Fprintf(os.Stderr, "  (%s)\n", chunk.Kind)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askWait, "wait", false, "Print the raw answer once the stream has finished")
}

// printAnswer waits for the whole answer and writes it unmodified.
func printAnswer(w io.Writer, ch <-chan ai.StreamDelta) error {
	answer, err := ai.Collect(ch)
	if err != nil {
		return fmt.Errorf("stream failed after %d bytes: %w", len(answer), err)
	}
	_, err = fmt.Fprintln(w, strings.TrimRight(answer, "\n"))
	return err
}
