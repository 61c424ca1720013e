package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
)

var (
	cfgFile string
	verbose bool
	logJSON bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Stream model-generated code into a live sandbox",
	Long: `wizard streams code from a WizardCoder-style endpoint into an editor buffer,
strips markdown fences as they arrive, and renders the result as a live preview.

Examples:
  wizard chat
  wizard run "simple express server" --out server.js
  wizard run --auto-mode --max-iterations 3 "a todo app in html"
  wizard serve --preview 127.0.0.1:8765
  wizard ask "what does this regex do: ^\d{3}$"

Running wizard with no subcommand starts chat.`,
	RunE:                       runChat,
	SilenceUsage:               true,
	SilenceErrors:              true,
	TraverseChildren:           true,
	SuggestionsMinimumDistance: 1,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ~/.wizard-sandbox/config.yaml)")
	pf.String("api-url", config.DefaultAPIURL, "Streaming endpoint URL")
	pf.String("api-key", "", "Bearer token sent to the endpoint")
	pf.String("endpoint", config.DefaultEndpoint, "Endpoint shape: messages, prompt or openai")
	pf.String("model", "", "Model name sent with each request")
	pf.Bool("clear-mode", false, "Empty the editor after each settled iteration")
	pf.Bool("auto-mode", false, "Resubmit the follow-up prompt after each settled iteration")
	pf.String("follow-up", config.DefaultFollowUp, "Prompt resubmitted in auto mode")
	pf.String("query", "", "Startup query string, e.g. 'API_URL=...&clearMode=true&autoMode'")
	pf.String("preview", config.DefaultPreviewAddr, "Preview server listen address")
	pf.Bool("chrome", false, "Render previews in headless Chrome")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	pf.BoolVar(&logJSON, "log-json", false, "Log as JSON")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
}

// SetVersion is called from main with the build version.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// ExecuteContext is the entry point called from main.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
