package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive sandbox session",
	Long: `Start an interactive session. Each line you type is sent as a prompt and the
response streams into the editor buffer, echoed below as it arrives. Earlier
iterations are sent along as context.

Lines starting with ':' are editor commands; type :help to list them.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(os.Stderr)
	cyan.Fprintln(os.Stderr, "  wizard chat")
	dimColor.Fprintf(os.Stderr, "  %s  (:help for commands)\n\n", a.cfg.APIURL)

	ctrl, doc := a.newController(ui.NewChatPrinter(os.Stderr))
	defer ctrl.Close()

	return newREPL(ctrl, doc, os.Stdin, os.Stdout).run(cmd.Context())
}
