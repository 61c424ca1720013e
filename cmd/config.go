package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matthoffner/wizardcoder-sandbox/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage wizard configuration",
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value in the config file.\n\nKeys: " + strings.Join(config.Keys(), ", "),
	Args: cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(cfgFile, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", args[0], err)
		}
		fmt.Printf("%s saved.\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		out, err := config.Redacted(cfg)
		if err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = config.Path()
		}
		dimColor.Fprintf(os.Stderr, "# %s\n", path)
		fmt.Print(string(out))
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
			return
		}
		fmt.Println(config.Path())
	},
}

func init() {
	configCmd.AddCommand(setCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(pathCmd)
}
