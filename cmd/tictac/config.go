package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/tui-tictac/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the default configuration",
	Long: `Print the built-in configuration as YAML. Save it to
~/.tictac/config.yaml and edit it to change the defaults.

Any value can also be set with a TICTAC_* environment variable or a .env file.

Examples:
  tictac config > ~/.tictac/config.yaml`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		_, _ = os.Stdout.Write(config.DefaultYAML())
	},
}
