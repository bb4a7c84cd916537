package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd starts the server when run without a subcommand
var rootCmd = &cobra.Command{
	Use:          "devcircle",
	Short:        "devcircle real-time messaging and presence server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
