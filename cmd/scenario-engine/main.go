// Command scenario-engine serves the crisis-impact simulation engine's HTTP
// edge and offers debug subcommands for prepare/list/chain operations, all
// consolidated into one binary.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string
var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "scenario-engine",
	Short: "Crisis-impact simulation engine for urban critical infrastructure",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the engine's YAML config file")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(prepareCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(chainCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
