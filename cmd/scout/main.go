// Command scout is the CLI entry point for the autonomous research agent.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "scout",
		Short: "Autonomous research agent",
		Long: "scout researches a topic autonomously: it plans, searches the web, reads sources,\n" +
			"extracts and verifies facts, and synthesizes an answer, learning across sessions.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./scout.yaml or ~/.scout/scout.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr as well as the log files")

	root.AddCommand(newResearchCmd())
	root.AddCommand(newMaintainCmd())
	root.AddCommand(newSessionsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
