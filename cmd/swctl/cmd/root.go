// Package cmd contains the CLI commands for swctl.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Used for flags
	serverURL string
	orgID     string
	output    string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swctl",
	Short: "SyncWatch - Data accuracy monitoring control",
	Long: `swctl is the operator CLI for a SyncWatch server.

It starts and inspects accuracy scans, manages alert rules, and works
through the alert backlog, talking to the server's HTTP API.

Examples:
  # Run an accuracy scan over pricing records and wait for the result
  swctl check run --org org-1 --scope pricing --wait

  # List open alerts
  swctl alerts list --org org-1

  # Acknowledge an alert
  swctl alerts ack a1b2c3 --by ops@example.com`,
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "SyncWatch server URL")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", "", "organization id")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// GetOutput returns the output format.
func GetOutput() string {
	return output
}

// PrintVerbose prints a message only if verbose mode is enabled.
func PrintVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func requireOrg() error {
	if orgID == "" {
		return fmt.Errorf("--org is required")
	}
	return nil
}
