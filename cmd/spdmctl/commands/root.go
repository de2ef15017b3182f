// Package commands implements the spdmctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient is the admin API HTTP client, initialized in PersistentPreRunE.
	httpClient *http.Client

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the daemon's admin API address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for spdmctl.
var rootCmd = &cobra.Command{
	Use:   "spdmctl",
	Short: "CLI client for the spdm-responderd admin API",
	Long:  "spdmctl queries the spdm-responderd admin HTTP API to inspect responder and session state.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		httpClient = &http.Client{Timeout: 5 * time.Second}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9101",
		"spdm-responderd admin API address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// adminURL builds a full URL against the admin API for the given path.
func adminURL(path string) string {
	return "http://" + serverAddr + path
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
