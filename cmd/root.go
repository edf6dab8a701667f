// ABOUTME: Root command for the propdesk CLI
// ABOUTME: Handles global flags and exit codes shared by every command

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	apiURL     string
	jsonOutput bool
)

// Exit codes
const (
	exitOK          = 0
	exitUsage       = 1
	exitAPI         = 2
	exitNotLoggedIn = 3
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "propdesk",
	Short: "Property management client",
	Long: `propdesk is a terminal client for the property management service.

Owners, maintenance workers and administrators sign in once; the session is
kept in the config directory until logout or until the server rejects it.

Environment Variables:
  PROPDESK_API_URL        API origin (default: http://localhost:8088)
  PROPDESK_API_PREFIX     REST base path (default: /api/v1)
  PROPDESK_CONFIG_DIR     Session and log directory
  PROPDESK_ALL_PROXY      ssh+socks5:// jumpbox proxy
  LOG_LEVEL, LOG_FORMAT   Logging (default: info, text)`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API origin (overrides PROPDESK_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}
