// ABOUTME: Login and logout commands
// ABOUTME: Signs in with flags or an interactive prompt and stores the session locally

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/tui/loginform"
)

var (
	loginUsername string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long:  `Sign in with a username and password. Missing values are prompted for.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		creds := client.Credentials{Username: loginUsername, Password: loginPassword}
		if code := runLogin(ctx, os.Stdout, creds); code != exitOK {
			os.Exit(code)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Run: func(cmd *cobra.Command, args []string) {
		if code := runLogout(context.Background(), os.Stdout); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

// runLogin signs in and returns the exit code
func runLogin(ctx context.Context, w io.Writer, creds client.Credentials) int {
	d, err := loadDeps(ctx, logStderr)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}
	defer d.close()

	creds, err = loginform.New(creds).Run()
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}

	c, err := d.newClient(client.WithNotifier(cliNotifier(w)))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}

	id, err := c.SignIn(ctx, creds)
	if err != nil {
		return report(w, err)
	}

	if IsJSONOutput() {
		printJSON(w, map[string]any{"user": id, "role": id.Role()})
		return exitOK
	}
	fmt.Fprintf(w, "Logged in as %s (%s)\n", id.Name(), id.Role())
	return exitOK
}

// runLogout clears the stored session. Logging out twice is fine.
func runLogout(ctx context.Context, w io.Writer) int {
	d, err := loadDeps(ctx, logStderr)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}
	defer d.close()

	d.store.Logout()
	fmt.Fprintln(w, "Logged out")
	return exitOK
}
