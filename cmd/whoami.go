// ABOUTME: Whoami command for the propdesk CLI
// ABOUTME: Shows the stored identity, role and token expiry without contacting the server

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/markalston/propdesk/internal/session"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Run: func(cmd *cobra.Command, args []string) {
		if code := runWhoami(context.Background(), os.Stdout, time.Now()); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}

type whoamiOutput struct {
	Authenticated bool             `json:"authenticated"`
	User          session.Identity `json:"user,omitempty"`
	Role          session.Role     `json:"role,omitempty"`
	Subject       string           `json:"subject,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	Expired       bool             `json:"expired"`
}

// runWhoami prints the session and returns the exit code
func runWhoami(ctx context.Context, w io.Writer, now time.Time) int {
	d, err := loadDeps(ctx, logStderr)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}
	defer d.close()

	out := describeSession(d.store.Snapshot(), now)
	if IsJSONOutput() {
		printJSON(w, out)
	} else {
		fmt.Fprintln(w, formatWhoamiHuman(out))
	}
	if !out.Authenticated {
		return exitNotLoggedIn
	}
	return exitOK
}

func describeSession(snap session.Session, now time.Time) whoamiOutput {
	if snap.Token == "" {
		return whoamiOutput{}
	}
	out := whoamiOutput{
		Authenticated: true,
		User:          snap.Identity,
		Role:          snap.Identity.Role(),
	}
	// Opaque credentials carry no claims to show
	if info, err := session.InspectToken(snap.Token); err == nil {
		out.Subject = info.Subject
		if !info.ExpiresAt.IsZero() {
			exp := info.ExpiresAt
			out.ExpiresAt = &exp
			out.Expired = info.Expired(now)
		}
	}
	return out
}

func formatWhoamiHuman(out whoamiOutput) string {
	if !out.Authenticated {
		return "Not logged in"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User:    %s (%s)\n", out.User.Name(), out.User.Username())
	fmt.Fprintf(&sb, "Role:    %s\n", out.Role)
	switch {
	case out.ExpiresAt == nil:
		sb.WriteString("Expires: unknown")
	case out.Expired:
		fmt.Fprintf(&sb, "Expires: %s (expired)", out.ExpiresAt.Local().Format(time.RFC3339))
	default:
		fmt.Fprintf(&sb, "Expires: %s", out.ExpiresAt.Local().Format(time.RFC3339))
	}
	return sb.String()
}
