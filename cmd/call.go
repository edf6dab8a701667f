// ABOUTME: Call command for raw API requests through the pipeline
// ABOUTME: Sends METHOD PATH with the stored credential and prints the unwrapped body

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/propdesk/internal/client"
)

var (
	callQuery []string
	callData  string
)

var callCmd = &cobra.Command{
	Use:   "call METHOD PATH",
	Short: "Send a raw API request",
	Long: `Send a request to PATH under the API prefix with the stored credential.

Examples:
  propdesk call GET /owner/bills --query status=unpaid
  propdesk call POST /owner/repairs --data '{"description":"leak"}'`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if code := runCall(ctx, os.Stdout, args[0], args[1], callQuery, callData); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	callCmd.Flags().StringArrayVarP(&callQuery, "query", "q", nil, "Query parameter as key=value (repeatable)")
	callCmd.Flags().StringVarP(&callData, "data", "d", "", "JSON request body")
	rootCmd.AddCommand(callCmd)
}

// buildCall validates the command line into a pipeline call
func buildCall(method, path string, query []string, data string) (client.Call, error) {
	call := client.Call{
		Method: strings.ToUpper(method),
		Path:   "/" + strings.TrimLeft(path, "/"),
	}

	if len(query) > 0 {
		call.Query = url.Values{}
		for _, kv := range query {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return client.Call{}, fmt.Errorf("invalid --query %q, expected key=value", kv)
			}
			call.Query.Add(k, v)
		}
	}

	if data != "" {
		if !json.Valid([]byte(data)) {
			return client.Call{}, fmt.Errorf("--data is not valid JSON")
		}
		call.Body = json.RawMessage(data)
	}
	return call, nil
}

// runCall executes the request and returns the exit code
func runCall(ctx context.Context, w io.Writer, method, path string, query []string, data string) int {
	call, err := buildCall(method, path, query, data)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}

	d, err := loadDeps(ctx, logStderr)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}
	defer d.close()

	c, err := d.newClient(client.WithNotifier(cliNotifier(w)))
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return exitUsage
	}

	body, err := c.Do(ctx, call)
	// The process exits before the teardown delay would elapse
	c.Expiry().Flush()
	if err != nil {
		if client.IsClass(err, client.ClassSessionExpired) {
			return exitNotLoggedIn
		}
		return report(w, err)
	}

	if body == nil {
		return exitOK
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		w.Write(body)
		fmt.Fprintln(w)
		return exitOK
	}
	fmt.Fprintln(w, pretty.String())
	return exitOK
}
