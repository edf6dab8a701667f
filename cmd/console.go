// ABOUTME: Console command launching the full-screen TUI
// ABOUTME: Logs go to a file so they do not corrupt the alt screen

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/propdesk/internal/client"
	"github.com/markalston/propdesk/internal/guard"
	"github.com/markalston/propdesk/internal/realtime"
	"github.com/markalston/propdesk/internal/tui"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open the interactive console",
	Long: `Open the full-screen console. Screens are limited to the signed-in
role, realtime notifications appear as badges and refresh the visible list,
and an expired session returns to the login screen.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := runConsole(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitUsage)
		}
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(ctx context.Context) error {
	d, err := loadDeps(ctx, logFile)
	if err != nil {
		return err
	}
	defer d.close()

	bridge := tui.NewBridge()
	c, err := d.newClient(client.WithNotifier(bridge), client.WithNavigator(bridge))
	if err != nil {
		return err
	}
	l, err := d.newListener(realtime.WithStatusHook(bridge.ListenerStatus))
	if err != nil {
		return err
	}

	d.logger.Info("Starting console", "api_url", d.cfg.APIURL, "authenticated", d.store.IsAuthenticated())
	return tui.Run(ctx, tui.Deps{
		Client:   c,
		Guard:    guard.New(d.store, d.logger),
		Bridge:   bridge,
		Listener: l,
		Logger:   d.logger,
	})
}
